package proto

import (
	"errors"
	"time"
)

// DatabaseType selects the data model of a database.
type DatabaseType int32

const (
	DatabaseTypeUnspecified DatabaseType = iota
	DatabaseTypeFirestoreNative
	DatabaseTypeDatastoreMode
)

var databaseTypeEnum = newEnum[DatabaseType]("DatabaseType",
	"DATABASE_TYPE_UNSPECIFIED", "FIRESTORE_NATIVE", "DATASTORE_MODE")

func (t DatabaseType) String() string                { return databaseTypeEnum.name(t) }
func (t DatabaseType) MarshalJSON() ([]byte, error)  { return databaseTypeEnum.marshal(t) }
func (t *DatabaseType) UnmarshalJSON(b []byte) error { return databaseTypeEnum.unmarshal(b, t) }

// ParseDatabaseType converts a value name or number to a DatabaseType.
func ParseDatabaseType(s string) (DatabaseType, error) { return databaseTypeEnum.parse(s) }

// ConcurrencyMode is the transaction concurrency control of a database.
type ConcurrencyMode int32

const (
	ConcurrencyModeUnspecified ConcurrencyMode = iota
	ConcurrencyModeOptimistic
	ConcurrencyModePessimistic
	ConcurrencyModeOptimisticWithEntityGroups
)

var concurrencyModeEnum = newEnum[ConcurrencyMode]("ConcurrencyMode",
	"CONCURRENCY_MODE_UNSPECIFIED", "OPTIMISTIC", "PESSIMISTIC", "OPTIMISTIC_WITH_ENTITY_GROUPS")

func (m ConcurrencyMode) String() string                { return concurrencyModeEnum.name(m) }
func (m ConcurrencyMode) MarshalJSON() ([]byte, error)  { return concurrencyModeEnum.marshal(m) }
func (m *ConcurrencyMode) UnmarshalJSON(b []byte) error { return concurrencyModeEnum.unmarshal(b, m) }

// ParseConcurrencyMode converts a value name or number to a ConcurrencyMode.
func ParseConcurrencyMode(s string) (ConcurrencyMode, error) { return concurrencyModeEnum.parse(s) }

// PointInTimeRecoveryEnablement toggles point-in-time recovery.
type PointInTimeRecoveryEnablement int32

const (
	PointInTimeRecoveryEnablementUnspecified PointInTimeRecoveryEnablement = iota
	PointInTimeRecoveryEnabled
	PointInTimeRecoveryDisabled
)

var pitrEnum = newEnum[PointInTimeRecoveryEnablement]("PointInTimeRecoveryEnablement",
	"POINT_IN_TIME_RECOVERY_ENABLEMENT_UNSPECIFIED", "POINT_IN_TIME_RECOVERY_ENABLED", "POINT_IN_TIME_RECOVERY_DISABLED")

func (p PointInTimeRecoveryEnablement) String() string               { return pitrEnum.name(p) }
func (p PointInTimeRecoveryEnablement) MarshalJSON() ([]byte, error) { return pitrEnum.marshal(p) }
func (p *PointInTimeRecoveryEnablement) UnmarshalJSON(b []byte) error {
	return pitrEnum.unmarshal(b, p)
}

// ParsePointInTimeRecoveryEnablement converts a value name or number.
func ParsePointInTimeRecoveryEnablement(s string) (PointInTimeRecoveryEnablement, error) {
	return pitrEnum.parse(s)
}

// AppEngineIntegrationMode controls whether App Engine can reach the database.
type AppEngineIntegrationMode int32

const (
	AppEngineIntegrationModeUnspecified AppEngineIntegrationMode = iota
	AppEngineIntegrationEnabled
	AppEngineIntegrationDisabled
)

var appEngineEnum = newEnum[AppEngineIntegrationMode]("AppEngineIntegrationMode",
	"APP_ENGINE_INTEGRATION_MODE_UNSPECIFIED", "ENABLED", "DISABLED")

func (m AppEngineIntegrationMode) String() string               { return appEngineEnum.name(m) }
func (m AppEngineIntegrationMode) MarshalJSON() ([]byte, error) { return appEngineEnum.marshal(m) }
func (m *AppEngineIntegrationMode) UnmarshalJSON(b []byte) error {
	return appEngineEnum.unmarshal(b, m)
}

// ParseAppEngineIntegrationMode converts a value name or number.
func ParseAppEngineIntegrationMode(s string) (AppEngineIntegrationMode, error) {
	return appEngineEnum.parse(s)
}

// DeleteProtectionState guards a database against DeleteDatabase.
type DeleteProtectionState int32

const (
	DeleteProtectionStateUnspecified DeleteProtectionState = iota
	DeleteProtectionDisabled
	DeleteProtectionEnabled
)

var deleteProtectionEnum = newEnum[DeleteProtectionState]("DeleteProtectionState",
	"DELETE_PROTECTION_STATE_UNSPECIFIED", "DELETE_PROTECTION_DISABLED", "DELETE_PROTECTION_ENABLED")

func (s DeleteProtectionState) String() string               { return deleteProtectionEnum.name(s) }
func (s DeleteProtectionState) MarshalJSON() ([]byte, error) { return deleteProtectionEnum.marshal(s) }
func (s *DeleteProtectionState) UnmarshalJSON(b []byte) error {
	return deleteProtectionEnum.unmarshal(b, s)
}

// ParseDeleteProtectionState converts a value name or number.
func ParseDeleteProtectionState(s string) (DeleteProtectionState, error) {
	return deleteProtectionEnum.parse(s)
}

// Database is a document database within a project.
type Database struct {
	Name                          string                        `json:"name,omitempty"`
	UID                           string                        `json:"uid,omitempty"`
	CreateTime                    *time.Time                    `json:"createTime,omitempty"`
	UpdateTime                    *time.Time                    `json:"updateTime,omitempty"`
	LocationID                    string                        `json:"locationId,omitempty"`
	Type                          DatabaseType                  `json:"type,omitempty"`
	ConcurrencyMode               ConcurrencyMode               `json:"concurrencyMode,omitempty"`
	VersionRetentionPeriod        *Duration                     `json:"versionRetentionPeriod,omitempty"`
	EarliestVersionTime           *time.Time                    `json:"earliestVersionTime,omitempty"`
	PointInTimeRecoveryEnablement PointInTimeRecoveryEnablement `json:"pointInTimeRecoveryEnablement,omitempty"`
	AppEngineIntegrationMode      AppEngineIntegrationMode      `json:"appEngineIntegrationMode,omitempty"`
	KeyPrefix                     string                        `json:"keyPrefix,omitempty"`
	DeleteProtectionState         DeleteProtectionState         `json:"deleteProtectionState,omitempty"`
	Etag                          string                        `json:"etag,omitempty"`
}

func (*Database) ProtoName() string { return adminPackage + "Database" }

func (d *Database) Validate() error {
	return errors.Join(
		databaseTypeEnum.check("type", d.Type),
		concurrencyModeEnum.check("concurrency_mode", d.ConcurrencyMode),
		pitrEnum.check("point_in_time_recovery_enablement", d.PointInTimeRecoveryEnablement),
		appEngineEnum.check("app_engine_integration_mode", d.AppEngineIntegrationMode),
		deleteProtectionEnum.check("delete_protection_state", d.DeleteProtectionState),
	)
}

// Clone returns a deep copy of d.
func (d *Database) Clone() *Database {
	if d == nil {
		return nil
	}
	c := *d
	c.CreateTime = cloneTime(d.CreateTime)
	c.UpdateTime = cloneTime(d.UpdateTime)
	c.EarliestVersionTime = cloneTime(d.EarliestVersionTime)
	if d.VersionRetentionPeriod != nil {
		v := *d.VersionRetentionPeriod
		c.VersionRetentionPeriod = &v
	}
	return &c
}

// CreateDatabaseMetadata is the metadata of a CreateDatabase operation.
type CreateDatabaseMetadata struct{}

func (*CreateDatabaseMetadata) ProtoName() string { return adminPackage + "CreateDatabaseMetadata" }

// UpdateDatabaseMetadata is the metadata of an UpdateDatabase operation.
type UpdateDatabaseMetadata struct{}

func (*UpdateDatabaseMetadata) ProtoName() string { return adminPackage + "UpdateDatabaseMetadata" }

// DeleteDatabaseMetadata is the metadata of a DeleteDatabase operation.
type DeleteDatabaseMetadata struct{}

func (*DeleteDatabaseMetadata) ProtoName() string { return adminPackage + "DeleteDatabaseMetadata" }

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Timestamp returns a pointer to t in UTC, for populating timestamp fields.
func Timestamp(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
