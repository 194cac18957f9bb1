package resource

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
)

const (
	// DefaultDatabase is the ID of the database every project starts with.
	DefaultDatabase = "(default)"
	// WildcardCollection stands for every collection group in list parents.
	WildcardCollection = "-"
	// DefaultCollectionGroup holds the database-wide field defaults.
	DefaultCollectionGroup = "__default__"
	// DefaultField is the field ID of the database-wide default settings.
	DefaultField = "*"
)

var (
	ProjectTemplate         = MustCompile("projects/{project}")
	DatabaseTemplate        = MustCompile("projects/{project}/databases/{database}")
	CollectionGroupTemplate = MustCompile("projects/{project}/databases/{database}/collectionGroups/{collection}")
	IndexTemplate           = MustCompile("projects/{project}/databases/{database}/collectionGroups/{collection}/indexes/{index}")
	FieldTemplate           = MustCompile("projects/{project}/databases/{database}/collectionGroups/{collection}/fields/{field}")
	LocationTemplate        = MustCompile("projects/{project}/locations/{location}")
	OperationTemplate       = MustCompile("projects/{project}/databases/{database}/operations/{operation}")
)

var databaseIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$`)

// ValidateDatabaseID checks id against the database naming rules.
func ValidateDatabaseID(id string) error {
	if id == DefaultDatabase {
		return nil
	}
	if len(id) < 4 || len(id) > 63 {
		return apperrors.Newf(apperrors.ErrInvalidArgument, "database ID %q must be 4-63 characters", id)
	}
	if !databaseIDPattern.MatchString(id) {
		return apperrors.Newf(apperrors.ErrInvalidArgument,
			"database ID %q must start with a letter, end with a letter or digit and contain only lowercase letters, digits and hyphens", id)
	}
	if _, err := uuid.Parse(id); err == nil {
		return apperrors.Newf(apperrors.ErrInvalidArgument, "database ID %q must not look like a UUID", id)
	}
	return nil
}

// ValidateCollectionID checks a collection group ID. The wildcard is only
// accepted when allowWildcard is set.
func ValidateCollectionID(id string, allowWildcard bool) error {
	switch {
	case id == "":
		return apperrors.New(apperrors.ErrInvalidArgument, "collection ID is required")
	case id == WildcardCollection:
		if !allowWildcard {
			return apperrors.New(apperrors.ErrInvalidArgument, "collection ID '-' is only valid when listing")
		}
		return nil
	case id == DefaultCollectionGroup:
		return nil
	case id == "." || id == "..":
		return apperrors.Newf(apperrors.ErrInvalidArgument, "collection ID %q is reserved", id)
	case strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__"):
		return apperrors.Newf(apperrors.ErrInvalidArgument, "collection ID %q is reserved", id)
	case len(id) > 1500:
		return apperrors.New(apperrors.ErrInvalidArgument, "collection ID exceeds 1500 bytes")
	}
	return nil
}

// ProjectPath returns "projects/{project}".
func ProjectPath(project string) string {
	return ProjectTemplate.mustRender(map[string]string{"project": project})
}

// DatabasePath returns "projects/{project}/databases/{database}".
func DatabasePath(project, database string) string {
	return DatabaseName{Project: project, Database: database}.String()
}

// CollectionGroupPath returns the name of a collection group.
func CollectionGroupPath(project, database, collection string) string {
	return CollectionGroupName{Project: project, Database: database, Collection: collection}.String()
}

// IndexPath returns the name of an index.
func IndexPath(project, database, collection, index string) string {
	return IndexName{Project: project, Database: database, Collection: collection, Index: index}.String()
}

// FieldPath returns the name of a field.
func FieldPath(project, database, collection, field string) string {
	return FieldName{Project: project, Database: database, Collection: collection, Field: field}.String()
}

// LocationPath returns "projects/{project}/locations/{location}".
func LocationPath(project, location string) string {
	return LocationTemplate.mustRender(map[string]string{"project": project, "location": location})
}

// OperationPath returns the name of an operation.
func OperationPath(project, database, operation string) string {
	return OperationName{Project: project, Database: database, Operation: operation}.String()
}

// ParseProjectName returns the project ID of name.
func ParseProjectName(name string) (string, error) {
	v, ok := ProjectTemplate.Match(name)
	if !ok {
		return "", mismatch(name, ProjectTemplate)
	}
	return v["project"], nil
}

// DatabaseName identifies a database.
type DatabaseName struct {
	Project  string
	Database string
}

func (n DatabaseName) String() string {
	return DatabaseTemplate.mustRender(map[string]string{"project": n.Project, "database": n.Database})
}

// Parent returns the project name.
func (n DatabaseName) Parent() string { return ProjectPath(n.Project) }

// CollectionGroup returns the name of collection within this database.
func (n DatabaseName) CollectionGroup(collection string) CollectionGroupName {
	return CollectionGroupName{Project: n.Project, Database: n.Database, Collection: collection}
}

// Operation returns the name of operation within this database.
func (n DatabaseName) Operation(id string) OperationName {
	return OperationName{Project: n.Project, Database: n.Database, Operation: id}
}

// ParseDatabaseName parses and validates a database name.
func ParseDatabaseName(name string) (DatabaseName, error) {
	v, ok := DatabaseTemplate.Match(name)
	if !ok {
		return DatabaseName{}, mismatch(name, DatabaseTemplate)
	}
	if err := ValidateDatabaseID(v["database"]); err != nil {
		return DatabaseName{}, err
	}
	return DatabaseName{Project: v["project"], Database: v["database"]}, nil
}

// CollectionGroupName identifies a collection group.
type CollectionGroupName struct {
	Project    string
	Database   string
	Collection string
}

func (n CollectionGroupName) String() string {
	return CollectionGroupTemplate.mustRender(map[string]string{
		"project": n.Project, "database": n.Database, "collection": n.Collection,
	})
}

// DatabaseName returns the enclosing database.
func (n CollectionGroupName) DatabaseName() DatabaseName {
	return DatabaseName{Project: n.Project, Database: n.Database}
}

// IsWildcard reports whether n addresses every collection group.
func (n CollectionGroupName) IsWildcard() bool { return n.Collection == WildcardCollection }

// Index returns the name of index id within this collection group.
func (n CollectionGroupName) Index(id string) IndexName {
	return IndexName{Project: n.Project, Database: n.Database, Collection: n.Collection, Index: id}
}

// Field returns the name of field id within this collection group.
func (n CollectionGroupName) Field(id string) FieldName {
	return FieldName{Project: n.Project, Database: n.Database, Collection: n.Collection, Field: id}
}

// ParseCollectionGroupName parses a collection group name. The wildcard
// collection "-" is accepted when allowWildcard is set.
func ParseCollectionGroupName(name string, allowWildcard bool) (CollectionGroupName, error) {
	v, ok := CollectionGroupTemplate.Match(name)
	if !ok {
		return CollectionGroupName{}, mismatch(name, CollectionGroupTemplate)
	}
	if err := ValidateDatabaseID(v["database"]); err != nil {
		return CollectionGroupName{}, err
	}
	if err := ValidateCollectionID(v["collection"], allowWildcard); err != nil {
		return CollectionGroupName{}, err
	}
	return CollectionGroupName{Project: v["project"], Database: v["database"], Collection: v["collection"]}, nil
}

// IndexName identifies a composite index.
type IndexName struct {
	Project    string
	Database   string
	Collection string
	Index      string
}

func (n IndexName) String() string {
	return IndexTemplate.mustRender(map[string]string{
		"project": n.Project, "database": n.Database, "collection": n.Collection, "index": n.Index,
	})
}

// CollectionGroupName returns the parent collection group.
func (n IndexName) CollectionGroupName() CollectionGroupName {
	return CollectionGroupName{Project: n.Project, Database: n.Database, Collection: n.Collection}
}

// ParseIndexName parses an index name. The collection may be "-" since
// indexes are unique within a database.
func ParseIndexName(name string) (IndexName, error) {
	v, ok := IndexTemplate.Match(name)
	if !ok {
		return IndexName{}, mismatch(name, IndexTemplate)
	}
	if err := ValidateDatabaseID(v["database"]); err != nil {
		return IndexName{}, err
	}
	if err := ValidateCollectionID(v["collection"], true); err != nil {
		return IndexName{}, err
	}
	return IndexName{Project: v["project"], Database: v["database"], Collection: v["collection"], Index: v["index"]}, nil
}

// FieldName identifies the configuration of one field path.
type FieldName struct {
	Project    string
	Database   string
	Collection string
	Field      string
}

func (n FieldName) String() string {
	return FieldTemplate.mustRender(map[string]string{
		"project": n.Project, "database": n.Database, "collection": n.Collection, "field": n.Field,
	})
}

// CollectionGroupName returns the parent collection group.
func (n FieldName) CollectionGroupName() CollectionGroupName {
	return CollectionGroupName{Project: n.Project, Database: n.Database, Collection: n.Collection}
}

// IsDefault reports whether n names the database-wide default settings.
func (n FieldName) IsDefault() bool {
	return n.Collection == DefaultCollectionGroup && n.Field == DefaultField
}

// ParseFieldName parses a field name.
func ParseFieldName(name string) (FieldName, error) {
	v, ok := FieldTemplate.Match(name)
	if !ok {
		return FieldName{}, mismatch(name, FieldTemplate)
	}
	if err := ValidateDatabaseID(v["database"]); err != nil {
		return FieldName{}, err
	}
	if err := ValidateCollectionID(v["collection"], false); err != nil {
		return FieldName{}, err
	}
	if v["field"] == DefaultField && v["collection"] != DefaultCollectionGroup {
		return FieldName{}, apperrors.Newf(apperrors.ErrInvalidArgument,
			"field %q is only valid in collection group %s", DefaultField, DefaultCollectionGroup)
	}
	return FieldName{Project: v["project"], Database: v["database"], Collection: v["collection"], Field: v["field"]}, nil
}

// LocationName identifies a location of a project.
type LocationName struct {
	Project  string
	Location string
}

func (n LocationName) String() string { return LocationPath(n.Project, n.Location) }

// ParseLocationName parses a location name.
func ParseLocationName(name string) (LocationName, error) {
	v, ok := LocationTemplate.Match(name)
	if !ok {
		return LocationName{}, mismatch(name, LocationTemplate)
	}
	return LocationName{Project: v["project"], Location: v["location"]}, nil
}

// OperationName identifies a long-running operation.
type OperationName struct {
	Project   string
	Database  string
	Operation string
}

func (n OperationName) String() string {
	return OperationTemplate.mustRender(map[string]string{
		"project": n.Project, "database": n.Database, "operation": n.Operation,
	})
}

// DatabaseName returns the database the operation runs against.
func (n OperationName) DatabaseName() DatabaseName {
	return DatabaseName{Project: n.Project, Database: n.Database}
}

// ParseOperationName parses an operation name.
func ParseOperationName(name string) (OperationName, error) {
	v, ok := OperationTemplate.Match(name)
	if !ok {
		return OperationName{}, mismatch(name, OperationTemplate)
	}
	return OperationName{Project: v["project"], Database: v["database"], Operation: v["operation"]}, nil
}

func mismatch(name string, t *Template) error {
	return apperrors.Newf(apperrors.ErrInvalidArgument, "resource name %q does not match %s", name, t)
}
