package proto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Order
		wantErr bool
	}{
		{"by name", `"DESCENDING"`, OrderDescending, false},
		{"by number", `1`, OrderAscending, false},
		{"numeric string", `"2"`, OrderDescending, false},
		{"null", `null`, OrderUnspecified, false},
		{"unknown name", `"SIDEWAYS"`, 0, true},
		{"out of range", `7`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o Order
			err := json.Unmarshal([]byte(tt.input), &o)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, o)
		})
	}

	b, err := json.Marshal(QueryScopeCollectionGroup)
	require.NoError(t, err)
	assert.Equal(t, `"COLLECTION_GROUP"`, string(b))
}

func TestTypeURL(t *testing.T) {
	assert.Equal(t, "type.googleapis.com/google.firestore.admin.v1.Index", TypeURL("", &Index{}))
	assert.Equal(t, "example.com/google.longrunning.Operation", TypeURL("example.com", &Operation{}))
	assert.Equal(t, "type.googleapis.com/google.protobuf.Empty", TypeURL("", &Empty{}))
	assert.Equal(t, "type.googleapis.com/google.cloud.location.Location", TypeURL("", &Location{}))
}

func TestAnyPacking(t *testing.T) {
	meta := &IndexOperationMetadata{
		Index:             "projects/p/databases/d/collectionGroups/c/indexes/i",
		State:             OperationStateProcessing,
		ProgressDocuments: &Progress{EstimatedWork: 10, CompletedWork: 4},
	}
	a, err := NewAny(meta)
	require.NoError(t, err)

	b, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"@type": "type.googleapis.com/google.firestore.admin.v1.IndexOperationMetadata",
		"index": "projects/p/databases/d/collectionGroups/c/indexes/i",
		"state": "PROCESSING",
		"progressDocuments": {"estimatedWork": "10", "completedWork": "4"}
	}`, string(b))

	var decoded Any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.True(t, decoded.Is(&IndexOperationMetadata{}))

	var got IndexOperationMetadata
	require.NoError(t, decoded.UnmarshalTo(&got))
	assert.Equal(t, meta.Index, got.Index)
	assert.Equal(t, int64(4), got.ProgressDocuments.CompletedWork)

	err = decoded.UnmarshalTo(&FieldOperationMetadata{})
	assert.ErrorContains(t, err, "type mismatch")
}

func TestAnyWithoutFields(t *testing.T) {
	b, err := json.Marshal(MustAny(&Empty{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"@type":"type.googleapis.com/google.protobuf.Empty"}`, string(b))

	var a Any
	assert.Error(t, json.Unmarshal([]byte(`{"value":1}`), &a))
}

func TestOperationResult(t *testing.T) {
	op := &Operation{Name: "projects/p/databases/d/operations/x"}
	require.NoError(t, op.SetMetadata(&ExportDocumentsMetadata{OperationState: OperationStateProcessing}))
	assert.False(t, op.Done)
	require.NoError(t, op.Validate())

	require.NoError(t, op.SetResponse(&ExportDocumentsResponse{OutputURIPrefix: "file:///tmp/x"}))
	assert.True(t, op.Done)
	require.NoError(t, op.Validate())

	var resp ExportDocumentsResponse
	require.NoError(t, op.Response.UnmarshalTo(&resp))
	assert.Equal(t, "file:///tmp/x", resp.OutputURIPrefix)

	op.SetError(&Status{Code: 5, Message: "gone"})
	assert.Nil(t, op.Response)
	require.NoError(t, op.Validate())

	clone := op.Clone()
	clone.Error.Message = "changed"
	assert.Equal(t, "gone", op.Error.Message)

	bad := &Operation{Error: &Status{Code: 2}}
	assert.Error(t, bad.Validate())
}

func TestDurationJSON(t *testing.T) {
	d := Duration(90 * time.Minute)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"5400s"`, string(b))

	var got Duration
	require.NoError(t, json.Unmarshal([]byte(`"1.5s"`), &got))
	assert.Equal(t, 1500*time.Millisecond, got.Std())

	assert.Error(t, json.Unmarshal([]byte(`"5m"`), &got))
}

func TestFieldMaskJSON(t *testing.T) {
	m := NewFieldMask("deleteProtectionState", "concurrency_mode")
	assert.Equal(t, []string{"delete_protection_state", "concurrency_mode"}, m.Paths)

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"deleteProtectionState,concurrencyMode"`, string(b))

	var got FieldMask
	require.NoError(t, json.Unmarshal([]byte(`"indexConfig, ttlConfig"`), &got))
	assert.Equal(t, []string{"index_config", "ttl_config"}, got.Paths)
	assert.True(t, got.Contains("ttl_config"))
	assert.True(t, got.Contains("index_config.indexes"))
	assert.False(t, got.Contains("index"))

	var nilMask *FieldMask
	assert.True(t, nilMask.IsEmpty())
}

func TestIndexFieldValidate(t *testing.T) {
	tests := []struct {
		name    string
		field   IndexField
		wantErr bool
	}{
		{"ordered", IndexField{FieldPath: "a", Order: OrderAscending}, false},
		{"array", IndexField{FieldPath: "tags", ArrayConfig: ArrayConfigContains}, false},
		{"vector", IndexField{FieldPath: "emb", VectorConfig: &VectorConfig{Dimension: 3, Flat: &FlatIndex{}}}, false},
		{"no mode", IndexField{FieldPath: "a"}, true},
		{"two modes", IndexField{FieldPath: "a", Order: OrderAscending, ArrayConfig: ArrayConfigContains}, true},
		{"zero dimension", IndexField{FieldPath: "emb", VectorConfig: &VectorConfig{}}, true},
		{"missing path", IndexField{Order: OrderDescending}, true},
		{"bad order", IndexField{FieldPath: "a", Order: Order(9)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.field.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIndexEquivalentAndSummary(t *testing.T) {
	a := &Index{
		Name:       "x",
		QueryScope: QueryScopeCollection,
		Fields: []*IndexField{
			{FieldPath: "city", Order: OrderAscending},
			{FieldPath: "population", Order: OrderDescending},
		},
		State: IndexStateReady,
	}
	b := a.Clone()
	b.Name = "y"
	b.State = IndexStateCreating
	assert.True(t, a.Equivalent(b))

	b.Fields[1].Order = OrderAscending
	assert.False(t, a.Equivalent(b))
	assert.Equal(t, OrderDescending, a.Fields[1].Order)

	assert.Equal(t, "COLLECTION(city ASCENDING, population DESCENDING)", a.Summary())
}

func TestDatabaseJSON(t *testing.T) {
	period := Duration(time.Hour)
	db := &Database{
		Name:                   "projects/p/databases/(default)",
		Type:                   DatabaseTypeFirestoreNative,
		ConcurrencyMode:        ConcurrencyModePessimistic,
		VersionRetentionPeriod: &period,
		DeleteProtectionState:  DeleteProtectionDisabled,
	}
	b, err := json.Marshal(db)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "projects/p/databases/(default)",
		"type": "FIRESTORE_NATIVE",
		"concurrencyMode": "PESSIMISTIC",
		"versionRetentionPeriod": "3600s",
		"deleteProtectionState": "DELETE_PROTECTION_DISABLED"
	}`, string(b))

	var got Database
	require.NoError(t, json.Unmarshal([]byte(`{"type": 2, "concurrencyMode": "OPTIMISTIC"}`), &got))
	assert.Equal(t, DatabaseTypeDatastoreMode, got.Type)
	assert.Equal(t, ConcurrencyModeOptimistic, got.ConcurrencyMode)

	c := db.Clone()
	*c.VersionRetentionPeriod = Duration(time.Minute)
	assert.Equal(t, Duration(time.Hour), *db.VersionRetentionPeriod)
}

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     Validator
		wantErr string
	}{
		{"create index ok", &CreateIndexRequest{
			Parent: "projects/p/databases/d/collectionGroups/c",
			Index:  &Index{QueryScope: QueryScopeCollection, Fields: []*IndexField{{FieldPath: "a", Order: OrderAscending}}},
		}, ""},
		{"create index no fields", &CreateIndexRequest{Parent: "x", Index: &Index{}}, "fields must not be empty"},
		{"create index no parent", &CreateIndexRequest{Index: &Index{Fields: []*IndexField{{FieldPath: "a", Order: OrderAscending}}}}, "parent is required"},
		{"list negative page", &ListIndexesRequest{Parent: "x", PageSize: -1}, "page_size"},
		{"update field mask", &UpdateFieldRequest{Field: &Field{Name: "f"}, UpdateMask: NewFieldMask("name")}, "unsupported path"},
		{"update field ok", &UpdateFieldRequest{Field: &Field{Name: "f", TtlConfig: &TtlConfig{}}, UpdateMask: NewFieldMask("ttl_config")}, ""},
		{"import needs prefix", &ImportDocumentsRequest{Name: "d"}, "input_uri_prefix"},
		{"create database id", &CreateDatabaseRequest{Parent: "projects/p", Database: &Database{}}, "database_id"},
		{"update database nil", &UpdateDatabaseRequest{}, "database is required"},
		{"get operation", &GetOperationRequest{}, "name is required"},
		{"list locations", &ListLocationsRequest{Name: "projects/p"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestFieldValidateSingleFieldIndexes(t *testing.T) {
	f := &Field{
		Name: "f",
		IndexConfig: &IndexConfig{Indexes: []*Index{{
			QueryScope: QueryScopeCollection,
			Fields: []*IndexField{
				{FieldPath: "a", Order: OrderAscending},
				{FieldPath: "b", Order: OrderAscending},
			},
		}}},
	}
	assert.ErrorContains(t, f.Validate(), "at most one field")
}
