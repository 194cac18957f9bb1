package proto

import (
	"errors"
	"fmt"
	"time"
)

func required(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func nonNegative(field string, value int32) error {
	if value < 0 {
		return fmt.Errorf("%s must not be negative", field)
	}
	return nil
}

// ---------- Indexes ----------

// CreateIndexRequest creates a composite index under a collection group.
type CreateIndexRequest struct {
	Parent string `json:"parent,omitempty"`
	Index  *Index `json:"index,omitempty"`
}

func (*CreateIndexRequest) ProtoName() string { return adminPackage + "CreateIndexRequest" }

func (r *CreateIndexRequest) Validate() error {
	if r.Index == nil {
		return errors.Join(required("parent", r.Parent), errors.New("index is required"))
	}
	var fieldsErr error
	if len(r.Index.Fields) == 0 {
		fieldsErr = errors.New("index.fields must not be empty")
	}
	return errors.Join(required("parent", r.Parent), fieldsErr, r.Index.Validate())
}

// ListIndexesRequest lists composite indexes of a collection group.
type ListIndexesRequest struct {
	Parent    string `json:"parent,omitempty"`
	Filter    string `json:"filter,omitempty"`
	PageSize  int32  `json:"pageSize,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
}

func (*ListIndexesRequest) ProtoName() string { return adminPackage + "ListIndexesRequest" }

func (r *ListIndexesRequest) Validate() error {
	return errors.Join(required("parent", r.Parent), nonNegative("page_size", r.PageSize))
}

// ListIndexesResponse is one page of indexes.
type ListIndexesResponse struct {
	Indexes       []*Index `json:"indexes,omitempty"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

func (*ListIndexesResponse) ProtoName() string { return adminPackage + "ListIndexesResponse" }

// GetIndexRequest fetches one index.
type GetIndexRequest struct {
	Name string `json:"name,omitempty"`
}

func (*GetIndexRequest) ProtoName() string { return adminPackage + "GetIndexRequest" }

func (r *GetIndexRequest) Validate() error { return required("name", r.Name) }

// DeleteIndexRequest deletes one index.
type DeleteIndexRequest struct {
	Name string `json:"name,omitempty"`
}

func (*DeleteIndexRequest) ProtoName() string { return adminPackage + "DeleteIndexRequest" }

func (r *DeleteIndexRequest) Validate() error { return required("name", r.Name) }

// ---------- Fields ----------

// UpdateFieldRequest changes the index or TTL configuration of a field.
type UpdateFieldRequest struct {
	Field      *Field     `json:"field,omitempty"`
	UpdateMask *FieldMask `json:"updateMask,omitempty"`
}

func (*UpdateFieldRequest) ProtoName() string { return adminPackage + "UpdateFieldRequest" }

func (r *UpdateFieldRequest) Validate() error {
	if r.Field == nil {
		return errors.New("field is required")
	}
	var maskErr error
	if r.UpdateMask != nil {
		for _, p := range r.UpdateMask.Paths {
			if p != "index_config" && p != "ttl_config" {
				maskErr = errors.Join(maskErr, fmt.Errorf("update_mask: unsupported path %q", p))
			}
		}
	}
	return errors.Join(required("field.name", r.Field.Name), maskErr, r.Field.Validate())
}

// GetFieldRequest fetches the effective configuration of a field.
type GetFieldRequest struct {
	Name string `json:"name,omitempty"`
}

func (*GetFieldRequest) ProtoName() string { return adminPackage + "GetFieldRequest" }

func (r *GetFieldRequest) Validate() error { return required("name", r.Name) }

// ListFieldsRequest lists fields with explicit configuration.
type ListFieldsRequest struct {
	Parent    string `json:"parent,omitempty"`
	Filter    string `json:"filter,omitempty"`
	PageSize  int32  `json:"pageSize,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
}

func (*ListFieldsRequest) ProtoName() string { return adminPackage + "ListFieldsRequest" }

func (r *ListFieldsRequest) Validate() error {
	return errors.Join(required("parent", r.Parent), nonNegative("page_size", r.PageSize))
}

// ListFieldsResponse is one page of fields.
type ListFieldsResponse struct {
	Fields        []*Field `json:"fields,omitempty"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

func (*ListFieldsResponse) ProtoName() string { return adminPackage + "ListFieldsResponse" }

// ---------- Documents ----------

// ExportDocumentsRequest exports documents of a database.
type ExportDocumentsRequest struct {
	Name            string     `json:"name,omitempty"`
	CollectionIDs   []string   `json:"collectionIds,omitempty"`
	OutputURIPrefix string     `json:"outputUriPrefix,omitempty"`
	NamespaceIDs    []string   `json:"namespaceIds,omitempty"`
	SnapshotTime    *time.Time `json:"snapshotTime,omitempty"`
}

func (*ExportDocumentsRequest) ProtoName() string { return adminPackage + "ExportDocumentsRequest" }

func (r *ExportDocumentsRequest) Validate() error { return required("name", r.Name) }

// ImportDocumentsRequest imports documents from a previous export.
type ImportDocumentsRequest struct {
	Name           string   `json:"name,omitempty"`
	CollectionIDs  []string `json:"collectionIds,omitempty"`
	InputURIPrefix string   `json:"inputUriPrefix,omitempty"`
	NamespaceIDs   []string `json:"namespaceIds,omitempty"`
}

func (*ImportDocumentsRequest) ProtoName() string { return adminPackage + "ImportDocumentsRequest" }

func (r *ImportDocumentsRequest) Validate() error {
	return errors.Join(required("name", r.Name), required("input_uri_prefix", r.InputURIPrefix))
}

// BulkDeleteDocumentsRequest deletes documents in bulk.
type BulkDeleteDocumentsRequest struct {
	Name          string   `json:"name,omitempty"`
	CollectionIDs []string `json:"collectionIds,omitempty"`
	NamespaceIDs  []string `json:"namespaceIds,omitempty"`
}

func (*BulkDeleteDocumentsRequest) ProtoName() string {
	return adminPackage + "BulkDeleteDocumentsRequest"
}

func (r *BulkDeleteDocumentsRequest) Validate() error { return required("name", r.Name) }

// ---------- Databases ----------

// CreateDatabaseRequest creates a database under a project.
type CreateDatabaseRequest struct {
	Parent     string    `json:"parent,omitempty"`
	Database   *Database `json:"database,omitempty"`
	DatabaseID string    `json:"databaseId,omitempty"`
}

func (*CreateDatabaseRequest) ProtoName() string { return adminPackage + "CreateDatabaseRequest" }

func (r *CreateDatabaseRequest) Validate() error {
	var dbErr error
	if r.Database == nil {
		dbErr = errors.New("database is required")
	} else {
		dbErr = r.Database.Validate()
	}
	return errors.Join(required("parent", r.Parent), required("database_id", r.DatabaseID), dbErr)
}

// GetDatabaseRequest fetches one database.
type GetDatabaseRequest struct {
	Name string `json:"name,omitempty"`
}

func (*GetDatabaseRequest) ProtoName() string { return adminPackage + "GetDatabaseRequest" }

func (r *GetDatabaseRequest) Validate() error { return required("name", r.Name) }

// ListDatabasesRequest lists the databases of a project.
type ListDatabasesRequest struct {
	Parent      string `json:"parent,omitempty"`
	ShowDeleted bool   `json:"showDeleted,omitempty"`
}

func (*ListDatabasesRequest) ProtoName() string { return adminPackage + "ListDatabasesRequest" }

func (r *ListDatabasesRequest) Validate() error { return required("parent", r.Parent) }

// ListDatabasesResponse lists databases and any locations that could not be
// reached.
type ListDatabasesResponse struct {
	Databases   []*Database `json:"databases,omitempty"`
	Unreachable []string    `json:"unreachable,omitempty"`
}

func (*ListDatabasesResponse) ProtoName() string { return adminPackage + "ListDatabasesResponse" }

// UpdateDatabaseRequest updates database settings.
type UpdateDatabaseRequest struct {
	Database   *Database  `json:"database,omitempty"`
	UpdateMask *FieldMask `json:"updateMask,omitempty"`
}

func (*UpdateDatabaseRequest) ProtoName() string { return adminPackage + "UpdateDatabaseRequest" }

func (r *UpdateDatabaseRequest) Validate() error {
	if r.Database == nil {
		return errors.New("database is required")
	}
	return errors.Join(required("database.name", r.Database.Name), r.Database.Validate())
}

// DeleteDatabaseRequest deletes a database. A non-empty Etag must match the
// current one.
type DeleteDatabaseRequest struct {
	Name string `json:"name,omitempty"`
	Etag string `json:"etag,omitempty"`
}

func (*DeleteDatabaseRequest) ProtoName() string { return adminPackage + "DeleteDatabaseRequest" }

func (r *DeleteDatabaseRequest) Validate() error { return required("name", r.Name) }
