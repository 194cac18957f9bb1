package proto

import (
	"errors"
	"time"
)

// OperationState describes the lifecycle phase of a long-running operation.
type OperationState int32

const (
	OperationStateUnspecified OperationState = iota
	OperationStateInitializing
	OperationStateProcessing
	OperationStateCancelling
	OperationStateFinalizing
	OperationStateSuccessful
	OperationStateFailed
	OperationStateCancelled
)

var operationStateEnum = newEnum[OperationState]("OperationState",
	"OPERATION_STATE_UNSPECIFIED", "INITIALIZING", "PROCESSING", "CANCELLING",
	"FINALIZING", "SUCCESSFUL", "FAILED", "CANCELLED")

func (s OperationState) String() string                { return operationStateEnum.name(s) }
func (s OperationState) MarshalJSON() ([]byte, error)  { return operationStateEnum.marshal(s) }
func (s *OperationState) UnmarshalJSON(b []byte) error { return operationStateEnum.unmarshal(b, s) }

// Terminal reports whether no further transitions follow s.
func (s OperationState) Terminal() bool {
	return s == OperationStateSuccessful || s == OperationStateFailed || s == OperationStateCancelled
}

// Progress measures work done by an operation, in documents or bytes.
type Progress struct {
	EstimatedWork int64 `json:"estimatedWork,omitempty,string"`
	CompletedWork int64 `json:"completedWork,omitempty,string"`
}

// Operation is a handle on server-side asynchronous work.
type Operation struct {
	Name     string  `json:"name,omitempty"`
	Metadata *Any    `json:"metadata,omitempty"`
	Done     bool    `json:"done,omitempty"`
	Error    *Status `json:"error,omitempty"`
	Response *Any    `json:"response,omitempty"`
}

func (*Operation) ProtoName() string { return lroPackage + "Operation" }

func (o *Operation) Validate() error {
	if o.Error != nil && o.Response != nil {
		return errors.New("operation: error and response are mutually exclusive")
	}
	if !o.Done && (o.Error != nil || o.Response != nil) {
		return errors.New("operation: result set on an unfinished operation")
	}
	return nil
}

// SetMetadata packs m into the operation's metadata.
func (o *Operation) SetMetadata(m Message) error {
	a, err := NewAny(m)
	if err != nil {
		return err
	}
	o.Metadata = a
	return nil
}

// SetResponse marks the operation done with response m.
func (o *Operation) SetResponse(m Message) error {
	a, err := NewAny(m)
	if err != nil {
		return err
	}
	o.Done = true
	o.Error = nil
	o.Response = a
	return nil
}

// SetError marks the operation done with the failure st.
func (o *Operation) SetError(st *Status) {
	o.Done = true
	o.Response = nil
	o.Error = st
}

// Clone returns a deep copy of o.
func (o *Operation) Clone() *Operation {
	if o == nil {
		return nil
	}
	c := *o
	c.Metadata = cloneAny(o.Metadata)
	c.Response = cloneAny(o.Response)
	if o.Error != nil {
		st := *o.Error
		c.Error = &st
	}
	return &c
}

func cloneAny(a *Any) *Any {
	if a == nil {
		return nil
	}
	return &Any{TypeURL: a.TypeURL, Value: append([]byte(nil), a.Value...)}
}

// ---------- Operation metadata ----------

// IndexOperationMetadata is the metadata of a CreateIndex operation.
type IndexOperationMetadata struct {
	StartTime         *time.Time     `json:"startTime,omitempty"`
	EndTime           *time.Time     `json:"endTime,omitempty"`
	Index             string         `json:"index,omitempty"`
	State             OperationState `json:"state,omitempty"`
	ProgressDocuments *Progress      `json:"progressDocuments,omitempty"`
	ProgressBytes     *Progress      `json:"progressBytes,omitempty"`
}

func (*IndexOperationMetadata) ProtoName() string { return adminPackage + "IndexOperationMetadata" }

// ChangeType tells whether a delta adds or removes configuration.
type ChangeType int32

const (
	ChangeTypeUnspecified ChangeType = iota
	ChangeTypeAdd
	ChangeTypeRemove
)

var changeTypeEnum = newEnum[ChangeType]("ChangeType", "CHANGE_TYPE_UNSPECIFIED", "ADD", "REMOVE")

func (c ChangeType) String() string                { return changeTypeEnum.name(c) }
func (c ChangeType) MarshalJSON() ([]byte, error)  { return changeTypeEnum.marshal(c) }
func (c *ChangeType) UnmarshalJSON(b []byte) error { return changeTypeEnum.unmarshal(b, c) }

// IndexConfigDelta is one single-field index added or removed by UpdateField.
type IndexConfigDelta struct {
	ChangeType ChangeType `json:"changeType,omitempty"`
	Index      *Index     `json:"index,omitempty"`
}

// TtlConfigDelta records whether UpdateField adds or removes a TTL policy.
type TtlConfigDelta struct {
	ChangeType ChangeType `json:"changeType,omitempty"`
}

// FieldOperationMetadata is the metadata of an UpdateField operation.
type FieldOperationMetadata struct {
	StartTime         *time.Time          `json:"startTime,omitempty"`
	EndTime           *time.Time          `json:"endTime,omitempty"`
	Field             string              `json:"field,omitempty"`
	IndexConfigDeltas []*IndexConfigDelta `json:"indexConfigDeltas,omitempty"`
	State             OperationState      `json:"state,omitempty"`
	ProgressDocuments *Progress           `json:"progressDocuments,omitempty"`
	ProgressBytes     *Progress           `json:"progressBytes,omitempty"`
	TtlConfigDelta    *TtlConfigDelta     `json:"ttlConfigDelta,omitempty"`
}

func (*FieldOperationMetadata) ProtoName() string { return adminPackage + "FieldOperationMetadata" }

// ExportDocumentsMetadata is the metadata of an ExportDocuments operation.
type ExportDocumentsMetadata struct {
	StartTime         *time.Time     `json:"startTime,omitempty"`
	EndTime           *time.Time     `json:"endTime,omitempty"`
	OperationState    OperationState `json:"operationState,omitempty"`
	ProgressDocuments *Progress      `json:"progressDocuments,omitempty"`
	ProgressBytes     *Progress      `json:"progressBytes,omitempty"`
	CollectionIDs     []string       `json:"collectionIds,omitempty"`
	OutputURIPrefix   string         `json:"outputUriPrefix,omitempty"`
	NamespaceIDs      []string       `json:"namespaceIds,omitempty"`
	SnapshotTime      *time.Time     `json:"snapshotTime,omitempty"`
}

func (*ExportDocumentsMetadata) ProtoName() string { return adminPackage + "ExportDocumentsMetadata" }

// ImportDocumentsMetadata is the metadata of an ImportDocuments operation.
type ImportDocumentsMetadata struct {
	StartTime         *time.Time     `json:"startTime,omitempty"`
	EndTime           *time.Time     `json:"endTime,omitempty"`
	OperationState    OperationState `json:"operationState,omitempty"`
	ProgressDocuments *Progress      `json:"progressDocuments,omitempty"`
	ProgressBytes     *Progress      `json:"progressBytes,omitempty"`
	CollectionIDs     []string       `json:"collectionIds,omitempty"`
	InputURIPrefix    string         `json:"inputUriPrefix,omitempty"`
	NamespaceIDs      []string       `json:"namespaceIds,omitempty"`
}

func (*ImportDocumentsMetadata) ProtoName() string { return adminPackage + "ImportDocumentsMetadata" }

// BulkDeleteDocumentsMetadata is the metadata of a BulkDeleteDocuments
// operation.
type BulkDeleteDocumentsMetadata struct {
	StartTime         *time.Time     `json:"startTime,omitempty"`
	EndTime           *time.Time     `json:"endTime,omitempty"`
	OperationState    OperationState `json:"operationState,omitempty"`
	ProgressDocuments *Progress      `json:"progressDocuments,omitempty"`
	ProgressBytes     *Progress      `json:"progressBytes,omitempty"`
	CollectionIDs     []string       `json:"collectionIds,omitempty"`
	NamespaceIDs      []string       `json:"namespaceIds,omitempty"`
	SnapshotTime      *time.Time     `json:"snapshotTime,omitempty"`
}

func (*BulkDeleteDocumentsMetadata) ProtoName() string {
	return adminPackage + "BulkDeleteDocumentsMetadata"
}

// ExportDocumentsResponse is the result of a successful export.
type ExportDocumentsResponse struct {
	OutputURIPrefix string `json:"outputUriPrefix,omitempty"`
}

func (*ExportDocumentsResponse) ProtoName() string { return adminPackage + "ExportDocumentsResponse" }

// BulkDeleteDocumentsResponse is the (empty) result of a bulk delete.
type BulkDeleteDocumentsResponse struct{}

func (*BulkDeleteDocumentsResponse) ProtoName() string {
	return adminPackage + "BulkDeleteDocumentsResponse"
}

// ---------- google.longrunning.Operations requests ----------

// GetOperationRequest fetches the latest state of an operation.
type GetOperationRequest struct {
	Name string `json:"name,omitempty"`
}

func (*GetOperationRequest) ProtoName() string { return lroPackage + "GetOperationRequest" }

func (r *GetOperationRequest) Validate() error { return required("name", r.Name) }

// ListOperationsRequest lists operations under a database.
type ListOperationsRequest struct {
	Name      string `json:"name,omitempty"`
	Filter    string `json:"filter,omitempty"`
	PageSize  int32  `json:"pageSize,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
}

func (*ListOperationsRequest) ProtoName() string { return lroPackage + "ListOperationsRequest" }

func (r *ListOperationsRequest) Validate() error {
	return errors.Join(required("name", r.Name), nonNegative("page_size", r.PageSize))
}

// ListOperationsResponse is one page of operations.
type ListOperationsResponse struct {
	Operations    []*Operation `json:"operations,omitempty"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
}

func (*ListOperationsResponse) ProtoName() string { return lroPackage + "ListOperationsResponse" }

// CancelOperationRequest asks the server to stop an operation.
type CancelOperationRequest struct {
	Name string `json:"name,omitempty"`
}

func (*CancelOperationRequest) ProtoName() string { return lroPackage + "CancelOperationRequest" }

func (r *CancelOperationRequest) Validate() error { return required("name", r.Name) }

// DeleteOperationRequest forgets an operation record.
type DeleteOperationRequest struct {
	Name string `json:"name,omitempty"`
}

func (*DeleteOperationRequest) ProtoName() string { return lroPackage + "DeleteOperationRequest" }

func (r *DeleteOperationRequest) Validate() error { return required("name", r.Name) }
