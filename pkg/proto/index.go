package proto

import (
	"errors"
	"fmt"
	"strings"
)

// QueryScope is the range of documents an index applies to.
type QueryScope int32

const (
	QueryScopeUnspecified QueryScope = iota
	QueryScopeCollection
	QueryScopeCollectionGroup
	QueryScopeCollectionRecursive
)

var queryScopeEnum = newEnum[QueryScope]("QueryScope",
	"QUERY_SCOPE_UNSPECIFIED", "COLLECTION", "COLLECTION_GROUP", "COLLECTION_RECURSIVE")

func (s QueryScope) String() string                { return queryScopeEnum.name(s) }
func (s QueryScope) MarshalJSON() ([]byte, error)  { return queryScopeEnum.marshal(s) }
func (s *QueryScope) UnmarshalJSON(b []byte) error { return queryScopeEnum.unmarshal(b, s) }

// ParseQueryScope converts a value name or number to a QueryScope.
func ParseQueryScope(s string) (QueryScope, error) { return queryScopeEnum.parse(s) }

// ApiScope is the API surface that may use an index.
type ApiScope int32

const (
	ApiScopeAnyAPI ApiScope = iota
	ApiScopeDatastoreModeAPI
)

var apiScopeEnum = newEnum[ApiScope]("ApiScope", "ANY_API", "DATASTORE_MODE_API")

func (s ApiScope) String() string                { return apiScopeEnum.name(s) }
func (s ApiScope) MarshalJSON() ([]byte, error)  { return apiScopeEnum.marshal(s) }
func (s *ApiScope) UnmarshalJSON(b []byte) error { return apiScopeEnum.unmarshal(b, s) }

// IndexState is the serving state of an index.
type IndexState int32

const (
	IndexStateUnspecified IndexState = iota
	IndexStateCreating
	IndexStateReady
	IndexStateNeedsRepair
)

var indexStateEnum = newEnum[IndexState]("IndexState",
	"STATE_UNSPECIFIED", "CREATING", "READY", "NEEDS_REPAIR")

func (s IndexState) String() string                { return indexStateEnum.name(s) }
func (s IndexState) MarshalJSON() ([]byte, error)  { return indexStateEnum.marshal(s) }
func (s *IndexState) UnmarshalJSON(b []byte) error { return indexStateEnum.unmarshal(b, s) }

// ParseIndexState converts a value name or number to an IndexState.
func ParseIndexState(s string) (IndexState, error) { return indexStateEnum.parse(s) }

// Order is the sort direction of an ordered index field.
type Order int32

const (
	OrderUnspecified Order = iota
	OrderAscending
	OrderDescending
)

var orderEnum = newEnum[Order]("Order", "ORDER_UNSPECIFIED", "ASCENDING", "DESCENDING")

func (o Order) String() string                { return orderEnum.name(o) }
func (o Order) MarshalJSON() ([]byte, error)  { return orderEnum.marshal(o) }
func (o *Order) UnmarshalJSON(b []byte) error { return orderEnum.unmarshal(b, o) }

// ParseOrder converts a value name or number to an Order.
func ParseOrder(s string) (Order, error) { return orderEnum.parse(s) }

// ArrayConfig selects array-membership indexing for a field.
type ArrayConfig int32

const (
	ArrayConfigUnspecified ArrayConfig = iota
	ArrayConfigContains
)

var arrayConfigEnum = newEnum[ArrayConfig]("ArrayConfig", "ARRAY_CONFIG_UNSPECIFIED", "CONTAINS")

func (c ArrayConfig) String() string                { return arrayConfigEnum.name(c) }
func (c ArrayConfig) MarshalJSON() ([]byte, error)  { return arrayConfigEnum.marshal(c) }
func (c *ArrayConfig) UnmarshalJSON(b []byte) error { return arrayConfigEnum.unmarshal(b, c) }

// FlatIndex is the brute-force vector index type.
type FlatIndex struct{}

// VectorConfig configures a vector index field.
type VectorConfig struct {
	Dimension int32      `json:"dimension,omitempty"`
	Flat      *FlatIndex `json:"flat,omitempty"`
}

// IndexField is one field of an index. Exactly one of Order, ArrayConfig and
// VectorConfig is set.
type IndexField struct {
	FieldPath    string        `json:"fieldPath,omitempty"`
	Order        Order         `json:"order,omitempty"`
	ArrayConfig  ArrayConfig   `json:"arrayConfig,omitempty"`
	VectorConfig *VectorConfig `json:"vectorConfig,omitempty"`
}

// Mode renders the value mode of f, e.g. "ASCENDING", "CONTAINS" or
// "VECTOR(768)".
func (f *IndexField) Mode() string {
	switch {
	case f.Order != OrderUnspecified:
		return f.Order.String()
	case f.ArrayConfig != ArrayConfigUnspecified:
		return f.ArrayConfig.String()
	case f.VectorConfig != nil:
		return fmt.Sprintf("VECTOR(%d)", f.VectorConfig.Dimension)
	}
	return "UNSPECIFIED"
}

func (f *IndexField) Validate() error {
	modes := 0
	if f.Order != OrderUnspecified {
		modes++
	}
	if f.ArrayConfig != ArrayConfigUnspecified {
		modes++
	}
	if f.VectorConfig != nil {
		modes++
	}
	var errs []error
	if f.FieldPath == "" {
		errs = append(errs, errors.New("field_path is required"))
	}
	if modes != 1 {
		errs = append(errs, fmt.Errorf("field %q: exactly one of order, array_config, vector_config must be set", f.FieldPath))
	}
	if f.VectorConfig != nil && f.VectorConfig.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("field %q: vector dimension must be positive", f.FieldPath))
	}
	errs = append(errs,
		orderEnum.check("order", f.Order),
		arrayConfigEnum.check("array_config", f.ArrayConfig),
	)
	return errors.Join(errs...)
}

func (f *IndexField) equal(o *IndexField) bool {
	if f.FieldPath != o.FieldPath || f.Order != o.Order || f.ArrayConfig != o.ArrayConfig {
		return false
	}
	if (f.VectorConfig == nil) != (o.VectorConfig == nil) {
		return false
	}
	return f.VectorConfig == nil || f.VectorConfig.Dimension == o.VectorConfig.Dimension
}

// Index is a composite (or, inside an IndexConfig, single-field) index.
type Index struct {
	Name       string        `json:"name,omitempty"`
	QueryScope QueryScope    `json:"queryScope,omitempty"`
	ApiScope   ApiScope      `json:"apiScope,omitempty"`
	Fields     []*IndexField `json:"fields,omitempty"`
	State      IndexState    `json:"state,omitempty"`
}

func (*Index) ProtoName() string { return adminPackage + "Index" }

func (i *Index) Validate() error {
	errs := []error{
		queryScopeEnum.check("query_scope", i.QueryScope),
		apiScopeEnum.check("api_scope", i.ApiScope),
		indexStateEnum.check("state", i.State),
	}
	for _, f := range i.Fields {
		if f == nil {
			errs = append(errs, errors.New("fields: nil entry"))
			continue
		}
		errs = append(errs, f.Validate())
	}
	return errors.Join(errs...)
}

// Equivalent reports whether i and o describe the same index definition,
// ignoring name and state.
func (i *Index) Equivalent(o *Index) bool {
	if i.QueryScope != o.QueryScope || i.ApiScope != o.ApiScope || len(i.Fields) != len(o.Fields) {
		return false
	}
	for n := range i.Fields {
		if !i.Fields[n].equal(o.Fields[n]) {
			return false
		}
	}
	return true
}

// Summary renders the index definition on one line, e.g.
// "COLLECTION(city ASCENDING, population DESCENDING)".
func (i *Index) Summary() string {
	parts := make([]string, 0, len(i.Fields))
	for _, f := range i.Fields {
		parts = append(parts, f.FieldPath+" "+f.Mode())
	}
	return i.QueryScope.String() + "(" + strings.Join(parts, ", ") + ")"
}

// Clone returns a deep copy of i.
func (i *Index) Clone() *Index {
	if i == nil {
		return nil
	}
	c := *i
	c.Fields = make([]*IndexField, 0, len(i.Fields))
	for _, f := range i.Fields {
		if f == nil {
			continue
		}
		fc := *f
		if f.VectorConfig != nil {
			vc := *f.VectorConfig
			fc.VectorConfig = &vc
		}
		c.Fields = append(c.Fields, &fc)
	}
	return &c
}
