package proto

import (
	"errors"
)

// TtlState is the state of a TTL policy on a field.
type TtlState int32

const (
	TtlStateUnspecified TtlState = iota
	TtlStateCreating
	TtlStateActive
	TtlStateNeedsRepair
)

var ttlStateEnum = newEnum[TtlState]("TtlState",
	"STATE_UNSPECIFIED", "CREATING", "ACTIVE", "NEEDS_REPAIR")

func (s TtlState) String() string                { return ttlStateEnum.name(s) }
func (s TtlState) MarshalJSON() ([]byte, error)  { return ttlStateEnum.marshal(s) }
func (s *TtlState) UnmarshalJSON(b []byte) error { return ttlStateEnum.unmarshal(b, s) }

// TtlConfig marks a timestamp field as the expiry time of its documents.
type TtlConfig struct {
	State TtlState `json:"state,omitempty"`
}

// IndexConfig is the single-field index configuration of a Field.
type IndexConfig struct {
	Indexes            []*Index `json:"indexes,omitempty"`
	UsesAncestorConfig bool     `json:"usesAncestorConfig,omitempty"`
	AncestorField      string   `json:"ancestorField,omitempty"`
	Reverting          bool     `json:"reverting,omitempty"`
}

// Clone returns a deep copy of c.
func (c *IndexConfig) Clone() *IndexConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.Indexes = make([]*Index, 0, len(c.Indexes))
	for _, idx := range c.Indexes {
		out.Indexes = append(out.Indexes, idx.Clone())
	}
	return &out
}

// Field holds the index and TTL configuration of one document field within a
// collection group.
type Field struct {
	Name        string       `json:"name,omitempty"`
	IndexConfig *IndexConfig `json:"indexConfig,omitempty"`
	TtlConfig   *TtlConfig   `json:"ttlConfig,omitempty"`
}

func (*Field) ProtoName() string { return adminPackage + "Field" }

func (f *Field) Validate() error {
	var errs []error
	if f.IndexConfig != nil {
		for _, idx := range f.IndexConfig.Indexes {
			if idx == nil {
				errs = append(errs, errors.New("index_config.indexes: nil entry"))
				continue
			}
			if len(idx.Fields) > 1 {
				errs = append(errs, errors.New("index_config.indexes: single-field indexes take at most one field"))
			}
			errs = append(errs, idx.Validate())
		}
	}
	if f.TtlConfig != nil {
		errs = append(errs, ttlStateEnum.check("ttl_config.state", f.TtlConfig.State))
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy of f.
func (f *Field) Clone() *Field {
	if f == nil {
		return nil
	}
	c := *f
	c.IndexConfig = f.IndexConfig.Clone()
	if f.TtlConfig != nil {
		t := *f.TtlConfig
		c.TtlConfig = &t
	}
	return &c
}
