package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ---------- google.protobuf.Any ----------

// Any carries an arbitrary message together with its type URL. Value holds
// the JSON object of the packed message without the "@type" member.
type Any struct {
	TypeURL string
	Value   json.RawMessage
}

// NewAny packs m into an Any using DefaultTypeURLPrefix.
func NewAny(m Message) (*Any, error) {
	value, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", m.ProtoName(), err)
	}
	return &Any{TypeURL: TypeURL("", m), Value: value}, nil
}

// MustAny is NewAny for messages that are known to marshal.
func MustAny(m Message) *Any {
	a, err := NewAny(m)
	if err != nil {
		panic(err)
	}
	return a
}

// MessageName returns the fully-qualified message name from the type URL.
func (a *Any) MessageName() string {
	if i := strings.LastIndexByte(a.TypeURL, '/'); i >= 0 {
		return a.TypeURL[i+1:]
	}
	return a.TypeURL
}

// Is reports whether a holds a message of the same type as m.
func (a *Any) Is(m Message) bool {
	return a != nil && a.MessageName() == m.ProtoName()
}

// UnmarshalTo decodes the packed message into m. It fails if the type URL
// does not name m's type.
func (a *Any) UnmarshalTo(m Message) error {
	if a == nil {
		return errors.New("unpacking nil Any")
	}
	if !a.Is(m) {
		return fmt.Errorf("type mismatch: Any holds %s, want %s", a.MessageName(), m.ProtoName())
	}
	if len(a.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(a.Value, m); err != nil {
		return fmt.Errorf("unpacking %s: %w", m.ProtoName(), err)
	}
	return nil
}

func (a Any) MarshalJSON() ([]byte, error) {
	typeURL, err := json.Marshal(a.TypeURL)
	if err != nil {
		return nil, err
	}
	value := bytes.TrimSpace(a.Value)
	if len(value) < 2 || value[0] != '{' {
		return []byte(`{"@type":` + string(typeURL) + `}`), nil
	}
	inner := bytes.TrimSpace(value[1 : len(value)-1])
	var buf bytes.Buffer
	buf.WriteString(`{"@type":`)
	buf.Write(typeURL)
	if len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *Any) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decoding Any: %w", err)
	}
	rawType, ok := fields["@type"]
	if !ok {
		return errors.New("decoding Any: missing @type")
	}
	if err := json.Unmarshal(rawType, &a.TypeURL); err != nil {
		return fmt.Errorf("decoding Any @type: %w", err)
	}
	delete(fields, "@type")
	value, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	a.Value = value
	return nil
}

// ---------- google.protobuf.Empty ----------

// Empty is returned by RPCs without a meaningful response.
type Empty struct{}

func (*Empty) ProtoName() string { return "google.protobuf.Empty" }

// ---------- google.rpc.Status ----------

// Status is the error model carried by a failed Operation.
type Status struct {
	Code    int32  `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details []*Any `json:"details,omitempty"`
}

func (*Status) ProtoName() string { return "google.rpc.Status" }

// ---------- google.protobuf.Duration ----------

// Duration is a time.Duration encoded as "<seconds>s".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string {
	return strconv.FormatFloat(time.Duration(d).Seconds(), 'f', -1, 64) + "s"
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding Duration: %w", err)
	}
	if !strings.HasSuffix(s, "s") {
		return fmt.Errorf("decoding Duration: %q lacks the s suffix", s)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("decoding Duration: %w", err)
	}
	*d = Duration(parsed)
	return nil
}

// ---------- google.protobuf.FieldMask ----------

// FieldMask lists snake_case field paths. Its JSON form is a single string
// of comma-separated camelCase paths.
type FieldMask struct {
	Paths []string
}

// NewFieldMask builds a mask from snake_case or camelCase paths.
func NewFieldMask(paths ...string) *FieldMask {
	m := &FieldMask{Paths: make([]string, 0, len(paths))}
	for _, p := range paths {
		m.Paths = append(m.Paths, toSnake(p))
	}
	return m
}

// Contains reports whether path (snake_case) is covered by the mask.
func (m *FieldMask) Contains(path string) bool {
	if m == nil {
		return false
	}
	for _, p := range m.Paths {
		if p == path || strings.HasPrefix(path, p+".") {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the mask lists no paths.
func (m *FieldMask) IsEmpty() bool {
	return m == nil || len(m.Paths) == 0
}

func (m FieldMask) MarshalJSON() ([]byte, error) {
	camel := make([]string, 0, len(m.Paths))
	for _, p := range m.Paths {
		camel = append(camel, toCamel(p))
	}
	return json.Marshal(strings.Join(camel, ","))
}

func (m *FieldMask) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding FieldMask: %w", err)
	}
	m.Paths = nil
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			m.Paths = append(m.Paths, toSnake(p))
		}
	}
	return nil
}

func toCamel(path string) string {
	var b strings.Builder
	upper := false
	for _, r := range path {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toSnake(path string) string {
	var b strings.Builder
	for _, r := range path {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
