package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// enum maps the numeric values of a protobuf enum to their names. Values are
// dense and start at zero, which holds for every enum in this package.
type enum[T ~int32] struct {
	typeName string
	names    []string
	byName   map[string]T
}

func newEnum[T ~int32](typeName string, names ...string) enum[T] {
	e := enum[T]{
		typeName: typeName,
		names:    names,
		byName:   make(map[string]T, len(names)),
	}
	for i, n := range names {
		e.byName[n] = T(i)
	}
	return e
}

func (e enum[T]) name(v T) string {
	if v >= 0 && int(v) < len(e.names) {
		return e.names[v]
	}
	return strconv.Itoa(int(v))
}

func (e enum[T]) valid(v T) bool {
	return v >= 0 && int(v) < len(e.names)
}

func (e enum[T]) parse(s string) (T, error) {
	if v, ok := e.byName[s]; ok {
		return v, nil
	}
	if n, err := strconv.Atoi(s); err == nil && e.valid(T(n)) {
		return T(n), nil
	}
	return 0, fmt.Errorf("%s: unknown value %q", e.typeName, s)
}

func (e enum[T]) marshal(v T) ([]byte, error) {
	if !e.valid(v) {
		return json.Marshal(int32(v))
	}
	return json.Marshal(e.names[v])
}

// unmarshal accepts either the value name or its number, like the
// fromObject conversion of generated bindings.
func (e enum[T]) unmarshal(data []byte, v *T) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%s: %w", e.typeName, err)
		}
		parsed, err := e.parse(s)
		if err != nil {
			return err
		}
		*v = parsed
		return nil
	}
	var n int32
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%s: %w", e.typeName, err)
	}
	if !e.valid(T(n)) {
		return fmt.Errorf("%s: value %d out of range", e.typeName, n)
	}
	*v = T(n)
	return nil
}

func (e enum[T]) check(field string, v T) error {
	if !e.valid(v) {
		return fmt.Errorf("%s: invalid %s value %d", field, e.typeName, int32(v))
	}
	return nil
}
