// Package proto defines the admin v1 message types exchanged between the
// admin client, the sample CLI and the emulator.
//
// These types mirror the google.firestore.admin.v1 Protocol Buffer
// definitions together with the google.longrunning, google.rpc and
// google.cloud.location messages they depend on. They are hand-written and
// serialise using the proto3 JSON mapping: camelCase field names, enums as
// their value names, 64-bit integers as strings, timestamps as RFC 3339,
// durations as "<seconds>s" and Any as an object carrying "@type".
//
// Every message implements Message, so it can be packed into an Any and
// addressed by type URL:
//
//	anyMeta, _ := proto.NewAny(&proto.IndexOperationMetadata{Index: name})
//	anyMeta.TypeURL // "type.googleapis.com/google.firestore.admin.v1.IndexOperationMetadata"
package proto

// DefaultTypeURLPrefix is the prefix used by TypeURL when none is given.
const DefaultTypeURLPrefix = "type.googleapis.com"

const (
	adminPackage    = "google.firestore.admin.v1."
	lroPackage      = "google.longrunning."
	locationPackage = "google.cloud.location."
)

// Message is implemented by every type in this package that has a protobuf
// counterpart.
type Message interface {
	// ProtoName returns the fully-qualified protobuf message name.
	ProtoName() string
}

// Validator is implemented by messages that can check their own invariants.
type Validator interface {
	Validate() error
}

// TypeURL returns the type URL of m under prefix. An empty prefix means
// DefaultTypeURLPrefix.
func TypeURL(prefix string, m Message) string {
	if prefix == "" {
		prefix = DefaultTypeURLPrefix
	}
	return prefix + "/" + m.ProtoName()
}
