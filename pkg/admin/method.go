package admin

import (
	"time"

	"google.golang.org/grpc/codes"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resilience"
)

const (
	adminService    = "/google.firestore.admin.v1.FirestoreAdmin/"
	lroService      = "/google.longrunning.Operations/"
	locationService = "/google.cloud.location.Locations/"
)

// Method describes one remote procedure: its gRPC name, its HTTP binding and
// its retry policy.
type Method struct {
	// FullName is the gRPC method name, e.g.
	// "/google.firestore.admin.v1.FirestoreAdmin/GetIndex".
	FullName string
	// RoutingKey names the request field that addresses the resource. It is
	// sent in x-goog-request-params and substituted into HTTPPath.
	RoutingKey string
	HTTPVerb   string
	// HTTPPath contains a single {RoutingKey} placeholder.
	HTTPPath string
	// Body is "" for no body, "*" for the whole request, or the JSON name of
	// the request field carried as the body.
	Body  string
	Retry RetryPolicy
}

// RetryPolicy selects which failures a method retries.
type RetryPolicy struct {
	Codes        []codes.Code
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Total bounds the time spent across all attempts.
	Total time.Duration
}

// Enabled reports whether any code is retried.
func (p RetryPolicy) Enabled() bool { return len(p.Codes) > 0 }

func (p RetryPolicy) retries(c codes.Code) bool {
	for _, rc := range p.Codes {
		if rc == c {
			return true
		}
	}
	return false
}

func (p RetryPolicy) config(retryable func(error) bool) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:  resilience.UnlimitedAttempts,
		InitialDelay: p.InitialDelay,
		MaxDelay:     p.MaxDelay,
		Multiplier:   p.Multiplier,
		MaxElapsed:   p.Total,
		Retryable:    retryable,
	}
}

var (
	idempotentRetry = RetryPolicy{
		Codes:        []codes.Code{codes.Unavailable, codes.Internal, codes.DeadlineExceeded},
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     60 * time.Second,
		Multiplier:   1.3,
		Total:        60 * time.Second,
	}
	startRetry = RetryPolicy{
		Codes:        []codes.Code{codes.Unavailable},
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     60 * time.Second,
		Multiplier:   1.3,
		Total:        60 * time.Second,
	}
)

var (
	methodCreateIndex = &Method{
		FullName: adminService + "CreateIndex", RoutingKey: "parent",
		HTTPVerb: "POST", HTTPPath: "/v1/{parent}/indexes", Body: "index",
		Retry: startRetry,
	}
	methodListIndexes = &Method{
		FullName: adminService + "ListIndexes", RoutingKey: "parent",
		HTTPVerb: "GET", HTTPPath: "/v1/{parent}/indexes",
		Retry: idempotentRetry,
	}
	methodGetIndex = &Method{
		FullName: adminService + "GetIndex", RoutingKey: "name",
		HTTPVerb: "GET", HTTPPath: "/v1/{name}",
		Retry: idempotentRetry,
	}
	methodDeleteIndex = &Method{
		FullName: adminService + "DeleteIndex", RoutingKey: "name",
		HTTPVerb: "DELETE", HTTPPath: "/v1/{name}",
		Retry: idempotentRetry,
	}
	methodGetField = &Method{
		FullName: adminService + "GetField", RoutingKey: "name",
		HTTPVerb: "GET", HTTPPath: "/v1/{name}",
		Retry: idempotentRetry,
	}
	methodUpdateField = &Method{
		FullName: adminService + "UpdateField", RoutingKey: "field.name",
		HTTPVerb: "PATCH", HTTPPath: "/v1/{field.name}", Body: "field",
		Retry: startRetry,
	}
	methodListFields = &Method{
		FullName: adminService + "ListFields", RoutingKey: "parent",
		HTTPVerb: "GET", HTTPPath: "/v1/{parent}/fields",
		Retry: idempotentRetry,
	}
	methodExportDocuments = &Method{
		FullName: adminService + "ExportDocuments", RoutingKey: "name",
		HTTPVerb: "POST", HTTPPath: "/v1/{name}:exportDocuments", Body: "*",
		Retry: startRetry,
	}
	methodImportDocuments = &Method{
		FullName: adminService + "ImportDocuments", RoutingKey: "name",
		HTTPVerb: "POST", HTTPPath: "/v1/{name}:importDocuments", Body: "*",
		Retry: startRetry,
	}
	methodBulkDeleteDocuments = &Method{
		FullName: adminService + "BulkDeleteDocuments", RoutingKey: "name",
		HTTPVerb: "POST", HTTPPath: "/v1/{name}:bulkDeleteDocuments", Body: "*",
		Retry: startRetry,
	}
	methodCreateDatabase = &Method{
		FullName: adminService + "CreateDatabase", RoutingKey: "parent",
		HTTPVerb: "POST", HTTPPath: "/v1/{parent}/databases", Body: "database",
		Retry: startRetry,
	}
	methodGetDatabase = &Method{
		FullName: adminService + "GetDatabase", RoutingKey: "name",
		HTTPVerb: "GET", HTTPPath: "/v1/{name}",
		Retry: idempotentRetry,
	}
	methodListDatabases = &Method{
		FullName: adminService + "ListDatabases", RoutingKey: "parent",
		HTTPVerb: "GET", HTTPPath: "/v1/{parent}/databases",
		Retry: idempotentRetry,
	}
	methodUpdateDatabase = &Method{
		FullName: adminService + "UpdateDatabase", RoutingKey: "database.name",
		HTTPVerb: "PATCH", HTTPPath: "/v1/{database.name}", Body: "database",
		Retry: startRetry,
	}
	methodDeleteDatabase = &Method{
		FullName: adminService + "DeleteDatabase", RoutingKey: "name",
		HTTPVerb: "DELETE", HTTPPath: "/v1/{name}",
		Retry: startRetry,
	}

	methodGetOperation = &Method{
		FullName: lroService + "GetOperation", RoutingKey: "name",
		HTTPVerb: "GET", HTTPPath: "/v1/{name}",
		Retry: idempotentRetry,
	}
	methodListOperations = &Method{
		FullName: lroService + "ListOperations", RoutingKey: "name",
		HTTPVerb: "GET", HTTPPath: "/v1/{name}/operations",
		Retry: idempotentRetry,
	}
	methodCancelOperation = &Method{
		FullName: lroService + "CancelOperation", RoutingKey: "name",
		HTTPVerb: "POST", HTTPPath: "/v1/{name}:cancel", Body: "*",
		Retry: idempotentRetry,
	}
	methodDeleteOperation = &Method{
		FullName: lroService + "DeleteOperation", RoutingKey: "name",
		HTTPVerb: "DELETE", HTTPPath: "/v1/{name}",
		Retry: idempotentRetry,
	}

	methodGetLocation = &Method{
		FullName: locationService + "GetLocation", RoutingKey: "name",
		HTTPVerb: "GET", HTTPPath: "/v1/{name}",
		Retry: idempotentRetry,
	}
	methodListLocations = &Method{
		FullName: locationService + "ListLocations", RoutingKey: "name",
		HTTPVerb: "GET", HTTPPath: "/v1/{name}/locations",
		Retry: idempotentRetry,
	}
)

// Methods lists every method the client can call, in service order.
func Methods() []*Method {
	return []*Method{
		methodCreateIndex, methodListIndexes, methodGetIndex, methodDeleteIndex,
		methodGetField, methodUpdateField, methodListFields,
		methodExportDocuments, methodImportDocuments, methodBulkDeleteDocuments,
		methodCreateDatabase, methodGetDatabase, methodListDatabases,
		methodUpdateDatabase, methodDeleteDatabase,
		methodGetOperation, methodListOperations, methodCancelOperation, methodDeleteOperation,
		methodGetLocation, methodListLocations,
	}
}

var methodsByName = func() map[string]*Method {
	m := make(map[string]*Method)
	for _, method := range Methods() {
		m[method.FullName] = method
	}
	return m
}()

// MethodByName returns the method with the given gRPC full name.
func MethodByName(fullName string) (*Method, bool) {
	m, ok := methodsByName[fullName]
	return m, ok
}

// ShortName returns the bare method name, e.g. "GetIndex".
func (m *Method) ShortName() string { return shortName(m) }
