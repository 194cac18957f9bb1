package admin

import (
	"context"
	"net/url"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
)

// RoutingHeader is the metadata key that carries the addressed resource so
// the service can route the call.
const RoutingHeader = "x-goog-request-params"

// Call is one request to a Method.
type Call struct {
	Method *Method
	// Resource is the value of the request's routing field.
	Resource string
	Request  proto.Message
	// Response receives the decoded reply.
	Response any
}

// RoutingParams renders the x-goog-request-params value of c.
func (c *Call) RoutingParams() string {
	return c.Method.RoutingKey + "=" + url.QueryEscape(c.Resource)
}

// Transport carries calls to the service. Implementations return errors
// that match the pkg/errors sentinels.
type Transport interface {
	Invoke(ctx context.Context, call *Call) error
	Close() error
}
