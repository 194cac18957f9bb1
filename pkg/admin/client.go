package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resilience"
)

// Transport kinds accepted by WithTransportKind and config.ClientConfig.
const (
	TransportGRPC = "grpc"
	TransportREST = "rest"
)

const defaultTimeout = 60 * time.Second

type options struct {
	endpoint    string
	kind        string
	apiKey      string
	timeout     time.Duration
	insecure    bool
	breaker     bool
	metrics     *metrics.Metrics
	transport   Transport
	httpClient  *http.Client
	dialOptions []grpc.DialOption
	retry       *RetryPolicy
}

// Option configures a Client.
type Option func(*options)

// WithEndpoint sets the service address: host:port for gRPC, a base URL or
// host:port for REST.
func WithEndpoint(endpoint string) Option { return func(o *options) { o.endpoint = endpoint } }

// WithTransportKind selects TransportGRPC or TransportREST.
func WithTransportKind(kind string) Option { return func(o *options) { o.kind = kind } }

// WithAPIKey authenticates every call with key.
func WithAPIKey(key string) Option { return func(o *options) { o.apiKey = key } }

// WithTimeout bounds each attempt of a call.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithCircuitBreaker fails calls fast after repeated transport failures.
func WithCircuitBreaker() Option { return func(o *options) { o.breaker = true } }

// WithMetrics exports the circuit breaker state to m.
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithTransport uses t instead of dialing an endpoint.
func WithTransport(t Transport) Option { return func(o *options) { o.transport = t } }

// WithHTTPClient sets the HTTP client of the REST transport.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithGRPCDialOptions adds dial options for the gRPC transport.
func WithGRPCDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.dialOptions = append(o.dialOptions, opts...) }
}

// WithRetryPolicy overrides the retry policy of every retrying method.
func WithRetryPolicy(p RetryPolicy) Option { return func(o *options) { o.retry = &p } }

// Client calls the admin, operations and locations services. It is safe for
// concurrent use.
type Client struct {
	transport Transport
	timeout   time.Duration
	breaker   *resilience.CircuitBreaker
	retry     *RetryPolicy
	logger    *slog.Logger
}

// NewClient builds a client from opts.
func NewClient(opts ...Option) (*Client, error) {
	o := options{kind: TransportGRPC, timeout: defaultTimeout, insecure: true}
	for _, opt := range opts {
		opt(&o)
	}
	t := o.transport
	if t == nil {
		var err error
		if t, err = newTransport(o); err != nil {
			return nil, err
		}
	}
	c := &Client{
		transport: t,
		timeout:   o.timeout,
		retry:     o.retry,
		logger:    slog.Default().With("component", "admin-client"),
	}
	if o.breaker {
		c.breaker = resilience.NewCircuitBreaker("admin-"+o.kind, resilience.CircuitBreakerConfig{
			IsFailure: transportFailure,
			OnStateChange: func(name string, _, to resilience.State) {
				if o.metrics != nil {
					o.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				}
			},
		})
	}
	return c, nil
}

// NewClientFromConfig builds a client from the client section of the config.
func NewClientFromConfig(cfg config.ClientConfig, opts ...Option) (*Client, error) {
	base := []Option{
		WithEndpoint(cfg.Endpoint),
		WithTransportKind(cfg.Transport),
		WithAPIKey(cfg.APIKey),
		func(o *options) { o.insecure = cfg.Insecure },
	}
	if cfg.Timeout > 0 {
		base = append(base, WithTimeout(cfg.Timeout))
	}
	if cfg.CircuitBreaker {
		base = append(base, WithCircuitBreaker())
	}
	return NewClient(append(base, opts...)...)
}

func newTransport(o options) (Transport, error) {
	if o.endpoint == "" {
		return nil, apperrors.New(apperrors.ErrInvalidArgument, "endpoint is required")
	}
	switch o.kind {
	case TransportGRPC, "":
		if !o.insecure && len(o.dialOptions) == 0 {
			return nil, apperrors.New(apperrors.ErrInvalidArgument, "secure gRPC needs transport credentials in dial options")
		}
		return DialGRPC(o.endpoint, o.apiKey, o.dialOptions...)
	case TransportREST:
		base := o.endpoint
		if !strings.Contains(base, "://") {
			scheme := "https://"
			if o.insecure {
				scheme = "http://"
			}
			base = scheme + base
		}
		return NewRESTTransport(base, o.apiKey, o.httpClient), nil
	}
	return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "unknown transport %q", o.kind)
}

// Close releases the transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// transportFailure reports whether err says the service or the path to it
// is unhealthy, as opposed to a rejected request.
func transportFailure(err error) bool {
	switch apperrors.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Internal, codes.Unknown:
		return true
	}
	return false
}

// invoke validates req, then sends it with the method's retry policy.
func (c *Client) invoke(ctx context.Context, m *Method, resource string, req proto.Message, resp any) error {
	if v, ok := req.(proto.Validator); ok {
		if err := v.Validate(); err != nil {
			return apperrors.Newf(apperrors.ErrInvalidArgument, "%s: %v", shortName(m), err)
		}
	}
	call := &Call{Method: m, Resource: resource, Request: req, Response: resp}

	policy := m.Retry
	if c.retry != nil && policy.Enabled() {
		policy = *c.retry
	}
	if !policy.Enabled() {
		return c.send(ctx, call)
	}
	retryable := func(err error) bool {
		return !errors.Is(err, resilience.ErrCircuitOpen) && policy.retries(apperrors.Code(err))
	}
	return resilience.Retry(ctx, shortName(m), policy.config(retryable), func() error {
		return c.send(ctx, call)
	})
}

func (c *Client) send(ctx context.Context, call *Call) error {
	attempt := func() error {
		actx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		return c.transport.Invoke(actx, call)
	}
	if c.breaker == nil {
		return attempt()
	}
	err := c.breaker.Execute(attempt)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("%w: %w", apperrors.ErrUnavailable, err)
	}
	return err
}

func shortName(m *Method) string {
	if i := strings.LastIndexByte(m.FullName, '/'); i >= 0 {
		return m.FullName[i+1:]
	}
	return m.FullName
}
