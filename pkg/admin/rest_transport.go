package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"google.golang.org/grpc/codes"

	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/middleware"
)

// APIKeyHeader carries the API key on REST calls.
const APIKeyHeader = "x-goog-api-key"

// RESTTransport calls the HTTP/JSON binding of the service.
type RESTTransport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRESTTransport targets baseURL, e.g. "http://localhost:8091". A nil
// httpClient means http.DefaultClient.
func NewRESTTransport(baseURL, apiKey string, httpClient *http.Client) *RESTTransport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RESTTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (t *RESTTransport) Invoke(ctx context.Context, call *Call) error {
	req, err := t.buildRequest(ctx, call)
	if err != nil {
		return err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.Newf(apperrors.ErrUnavailable, "%s: %v", call.Method.FullName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Newf(apperrors.ErrUnavailable, "reading response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeErrorBody(resp.StatusCode, data)
	}
	if call.Response == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, call.Response); err != nil {
		return apperrors.Newf(apperrors.ErrInternal, "decoding %s response: %v", call.Method.FullName, err)
	}
	return nil
}

func (t *RESTTransport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

func (t *RESTTransport) buildRequest(ctx context.Context, call *Call) (*http.Request, error) {
	m := call.Method
	fields := map[string]json.RawMessage{}
	raw, err := json.Marshal(call.Request)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "encoding request: %v", err)
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "encoding request: %v", err)
	}

	path := strings.Replace(m.HTTPPath, "{"+m.RoutingKey+"}", escapeResource(call.Resource), 1)
	delete(fields, m.RoutingKey)

	var body io.Reader
	switch m.Body {
	case "":
	case "*":
		body = bytes.NewReader(raw)
		fields = nil
	default:
		if b, ok := fields[m.Body]; ok {
			body = bytes.NewReader(b)
		} else {
			body = strings.NewReader("{}")
		}
		delete(fields, m.Body)
	}

	target := t.baseURL + path
	if q := queryParams(fields); len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, m.HTTPVerb, target, body)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RoutingHeader, call.RoutingParams())
	if t.apiKey != "" {
		req.Header.Set(APIKeyHeader, t.apiKey)
	}
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set(middleware.RequestIDHeader, id)
	}
	return req, nil
}

// escapeResource escapes each segment of a resource name.
func escapeResource(name string) string {
	segs := strings.Split(name, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// queryParams flattens the scalar and list members of a request into query
// parameters. Nested messages are not sent.
func queryParams(fields map[string]json.RawMessage) url.Values {
	q := url.Values{}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := bytes.TrimSpace(fields[k])
		if len(v) == 0 {
			continue
		}
		switch v[0] {
		case '{':
			continue
		case '[':
			var items []json.RawMessage
			if json.Unmarshal(v, &items) == nil {
				for _, it := range items {
					q.Add(k, scalar(it))
				}
			}
		default:
			q.Set(k, scalar(v))
		}
	}
	return q
}

func scalar(v json.RawMessage) string {
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s
	}
	return string(v)
}

// errorBody is the google.rpc error envelope of the REST binding.
type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func decodeErrorBody(httpStatus int, data []byte) error {
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err != nil || (eb.Error.Status == "" && eb.Error.Message == "") {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(httpStatus)
		}
		return apperrors.FromCode(apperrors.CodeFromHTTPStatus(httpStatus), msg)
	}
	code, ok := apperrors.CodeFromName(eb.Error.Status)
	if !ok || code == codes.OK {
		code = apperrors.CodeFromHTTPStatus(httpStatus)
	}
	return apperrors.FromCode(code, eb.Error.Message)
}

// WriteError writes err as a REST error envelope. The emulator gateway uses
// it so both sides agree on the shape.
func WriteError(w http.ResponseWriter, err error) {
	code := apperrors.Code(err)
	httpStatus := apperrors.HTTPStatusFromCode(code)
	var eb errorBody
	eb.Error.Code = httpStatus
	eb.Error.Message = apperrors.Message(err)
	eb.Error.Status = apperrors.CodeName(code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if encErr := json.NewEncoder(w).Encode(eb); encErr != nil {
		logger.WithComponent("rest").Error("writing error body", "error", encErr)
	}
}
