package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/service"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

// maxBodyBytes bounds request bodies of admin calls.
const maxBodyBytes = 4 << 20

// resourceKinds tells apart methods that share a verb and path template by
// the kind of resource the path names.
var resourceKinds = map[string]func(string) error{
	"CreateIndex":         collectionGroup,
	"ListIndexes":         collectionGroup,
	"GetIndex":            parse(resource.ParseIndexName),
	"DeleteIndex":         parse(resource.ParseIndexName),
	"GetField":            parse(resource.ParseFieldName),
	"UpdateField":         parse(resource.ParseFieldName),
	"ListFields":          collectionGroup,
	"ExportDocuments":     parse(resource.ParseDatabaseName),
	"ImportDocuments":     parse(resource.ParseDatabaseName),
	"BulkDeleteDocuments": parse(resource.ParseDatabaseName),
	"CreateDatabase":      parse(resource.ParseProjectName),
	"GetDatabase":         parse(resource.ParseDatabaseName),
	"ListDatabases":       parse(resource.ParseProjectName),
	"UpdateDatabase":      parse(resource.ParseDatabaseName),
	"DeleteDatabase":      parse(resource.ParseDatabaseName),
	"GetOperation":        parse(resource.ParseOperationName),
	"ListOperations":      parse(resource.ParseDatabaseName),
	"CancelOperation":     parse(resource.ParseOperationName),
	"DeleteOperation":     parse(resource.ParseOperationName),
	"GetLocation":         parse(resource.ParseLocationName),
	"ListLocations":       parse(resource.ParseProjectName),
}

func parse[T any](fn func(string) (T, error)) func(string) error {
	return func(s string) error {
		_, err := fn(s)
		return err
	}
}

func collectionGroup(s string) error {
	_, err := resource.ParseCollectionGroupName(s, true)
	return err
}

// Query parameters that do not decode as strings.
var (
	repeatedParams = map[string]bool{"collectionIds": true, "namespaceIds": true}
	intParams      = map[string]bool{"pageSize": true}
	boolParams     = map[string]bool{"showDeleted": true}
	// ignoredParams are consumed by the transport, not the method.
	ignoredParams = map[string]bool{"key": true, "alt": true, "$alt": true, "prettyPrint": true}
)

// route is the HTTP binding of one endpoint: <prefix>{resource}<suffix>.
type route struct {
	endpoint service.Endpoint
	verb     string
	prefix   string
	suffix   string
	matches  func(string) error
}

func newRoutes(endpoints []service.Endpoint) ([]route, error) {
	routes := make([]route, 0, len(endpoints))
	for _, e := range endpoints {
		m := e.Method
		open, end := strings.Index(m.HTTPPath, "{"), strings.Index(m.HTTPPath, "}")
		if open < 0 || end < open {
			return nil, fmt.Errorf("method %s: malformed HTTP path %q", m.ShortName(), m.HTTPPath)
		}
		kind, ok := resourceKinds[m.ShortName()]
		if !ok {
			return nil, fmt.Errorf("method %s: unknown resource kind", m.ShortName())
		}
		routes = append(routes, route{
			endpoint: e,
			verb:     m.HTTPVerb,
			prefix:   m.HTTPPath[:open],
			suffix:   m.HTTPPath[end+1:],
			matches:  kind,
		})
	}
	// Longer suffixes first, so ".../indexes" is tried as a parent before
	// it is tried as a name.
	sort.SliceStable(routes, func(i, j int) bool { return len(routes[i].suffix) > len(routes[j].suffix) })
	return routes, nil
}

// match returns the route serving verb and path and the resource name the
// path carries.
func match(routes []route, verb, path string) (*route, string, bool) {
	for i := range routes {
		rt := &routes[i]
		if rt.verb != verb || len(path) <= len(rt.prefix)+len(rt.suffix) {
			continue
		}
		if !strings.HasPrefix(path, rt.prefix) || !strings.HasSuffix(path, rt.suffix) {
			continue
		}
		name := path[len(rt.prefix) : len(path)-len(rt.suffix)]
		if rt.matches(name) == nil {
			return rt, name, true
		}
	}
	return nil, "", false
}

// Dispatch serves the /v1 REST surface by translating each call into the
// JSON request of its RPC.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	rt, name, ok := match(h.routes, r.Method, r.URL.Path)
	if !ok {
		admin.WriteError(w, apperrors.Newf(apperrors.ErrNotFound, "no method serves %s %s", r.Method, r.URL.Path))
		return
	}
	m := rt.endpoint.Method

	raw, err := buildRequest(w, r, m, name)
	if err != nil {
		admin.WriteError(w, err)
		return
	}
	resp, err := rt.endpoint.Handle(r.Context(), raw)
	if err != nil {
		admin.WriteError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// buildRequest assembles the JSON request of m from the query string, the
// body and the resource name in the path. The path wins over both.
func buildRequest(w http.ResponseWriter, r *http.Request, m *admin.Method, name string) (json.RawMessage, error) {
	fields, err := queryFields(r.URL.Query())
	if err != nil {
		return nil, err
	}

	if m.Body != "" {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "reading request body: %v", err)
		}
		if len(bytes.TrimSpace(body)) > 0 {
			var decoded any
			dec := json.NewDecoder(bytes.NewReader(body))
			dec.UseNumber()
			if err := dec.Decode(&decoded); err != nil {
				return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "invalid JSON body: %v", err)
			}
			if m.Body == "*" {
				obj, ok := decoded.(map[string]any)
				if !ok {
					return nil, apperrors.New(apperrors.ErrInvalidArgument, "request body must be a JSON object")
				}
				for k, v := range obj {
					fields[k] = v
				}
			} else {
				fields[m.Body] = decoded
			}
		}
	}

	if err := setPath(fields, strings.Split(m.RoutingKey, "."), name); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInternal, "encoding request: %v", err)
	}
	return raw, nil
}

func queryFields(q url.Values) (map[string]any, error) {
	fields := make(map[string]any, len(q))
	for k, vs := range q {
		if ignoredParams[k] || len(vs) == 0 {
			continue
		}
		switch {
		case repeatedParams[k] || len(vs) > 1:
			fields[k] = vs
		case intParams[k]:
			n, err := strconv.ParseInt(vs[0], 10, 32)
			if err != nil {
				return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "invalid value %q for %s", vs[0], k)
			}
			fields[k] = n
		case boolParams[k]:
			b, err := strconv.ParseBool(vs[0])
			if err != nil {
				return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "invalid value %q for %s", vs[0], k)
			}
			fields[k] = b
		default:
			fields[k] = vs[0]
		}
	}
	return fields, nil
}

// setPath sets the dotted field path in fields to value, creating the
// enclosing objects as needed.
func setPath(fields map[string]any, path []string, value string) error {
	for _, p := range path[:len(path)-1] {
		next, ok := fields[p]
		if !ok || next == nil {
			obj := map[string]any{}
			fields[p] = obj
			fields = obj
			continue
		}
		obj, ok := next.(map[string]any)
		if !ok {
			return apperrors.Newf(apperrors.ErrInvalidArgument, "%s must be a JSON object", p)
		}
		fields = obj
	}
	fields[path[len(path)-1]] = value
	return nil
}
