// Package openapi generates the OpenAPI 3.0 document of the compute API by
// reflecting on the request and response types of each registered route.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// =============================================================================
// Generator
// =============================================================================

// Generator produces an OpenAPI document from registered routes.
type Generator struct {
	title       string
	version     string
	description string
	servers     []string
	routes      []Route
	mu          sync.RWMutex
	cachedSpec  *openapi3.T
}

// Route describes one operation.
type Route struct {
	Method      string
	Path        string // chi pattern, e.g. /v2/{tenant_id}/servers/{server_id}
	OperationID string
	Summary     string
	Tag         string
	Query       []string // optional string query parameters
	Request     any      // body model, nil when the operation takes none
	Response    any      // body model, nil for empty responses
	Status      int
}

// Option configures the generator.
type Option func(*Generator)

// WithTitle sets the API title.
func WithTitle(title string) Option {
	return func(g *Generator) { g.title = title }
}

// WithVersion sets the API version.
func WithVersion(version string) Option {
	return func(g *Generator) { g.version = version }
}

// WithServer adds a server URL.
func WithServer(url string) Option {
	return func(g *Generator) { g.servers = append(g.servers, url) }
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		title:       "novagate compute API",
		version:     "2.0",
		description: "OpenStack compute v2 compatible server API",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register adds routes to the document.
func (g *Generator) Register(routes ...Route) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes = append(g.routes, routes...)
	g.cachedSpec = nil
}

// Generate produces the OpenAPI document.
func (g *Generator) Generate() *openapi3.T {
	g.mu.RLock()
	if g.cachedSpec != nil {
		spec := g.cachedSpec
		g.mu.RUnlock()
		return spec
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cachedSpec != nil {
		return g.cachedSpec
	}

	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.title,
			Version:     g.version,
			Description: g.description,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
		},
	}
	for _, url := range g.servers {
		spec.Servers = append(spec.Servers, &openapi3.Server{URL: url})
	}

	spec.Components.Schemas["Fault"] = faultSchema()

	routes := append([]Route(nil), g.routes...)
	sort.SliceStable(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
	for _, rt := range routes {
		g.addRoute(spec, rt)
	}

	g.cachedSpec = spec
	return spec
}

// Handler returns an HTTP handler that serves the document.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec := g.Generate()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if err := json.NewEncoder(w).Encode(spec); err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
		}
	}
}

// =============================================================================
// Paths
// =============================================================================

func (g *Generator) addRoute(spec *openapi3.T, rt Route) {
	item := spec.Paths.Value(rt.Path)
	if item == nil {
		item = &openapi3.PathItem{Parameters: pathParameters(rt.Path)}
		spec.Paths.Set(rt.Path, item)
	}

	op := &openapi3.Operation{
		OperationID: rt.OperationID,
		Summary:     rt.Summary,
		Tags:        []string{rt.Tag},
		Responses:   openapi3.NewResponses(),
	}

	for _, q := range rt.Query {
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter(q).WithSchema(openapi3.NewStringSchema()),
		})
	}

	if rt.Request != nil {
		name := schemaName(rt.Request)
		spec.Components.Schemas[name] = extractSchema(reflect.TypeOf(rt.Request))
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithJSONSchemaRef(&openapi3.SchemaRef{Ref: "#/components/schemas/" + name}),
		}
	}

	status := rt.Status
	if status == 0 {
		status = http.StatusOK
	}
	desc := http.StatusText(status)
	resp := openapi3.NewResponse().WithDescription(desc)
	if rt.Response != nil {
		name := schemaName(rt.Response)
		spec.Components.Schemas[name] = extractSchema(reflect.TypeOf(rt.Response))
		resp = resp.WithJSONSchemaRef(&openapi3.SchemaRef{Ref: "#/components/schemas/" + name})
	}
	op.Responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: resp})

	faultDesc := "Error envelope"
	op.Responses.Set("default", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &faultDesc,
			Content: openapi3.NewContentWithJSONSchemaRef(&openapi3.SchemaRef{
				Ref: "#/components/schemas/Fault",
			}),
		},
	})

	item.SetOperation(strings.ToUpper(rt.Method), op)
}

func pathParameters(path string) openapi3.Parameters {
	var params openapi3.Parameters
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			name := seg[1 : len(seg)-1]
			params = append(params, &openapi3.ParameterRef{
				Value: openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()),
			})
		}
	}
	return params
}

// =============================================================================
// Schema Generation
// =============================================================================

func faultSchema() *openapi3.SchemaRef {
	body := openapi3.NewObjectSchema().
		WithProperty("code", openapi3.NewIntegerSchema()).
		WithProperty("message", openapi3.NewStringSchema())
	return &openapi3.SchemaRef{
		Value: openapi3.NewObjectSchema().WithAdditionalProperties(body),
	}
}

func schemaName(model any) string {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// extractSchema builds an object schema from a struct's exported fields.
func extractSchema(t reflect.Type) *openapi3.SchemaRef {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	schema := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: make(openapi3.Schemas),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name := field.Name
		if jsonTag != "" {
			if parts := strings.Split(jsonTag, ","); parts[0] != "" {
				name = parts[0]
			}
		}
		if prop := goTypeToSchema(field.Type); prop != nil {
			schema.Properties[name] = prop
		}
	}

	return &openapi3.SchemaRef{Value: schema}
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	rawJSONType = reflect.TypeOf(json.RawMessage{})
)

// goTypeToSchema converts a Go type to an OpenAPI schema.
func goTypeToSchema(t reflect.Type) *openapi3.SchemaRef {
	if t == rawJSONType {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{}}
	}

	switch t.Kind() {
	case reflect.String:
		return &openapi3.SchemaRef{Value: openapi3.NewStringSchema()}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return &openapi3.SchemaRef{Value: openapi3.NewInt32Schema()}

	case reflect.Int64:
		return &openapi3.SchemaRef{Value: openapi3.NewInt64Schema()}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: openapi3.NewIntegerSchema()}

	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: openapi3.NewFloat64Schema()}

	case reflect.Bool:
		return &openapi3.SchemaRef{Value: openapi3.NewBoolSchema()}

	case reflect.Slice, reflect.Array:
		return &openapi3.SchemaRef{Value: openapi3.NewArraySchema().WithItems(goTypeToSchema(t.Elem()).Value)}

	case reflect.Map:
		return &openapi3.SchemaRef{Value: openapi3.NewObjectSchema().WithAdditionalProperties(goTypeToSchema(t.Elem()).Value)}

	case reflect.Ptr:
		schema := goTypeToSchema(t.Elem())
		if schema != nil && schema.Value != nil {
			schema.Value.Nullable = true
		}
		return schema

	case reflect.Struct:
		if t == timeType {
			return &openapi3.SchemaRef{Value: openapi3.NewDateTimeSchema()}
		}
		return extractSchema(t)

	default:
		return &openapi3.SchemaRef{Value: openapi3.NewObjectSchema()}
	}
}
