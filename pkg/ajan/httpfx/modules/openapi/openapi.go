package openapi

import (
	"strconv"
	"strings"

	"github.com/eser/relayq/pkg/ajan/httpfx"
)

type APIIdentity struct {
	name    string
	version string
}

func RegisterHTTPRoutes(routes *httpfx.Router, config *httpfx.Config) {
	if !config.OpenAPIEnabled {
		return
	}

	routes.
		Route("GET /openapi.json", func(ctx *httpfx.Context) httpfx.Result {
			spec := &APIIdentity{
				name:    "golang-service",
				version: "0.0.0",
			}

			result := GenerateOpenAPISpec(spec, routes)

			return ctx.Results.JSON(result)
		}).
		HasSummary("OpenAPI Spec").
		HasDescription("OpenAPI Spec Endpoint")
}

// document is a deliberately loose OpenAPI 3.0 document: only the shape
// routes.go's Route/RouteOpenAPISpec fields can actually populate, not a
// full schema-validated model.
type document struct {
	OpenAPI string              `json:"openapi"`
	Info    documentInfo        `json:"info"`
	Paths   map[string]pathItem `json:"paths"`
}

type documentInfo struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

type pathItem map[string]operation

type operation struct {
	OperationID string            `json:"operationId,omitempty"`
	Summary     string            `json:"summary,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Deprecated  bool              `json:"deprecated,omitempty"`
	Parameters  []parameter       `json:"parameters,omitempty"`
	Responses   map[string]string `json:"responses,omitempty"`
}

type parameter struct {
	Name        string `json:"name"`
	In          string `json:"in"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// GenerateOpenAPISpec walks every route registered on routes and builds an
// OpenAPI 3.0 document from the RouteOpenAPISpec metadata each one carries
// (HasSummary, HasDescription, HasTags, HasResponse, ...).
func GenerateOpenAPISpec(spec *APIIdentity, routes *httpfx.Router) *document {
	doc := &document{
		OpenAPI: "3.0.3",
		Info: documentInfo{
			Title:   spec.name,
			Version: spec.version,
		},
		Paths: make(map[string]pathItem),
	}

	for _, route := range routes.GetRoutes() {
		method := strings.ToLower(route.Pattern.Method)
		if method == "" {
			method = "get"
		}

		path := routePath(route.Pattern.Path)

		op := operation{
			OperationID: route.Spec.OperationID,
			Summary:     route.Spec.Summary,
			Description: route.Spec.Description,
			Tags:        route.Spec.Tags,
			Deprecated:  route.Spec.Deprecated,
			Responses:   make(map[string]string),
		}

		for _, p := range route.Parameters {
			op.Parameters = append(op.Parameters, parameter{
				Name:        p.Name,
				In:          parameterLocation(p.Type),
				Description: p.Description,
				Required:    p.IsRequired,
			})
		}

		for _, resp := range route.Spec.Responses {
			op.Responses[statusCodeKey(resp.StatusCode)] = "response"
		}

		if len(op.Responses) == 0 {
			op.Responses["200"] = "response"
		}

		item, ok := doc.Paths[path]
		if !ok {
			item = make(pathItem)
		}

		item[method] = op
		doc.Paths[path] = item
	}

	return doc
}

func routePath(path string) string {
	if path == "" {
		return "/"
	}

	return path
}

func parameterLocation(t httpfx.RouteParameterType) string {
	switch t {
	case httpfx.RouteParameterTypePath:
		return "path"
	case httpfx.RouteParameterTypeQuery:
		return "query"
	case httpfx.RouteParameterTypeHeader:
		return "header"
	case httpfx.RouteParameterTypeBody:
		return "body"
	default:
		return "query"
	}
}

func statusCodeKey(code int) string {
	if code == 0 {
		return "200"
	}

	return strconv.Itoa(code)
}
