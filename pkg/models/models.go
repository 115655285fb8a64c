package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProjectScope is the scope decision produced for a project description
type ProjectScope struct {
	IsCRUDRequired         bool `json:"is_crud_required"`
	IsUserLoginAndLogout   bool `json:"is_user_login_and_logout"`
	IsExternalURLsRequired bool `json:"is_external_urls_required"`
}

// ParseProjectScope decodes a scope decision. All three keys must be present.
func ParseProjectScope(text string) (*ProjectScope, error) {
	var raw struct {
		IsCRUDRequired         *bool `json:"is_crud_required"`
		IsUserLoginAndLogout   *bool `json:"is_user_login_and_logout"`
		IsExternalURLsRequired *bool `json:"is_external_urls_required"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("decode project scope: %w", err)
	}

	var missing []string
	if raw.IsCRUDRequired == nil {
		missing = append(missing, "is_crud_required")
	}
	if raw.IsUserLoginAndLogout == nil {
		missing = append(missing, "is_user_login_and_logout")
	}
	if raw.IsExternalURLsRequired == nil {
		missing = append(missing, "is_external_urls_required")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("project scope missing keys: %s", strings.Join(missing, ", "))
	}

	return &ProjectScope{
		IsCRUDRequired:         *raw.IsCRUDRequired,
		IsUserLoginAndLogout:   *raw.IsUserLoginAndLogout,
		IsExternalURLsRequired: *raw.IsExternalURLsRequired,
	}, nil
}

// RouteDescriptor describes one HTTP endpoint of a generated backend.
//
// Every field travels as a string on the wire, booleans included, so
// IsRouteDynamic is kept as "true"/"false" rather than coerced.
// RequestBody and Response hold either the string "None" or an object of
// field name to type name.
type RouteDescriptor struct {
	Route          string `json:"route"`
	IsRouteDynamic string `json:"is_route_dynamic"`
	Method         string `json:"method"`
	RequestBody    any    `json:"request_body"`
	Response       any    `json:"response"`
}

// IsDynamic reports whether the route takes path parameters, either by its
// flag or by a "{id}" or ":id" placeholder in the path
func (r RouteDescriptor) IsDynamic() bool {
	return strings.EqualFold(strings.TrimSpace(r.IsRouteDynamic), "true") || hasPathParameter(r.Route)
}

// ProbeEligible reports whether the route can be exercised with a bare GET.
// The flag must say "false"; a missing or unrecognised flag is not trusted.
func (r RouteDescriptor) ProbeEligible() bool {
	return strings.EqualFold(strings.TrimSpace(r.Method), "get") &&
		strings.EqualFold(strings.TrimSpace(r.IsRouteDynamic), "false") &&
		!hasPathParameter(r.Route)
}

func hasPathParameter(route string) bool {
	return strings.ContainsAny(route, "{}") || strings.Contains(route, "/:")
}

// FilterProbeEligible returns the static GET routes, order preserved
func FilterProbeEligible(routes []RouteDescriptor) []RouteDescriptor {
	filtered := make([]RouteDescriptor, 0, len(routes))
	for _, r := range routes {
		if r.ProbeEligible() {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// ParseRouteSchema decodes an endpoint schema list
func ParseRouteSchema(text string) ([]RouteDescriptor, error) {
	var routes []RouteDescriptor
	if err := json.Unmarshal([]byte(text), &routes); err != nil {
		return nil, fmt.Errorf("decode endpoint schema: %w", err)
	}
	for i, r := range routes {
		if r.Route == "" || r.Method == "" {
			return nil, fmt.Errorf("endpoint schema entry %d: route and method are required", i)
		}
	}
	return routes, nil
}

// EncodeRouteSchema renders routes in the endpoint schema wire format
func EncodeRouteSchema(routes []RouteDescriptor) (string, error) {
	data, err := json.MarshalIndent(routes, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode endpoint schema: %w", err)
	}
	return string(data), nil
}

// TaskContext is the shared record threaded through every agent.
//
// The Manager owns it and hands it to one agent at a time. Fields are
// filled in pipeline order: Description at creation, ProjectScope and
// ExternalURLs by the scoping agent, BackendCode and EndpointSchema by the
// build agent. A nil ExternalURLs means no external URLs were requested.
type TaskContext struct {
	Description    string            `json:"description"`
	ProjectScope   *ProjectScope     `json:"project_scope,omitempty"`
	ExternalURLs   []string          `json:"external_urls,omitempty"`
	BackendCode    string            `json:"backend_code,omitempty"`
	EndpointSchema []RouteDescriptor `json:"api_endpoint_schema,omitempty"`
}

// NewTaskContext creates a context holding only the project description
func NewTaskContext(description string) *TaskContext {
	return &TaskContext{Description: description}
}
