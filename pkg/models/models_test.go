package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSchema = `[
  {
    "route": "/item/{id}",
    "is_route_dynamic": "true",
    "method": "get",
    "request_body": "None",
    "response": {"id": "number", "name": "string", "completed": "bool"}
  },
  {
    "route": "/item",
    "is_route_dynamic": "false",
    "method": "post",
    "request_body": {"id": "number", "name": "string", "completed": "bool"},
    "response": "None"
  },
  {
    "route": "/crypto",
    "is_route_dynamic": "false",
    "method": "get",
    "request_body": "None",
    "response": "not_provided"
  },
  {
    "route": "/health",
    "is_route_dynamic": "False",
    "method": "GET",
    "request_body": "None",
    "response": "None"
  }
]`

func TestParseProjectScope(t *testing.T) {
	t.Run("complete decision", func(t *testing.T) {
		scope, err := ParseProjectScope(`{"is_crud_required": true, "is_user_login_and_logout": false, "is_external_urls_required": true}`)
		require.NoError(t, err)
		assert.Equal(t, &ProjectScope{IsCRUDRequired: true, IsExternalURLsRequired: true}, scope)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := ParseProjectScope(`{"is_crud_required": true}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is_user_login_and_logout")
		assert.Contains(t, err.Error(), "is_external_urls_required")
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseProjectScope("the project needs a database")
		require.Error(t, err)
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := ParseProjectScope(`{"is_crud_required": "yes", "is_user_login_and_logout": false, "is_external_urls_required": false}`)
		require.Error(t, err)
	})
}

func TestRouteSchemaRoundTrip(t *testing.T) {
	routes, err := ParseRouteSchema(sampleSchema)
	require.NoError(t, err)
	require.Len(t, routes, 4)

	assert.Equal(t, "true", routes[0].IsRouteDynamic)
	assert.Equal(t, "None", routes[0].RequestBody)
	assert.Equal(t, map[string]any{"id": "number", "name": "string", "completed": "bool"}, routes[0].Response)

	encoded, err := EncodeRouteSchema(routes)
	require.NoError(t, err)
	assert.Contains(t, encoded, `"is_route_dynamic": "false"`)

	again, err := ParseRouteSchema(encoded)
	require.NoError(t, err)
	assert.Equal(t, routes, again)
}

func TestParseRouteSchemaRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "prose", in: "Here are your endpoints: /item"},
		{name: "object instead of list", in: `{"route": "/item"}`},
		{name: "boolean flag not a string", in: `[{"route": "/a", "is_route_dynamic": false, "method": "get"}]`},
		{name: "missing method", in: `[{"route": "/a", "is_route_dynamic": "false"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRouteSchema(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestFilterProbeEligible(t *testing.T) {
	routes, err := ParseRouteSchema(sampleSchema)
	require.NoError(t, err)

	filtered := FilterProbeEligible(routes)
	require.Len(t, filtered, 2)
	assert.Equal(t, "/crypto", filtered[0].Route)
	assert.Equal(t, "/health", filtered[1].Route)

	assert.Equal(t, filtered, FilterProbeEligible(filtered))
}

func TestProbeEligible(t *testing.T) {
	tests := []struct {
		name  string
		route RouteDescriptor
		want  bool
	}{
		{name: "static get", route: RouteDescriptor{Route: "/items", IsRouteDynamic: "false", Method: "get"}, want: true},
		{name: "upper case flag and method", route: RouteDescriptor{Route: "/items", IsRouteDynamic: "FALSE", Method: "GET"}, want: true},
		{name: "dynamic flag", route: RouteDescriptor{Route: "/item/{id}", IsRouteDynamic: "true", Method: "get"}},
		{name: "missing flag", route: RouteDescriptor{Route: "/item/{id}", Method: "get"}},
		{name: "empty flag on static path", route: RouteDescriptor{Route: "/items", IsRouteDynamic: "", Method: "get"}},
		{name: "unrecognised flag", route: RouteDescriptor{Route: "/order/{id}", IsRouteDynamic: "yes", Method: "get"}},
		{name: "placeholder with false flag", route: RouteDescriptor{Route: "/user/{id}", IsRouteDynamic: "false", Method: "get"}},
		{name: "colon placeholder", route: RouteDescriptor{Route: "/user/:id", IsRouteDynamic: "false", Method: "get"}},
		{name: "post", route: RouteDescriptor{Route: "/item", IsRouteDynamic: "false", Method: "post"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.route.ProbeEligible())
		})
	}
}

func TestFilterProbeEligibleDropsUntrustedFlags(t *testing.T) {
	routes, err := ParseRouteSchema(`[
  {"route": "/item/{id}", "method": "get", "request_body": "None", "response": "None"},
  {"route": "/user/{id}", "is_route_dynamic": "", "method": "get", "request_body": "None", "response": "None"},
  {"route": "/order/{id}", "is_route_dynamic": "yes", "method": "get", "request_body": "None", "response": "None"}
]`)
	require.NoError(t, err)

	assert.Empty(t, FilterProbeEligible(routes))
}

func TestIsDynamic(t *testing.T) {
	assert.True(t, RouteDescriptor{Route: "/item/{id}", IsRouteDynamic: "true"}.IsDynamic())
	assert.True(t, RouteDescriptor{Route: "/item/{id}", IsRouteDynamic: "false"}.IsDynamic())
	assert.False(t, RouteDescriptor{Route: "/items", IsRouteDynamic: "false"}.IsDynamic())
}

func TestFilterProbeEligibleEmpty(t *testing.T) {
	filtered := FilterProbeEligible(nil)
	assert.NotNil(t, filtered)
	assert.Empty(t, filtered)
}

func TestNewTaskContext(t *testing.T) {
	task := NewTaskContext("task tracker")
	assert.Equal(t, "task tracker", task.Description)
	assert.Nil(t, task.ProjectScope)
	assert.Nil(t, task.ExternalURLs)
	assert.Empty(t, task.BackendCode)
	assert.Nil(t, task.EndpointSchema)
}
