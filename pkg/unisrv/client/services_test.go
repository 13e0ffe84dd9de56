package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceInfoJSON = `{
	"id":"0b7c5a1e-2f7e-4d3c-9a55-0a4c1f2b3c4d","name":"web","type":"http",
	"configuration":{"locations":[{"path":"/","target":{"type":"instance","group":"default"}},{"path":"/docs","override_404":"/404.html","target":{"type":"url","url":"https://docs.example.com"}}],"allow_http":false},
	"user_id":"8c1f0f3e-0000-4000-8000-000000000001",
	"created_at":"2025-05-01T00:00:00","updated_at":"2025-05-02T00:00:00",
	"providers":[{"id":"1b7c5a1e-2f7e-4d3c-9a55-0a4c1f2b3c4d","node_id":"2b7c5a1e-2f7e-4d3c-9a55-0a4c1f2b3c4d","route_address":"10.1.0.1:443","created_at":"2025-05-01T00:00:00"}],
	"targets":[{"id":"3b7c5a1e-2f7e-4d3c-9a55-0a4c1f2b3c4d","instance_id":"4b7c5a1e-2f7e-4d3c-9a55-0a4c1f2b3c4d","instance_port":8080,"target_group":"default","created_at":"2025-05-01T00:00:00"}]
}`

func TestServicesGetAndUpdate(t *testing.T) {
	id := uuid.MustParse("0b7c5a1e-2f7e-4d3c-9a55-0a4c1f2b3c4d")
	var updated ServiceConfiguration
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/service/"+id.String(), r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(serviceInfoJSON))
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&updated))
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server, &staticAuth{token: "t"})
	info, err := c.Services().Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, info.Configuration.Locations, 2)
	assert.Equal(t, "instance group default", info.Configuration.Locations[0].Target.String())
	assert.Equal(t, "url https://docs.example.com", info.Configuration.Locations[1].Target.String())
	assert.Equal(t, 1, info.Configuration.FindLocation("/docs"))
	assert.Equal(t, -1, info.Configuration.FindLocation("/missing"))
	require.Len(t, info.Targets, 1)
	assert.Equal(t, "default", info.Targets[0].Group)

	cfg := info.Configuration
	cfg.AllowHTTP = true
	require.NoError(t, c.Services().Update(context.Background(), id, cfg))
	assert.True(t, updated.AllowHTTP)
	assert.Len(t, updated.Locations, 2)
}

func TestServicesCreate(t *testing.T) {
	created := uuid.MustParse("0b7c5a1e-2f7e-4d3c-9a55-0a4c1f2b3c4d")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/service", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "dev", payload["region"])
		assert.Equal(t, "web.unisrv.dev", payload["host"])
		assert.Equal(t, []any{}, payload["instance_targets"])
		cfg := payload["configuration"].(map[string]any)
		locations := cfg["locations"].([]any)
		require.Len(t, locations, 1)
		loc := locations[0].(map[string]any)
		assert.Equal(t, "/", loc["path"])
		assert.Equal(t, map[string]any{"type": "instance", "group": "default"}, loc["target"])
		_, _ = w.Write([]byte(`{"service_id":"` + created.String() + `"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, &staticAuth{token: "t"})
	id, err := c.Services().Create(context.Background(), ServiceRequest{
		Name:          "web",
		Host:          "web.unisrv.dev",
		Configuration: DefaultServiceConfiguration(false),
	})
	require.NoError(t, err)
	assert.Equal(t, created, id)
}

func TestServicesTargets(t *testing.T) {
	id := uuid.MustParse("0b7c5a1e-2f7e-4d3c-9a55-0a4c1f2b3c4d")
	instanceID := uuid.MustParse("4b7c5a1e-2f7e-4d3c-9a55-0a4c1f2b3c4d")
	targetID := uuid.MustParse("3b7c5a1e-2f7e-4d3c-9a55-0a4c1f2b3c4d")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/service/"+id.String()+"/target":
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, instanceID.String(), payload["instance_id"])
			assert.Equal(t, float64(8080), payload["instance_port"])
			_, hasGroup := payload["group"]
			assert.False(t, hasGroup)
			_, _ = w.Write([]byte(`{"target_id":"` + targetID.String() + `"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/service/"+id.String()+"/target/"+targetID.String():
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server, &staticAuth{token: "t"})
	got, err := c.Services().AddTarget(context.Background(), id, InstanceTarget{InstanceID: instanceID, InstancePort: 8080})
	require.NoError(t, err)
	assert.Equal(t, targetID, got)
	require.NoError(t, c.Services().DeleteTarget(context.Background(), id, targetID))
}
