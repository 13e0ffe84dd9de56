package cmd

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
)

func TestServiceNewAndTargets(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.api.SeedInstance("alice", client.InstanceDetail{Name: "web"})

	res := h.mustRun(t, "service", "new", "site", "MySite")
	assert.Contains(t, res.stdout, "Service created with ID")
	assert.Contains(t, res.stdout, "https://mysite.unisrv.dev")

	res = h.mustRun(t, "service", "target", "add", "site", "web:8080", "-g", "blue")
	assert.Contains(t, res.stdout, "[group: blue]")

	res = h.mustRun(t, "service", "show", "site", "-o", "json")
	info := decodeJSON[client.ServiceInfo](t, res.stdout)
	require.Len(t, info.Targets, 1)
	assert.Equal(t, uint16(8080), info.Targets[0].InstancePort)
	assert.Equal(t, "blue", info.Targets[0].Group)
	require.Len(t, info.Configuration.Locations, 1)
	assert.Equal(t, "/", info.Configuration.Locations[0].Path)

	res = h.mustRun(t, "srv", "target", "rm", "site")
	assert.Contains(t, res.stdout, "deleted from service")

	res = h.run("service", "target", "delete", "site")
	assert.ErrorIs(t, res.err, apierrors.ErrNotFound)
}

func TestServiceNewKeepsQualifiedHost(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	res := h.mustRun(t, "service", "new", "shop", "shop.example.com", "-o", "json")
	out := decodeJSON[map[string]string](t, res.stdout)
	assert.Equal(t, "shop.example.com", out["host"])
}

func TestServiceTargetDeleteRequiresChoiceWithSeveralTargets(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.api.SeedInstance("alice", client.InstanceDetail{Name: "web"})
	h.mustRun(t, "service", "new", "site", "site")
	h.mustRun(t, "service", "target", "add", "site", "web:80")
	h.mustRun(t, "service", "target", "add", "site", "web:81")

	res := h.run("service", "target", "delete", "site")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, apierrors.ErrValidation)
	assert.Contains(t, res.err.Error(), "has 2 targets")

	res = h.mustRun(t, "service", "show", "site", "-o", "json")
	info := decodeJSON[client.ServiceInfo](t, res.stdout)
	h.mustRun(t, "service", "target", "delete", "site", info.Targets[1].ID.String()[:8])

	res = h.mustRun(t, "service", "show", "site", "-o", "json")
	info = decodeJSON[client.ServiceInfo](t, res.stdout)
	require.Len(t, info.Targets, 1)
	assert.Equal(t, uint16(80), info.Targets[0].InstancePort)
}

func TestServiceLocations(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.mustRun(t, "service", "new", "site", "site")

	res := h.mustRun(t, "service", "location", "add", "site", "/docs", "url", "https://docs.example.com", "--override-404", "/404.html")
	assert.Contains(t, res.stdout, "Location /docs added")
	h.mustRun(t, "service", "loc", "add", "site", "/api", "srv", "api")

	res = h.run("service", "location", "add", "site", "/docs", "instance")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "Location with path '/docs' already exists")

	res = h.mustRun(t, "service", "location", "list", "site", "-o", "json")
	locations := decodeJSON[[]client.Location](t, res.stdout)
	require.Len(t, locations, 3)
	assert.Equal(t, client.LocationTarget{Type: client.LocationTargetURL, URL: "https://docs.example.com"}, locations[1].Target)
	assert.Equal(t, "/404.html", locations[1].Override404)
	assert.Equal(t, client.LocationTarget{Type: client.LocationTargetInstance, Group: "api"}, locations[2].Target)

	h.mustRun(t, "service", "location", "delete", "site", "/docs")
	res = h.mustRun(t, "service", "location", "ls", "site")
	assert.NotContains(t, res.stdout, "/docs")
	assert.Contains(t, res.stdout, "/api")

	res = h.run("service", "location", "delete", "site", "/docs")
	assert.ErrorIs(t, res.err, apierrors.ErrNotFound)
}

func TestServiceDelete(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.mustRun(t, "service", "new", "site", "site")

	res := h.mustRun(t, "service", "rm", "site")
	assert.Contains(t, res.stdout, "deleted")
	res = h.mustRun(t, "service", "list")
	assert.Contains(t, res.stdout, "No services found")
}

func TestBuildLocation(t *testing.T) {
	loc, err := buildLocation("/", "inst", "", "")
	require.NoError(t, err)
	assert.Equal(t, client.DefaultTargetGroup, loc.Target.Group)

	_, err = buildLocation("docs", "url", "https://x.example", "")
	assert.ErrorIs(t, err, apierrors.ErrValidation)
	_, err = buildLocation("/docs", "url", "", "")
	assert.ErrorIs(t, err, apierrors.ErrValidation)
	_, err = buildLocation("/docs", "url", "ftp://x.example", "")
	assert.ErrorIs(t, err, apierrors.ErrValidation)
	_, err = buildLocation("/docs", "redirect", "x", "")
	assert.ErrorIs(t, err, apierrors.ErrValidation)
}

func TestParseTarget(t *testing.T) {
	ref, port, err := parseTarget("web:8080")
	require.NoError(t, err)
	assert.Equal(t, "web", ref)
	assert.Equal(t, uint16(8080), port)

	for _, bad := range []string{"web", ":80", "web:", "web:0", "web:http"} {
		_, _, err := parseTarget(bad)
		assert.Error(t, err, bad)
	}
}

func TestSelectTarget(t *testing.T) {
	first := client.ServiceTarget{ID: uuid.MustParse("aaaaaaaa-0000-4000-8000-000000000001"), InstancePort: 80}
	second := client.ServiceTarget{ID: uuid.MustParse("bbbbbbbb-0000-4000-8000-000000000002"), InstancePort: 81}

	id, err := selectTarget(&client.ServiceInfo{Name: "s", Targets: []client.ServiceTarget{first}}, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, id)

	id, err = selectTarget(&client.ServiceInfo{Name: "s", Targets: []client.ServiceTarget{first, second}}, "bbbb")
	require.NoError(t, err)
	assert.Equal(t, second.ID, id)

	_, err = selectTarget(&client.ServiceInfo{Name: "s"}, "")
	assert.ErrorIs(t, err, apierrors.ErrNotFound)
}
