package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
)

func TestInstanceRunDetachedListAndStop(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	res := h.mustRun(t, "instance", "run", "-d", "-n", "web", "-m", "2G", "-e", "MODE=prod", "nginx:latest")
	assert.Contains(t, res.stdout, "started successfully")

	res = h.mustRun(t, "instance", "list", "-o", "json")
	instances := decodeJSON[[]client.Instance](t, res.stdout)
	require.Len(t, instances, 1)
	assert.Equal(t, "web", instances[0].Name)
	assert.Equal(t, "prod", instances[0].Configuration.Env["MODE"])

	res = h.mustRun(t, "instance", "list")
	assert.Contains(t, res.stdout, "NAME")
	assert.Contains(t, res.stdout, "nginx:latest")

	res = h.mustRun(t, "instance", "stop", "web")
	assert.Contains(t, res.stdout, "Successfully stopped instance with UUID: "+instances[0].ID.String())

	res = h.mustRun(t, "instance")
	assert.Contains(t, res.stdout, "No instances found")
	res = h.mustRun(t, "vm", "-a")
	assert.Contains(t, res.stdout, "web")

	res = h.mustRun(t, "instance", "show", "web", "-o", "json")
	detail := decodeJSON[client.InstanceDetail](t, res.stdout)
	assert.Equal(t, client.InstanceStateStopped, detail.State)
}

func TestInstanceStopIgnoresStoppedInstances(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.api.SeedInstance("alice", client.InstanceDetail{Name: "old", State: client.InstanceStateStopped})

	res := h.run("instance", "stop", "old")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, apierrors.ErrNotFound)
	assert.Equal(t, apierrors.ExitNotFound, apierrors.ExitCode(res.err))
}

func TestInstanceReferenceAmbiguous(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.api.SeedInstance("alice", client.InstanceDetail{Name: "web"})
	h.api.SeedInstance("alice", client.InstanceDetail{Name: "web"})

	res := h.run("instance", "stop", "web")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, apierrors.ErrAmbiguousReference)
	assert.Contains(t, res.err.Error(), "matches 2")
}

func TestInstanceReferenceExactNameOnly(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	web1 := h.api.SeedInstance("alice", client.InstanceDetail{Name: "web-1"})
	web12 := h.api.SeedInstance("alice", client.InstanceDetail{Name: "web-12"})

	res := h.run("instance", "stop", "web")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, apierrors.ErrNotFound)

	h.mustRun(t, "instance", "stop", "-t", "0", "web-1")
	detail, ok := h.api.Instance(web1)
	require.True(t, ok)
	assert.Equal(t, client.InstanceStateStopped, detail.State)
	detail, ok = h.api.Instance(web12)
	require.True(t, ok)
	assert.Equal(t, client.InstanceStateActive, detail.State)
}

func TestInstanceStopByIDPrefix(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	id := h.api.SeedInstance("alice", client.InstanceDetail{Name: "api"})

	h.mustRun(t, "instance", "rm", "-t", "0", id.String()[:6])
	detail, ok := h.api.Instance(id)
	require.True(t, ok)
	assert.Equal(t, client.InstanceStateStopped, detail.State)
}

func TestInstanceRunStreamsLogs(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	res := h.mustRun(t, "instance", "run", "-n", "job", "alpine", "echo", "hi")
	assert.Contains(t, res.stdout, "started successfully")
	assert.Contains(t, res.stdout, "alpine echo hi\n")
	assert.Contains(t, res.stderr, "Pulling container image...")
	assert.Contains(t, res.stderr, "Instance is online")
	assert.Contains(t, res.stderr, "[Instance] ")
}

func TestInstanceRunValidatesFlags(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	tests := map[string][]string{
		"memory too small": {"instance", "run", "-d", "-m", "64M", "nginx"},
		"too many vcpus":   {"instance", "run", "-d", "-c", "33", "nginx"},
		"bad env":          {"instance", "run", "-d", "-e", "NOVALUE", "nginx"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			res := h.run(args...)
			require.Error(t, res.err)
			assert.ErrorIs(t, res.err, apierrors.ErrValidation)
		})
	}
}

func TestInstanceStopTimeoutBounds(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.api.SeedInstance("alice", client.InstanceDetail{Name: "web"})

	res := h.run("instance", "stop", "-t", "600001", "web")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, apierrors.ErrValidation)
}

func TestInstanceExpose(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.api.SeedInstance("alice", client.InstanceDetail{Name: "postgres"})

	res := h.mustRun(t, "instance", "expose", "postgres", "5432")
	assert.Contains(t, res.stdout, "Port 5432 of instance")
	assert.Contains(t, res.stdout, "70.34.214.14:")

	res = h.run("instance", "expose", "postgres", "70000")
	assert.ErrorIs(t, res.err, apierrors.ErrValidation)
}

func TestInstanceShowIncludesServiceTargets(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.api.SeedInstance("alice", client.InstanceDetail{
		Name:          "web",
		Configuration: client.ContainerConfiguration{ContainerImage: "nginx"},
	})
	h.mustRun(t, "service", "new", "site", "site")
	h.mustRun(t, "service", "target", "add", "site", "web:80")

	res := h.mustRun(t, "instance", "info", "web")
	assert.Contains(t, res.stdout, "Service targets")
	assert.Contains(t, res.stdout, "site")
}

func TestParseMemoryMB(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{in: "512", want: 512},
		{in: "1024M", want: 1024},
		{in: "1024m", want: 1024},
		{in: "2G", want: 2048},
		{in: "128G", want: 131072},
		{in: "128", want: 128},
		{in: "127M", wantErr: true},
		{in: "129G", wantErr: true},
		{in: "1.5G", wantErr: true},
		{in: "G", wantErr: true},
		{in: "", wantErr: true},
		{in: "lots", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMemoryMB(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apierrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEnv(t *testing.T) {
	env, err := parseEnv([]string{"A=1", "B=x=y", "EMPTY="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y", "EMPTY": ""}, env)

	env, err = parseEnv(nil)
	require.NoError(t, err)
	assert.Nil(t, env)

	_, err = parseEnv([]string{"=value"})
	assert.Error(t, err)
	_, err = parseEnv([]string{"NOEQUALS"})
	assert.Error(t, err)
}

func TestParsePort(t *testing.T) {
	port, err := parsePort("8080")
	require.NoError(t, err)
	assert.Equal(t, uint16(8080), port)

	for _, bad := range []string{"0", "65536", "-1", "http"} {
		_, err := parsePort(bad)
		assert.Error(t, err, bad)
	}
}

func TestWriteLogMessage(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	ts := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC).UnixMilli()

	writeLogMessage(stdout, stderr, client.LogMessage{LogType: client.LogTypeStdout, Message: "out"})
	writeLogMessage(stdout, stderr, client.LogMessage{LogType: client.LogTypeStderr, Message: "err"})
	writeLogMessage(stdout, stderr, client.LogMessage{LogType: client.LogTypeSystem, TimestampMS: ts, Message: "booted"})
	writeLogMessage(stdout, stderr, client.LogMessage{LogType: client.LogTypeState, State: "rebooting"})

	assert.Equal(t, "out\n", stdout.String())
	assert.Equal(t, "err\n[Instance] 2026-04-02 08:30:00 - booted\nInstance state: rebooting\n", stderr.String())
}

func TestShortID(t *testing.T) {
	id := uuid.MustParse("3f2a1c9e-8b7d-4e6f-a5b4-c3d2e1f0a9b8")
	assert.Equal(t, "3f2a1c9e", shortID(id))
}
