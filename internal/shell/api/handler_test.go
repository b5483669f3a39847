package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/novagate/internal/core/auth"
	corecompute "github.com/artpar/novagate/internal/core/compute"
	"github.com/artpar/novagate/internal/core/guest"
	"github.com/artpar/novagate/internal/shell/api/middleware"
	"github.com/artpar/novagate/internal/shell/compute"
	"github.com/artpar/novagate/internal/shell/provider"
	"github.com/artpar/novagate/internal/shell/provider/providertest"
)

// =============================================================================
// Test Helpers
// =============================================================================

func newTestHandler(stub *providertest.Stub, cfg Config) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := compute.NewService(stub, compute.Config{
		DefaultAvailabilityZone: "fsn1",
		DefaultDomain:           "example.local",
	}, logger)
	return NewHandler(svc, cfg, logger).Routes()
}

func activeGuest(id, name string) guest.Guest {
	return guest.Guest{
		ID:               id,
		Hostname:         name,
		StartCPUs:        2,
		MaxMemory:        4096,
		DiskGB:           25,
		PrimaryIPAddress: "203.0.113.10",
		Status:           &guest.Status{KeyName: guest.StatusActive},
		PowerState:       &guest.PowerState{KeyName: guest.PowerRunning},
		Datacenter:       &guest.Datacenter{Name: "fsn1"},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Host = "gw.local:8774"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertFault(t *testing.T, rec *httptest.ResponseRecorder, status int, kind, msg string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[map[string]corecompute.Fault](t, rec)
	require.Len(t, body, 1)
	fault, ok := body[kind]
	require.True(t, ok, "want %s fault, got %s", kind, rec.Body.String())
	assert.Equal(t, status, fault.Code)
	if msg != "" {
		assert.Equal(t, msg, fault.Message)
	}
}

// =============================================================================
// Health
// =============================================================================

func TestHealth(t *testing.T) {
	h := newTestHandler(providertest.New(), Config{Version: "1.2.3"})
	rec := do(t, h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.True(t, strings.HasPrefix(rec.Header().Get(middleware.HeaderComputeRequestID), "req-"))
}

func TestReady(t *testing.T) {
	stub := providertest.New()
	h := newTestHandler(stub, Config{})

	rec := do(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[ReadyResponse](t, rec).Checks["provider"])

	stub.Err["ListInstances"] = &provider.Error{Message: "unauthorized"}
	rec = do(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", decode[ReadyResponse](t, rec).Status)
}

type staticReadiness struct{ err error }

func (s staticReadiness) Ready(context.Context) error { return s.err }

func TestReady_CachedChecker(t *testing.T) {
	stub := providertest.New()
	h := newTestHandler(stub, Config{Readiness: staticReadiness{err: errors.New("not probed")}})

	rec := do(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "failed", decode[ReadyResponse](t, rec).Checks["provider"])
	assert.Empty(t, stub.Ops(), "cached readiness must not reach the provider")
}

func TestMetricsAndOpenAPI(t *testing.T) {
	h := newTestHandler(providertest.New(), Config{MetricsEnabled: true})

	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = do(t, h, http.MethodGet, "/openapi.json", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	doc := decode[map[string]any](t, rec)
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/v2/{tenant_id}/servers/{server_id}/action")

	disabled := newTestHandler(providertest.New(), Config{})
	assert.Equal(t, http.StatusNotFound, do(t, disabled, http.MethodGet, "/metrics", "").Code)
}

// =============================================================================
// Servers
// =============================================================================

func TestCreateServer(t *testing.T) {
	stub := providertest.New()
	h := newTestHandler(stub, Config{})

	rec := do(t, h, http.MethodPost, "/v2/tenant-a/servers",
		`{"server": {"name": "web1", "imageRef": "ubuntu-22.04", "flavorRef": "5", "networks": [{"uuid": "public"}]}}`)

	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[ServerResponse](t, rec)
	assert.Equal(t, "1000", resp.Server.ID)
	assert.Equal(t, corecompute.StatusBuild, resp.Server.Status)
	assert.Equal(t, "5", resp.Server.Flavor.ID)
	assert.Equal(t, "http://gw.local:8774/v2/tenant-a/servers/1000", resp.Server.Links[0].Href)
	require.Len(t, stub.Params, 1)
	assert.Equal(t, "example.local", stub.Params[0].Domain)
}

func TestCreateServer_Faults(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*providertest.Stub)
		wantStatus int
		wantKind   string
		wantMsg    string
	}{
		{
			name:       "malformed json",
			body:       `{"server": `,
			wantStatus: http.StatusBadRequest, wantKind: "badRequest", wantMsg: corecompute.MsgMalformedBody,
		},
		{
			name:       "unknown flavor",
			body:       `{"server": {"name": "web1", "imageRef": "img", "flavorRef": "42"}}`,
			wantStatus: http.StatusBadRequest, wantKind: "badRequest", wantMsg: `Invalid flavorRef "42" provided.`,
		},
		{
			name:       "bad network",
			body:       `{"server": {"name": "web1", "imageRef": "img", "flavorRef": "1", "networks": [{"uuid": "bad_network"}]}}`,
			wantStatus: http.StatusBadRequest, wantKind: "badRequest",
		},
		{
			name: "provider rejection",
			body: `{"server": {"name": "web1", "imageRef": "img", "flavorRef": "1"}}`,
			setup: func(s *providertest.Stub) {
				s.Err["CreateInstance"] = &provider.Error{Message: "datacenter fsn1 is full"}
			},
			wantStatus: http.StatusBadRequest, wantKind: "badRequest", wantMsg: "datacenter fsn1 is full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := providertest.New()
			if tt.setup != nil {
				tt.setup(stub)
			}
			rec := do(t, newTestHandler(stub, Config{}), http.MethodPost, "/v2/tenant-a/servers", tt.body)
			assertFault(t, rec, tt.wantStatus, tt.wantKind, tt.wantMsg)
		})
	}
}

func TestListServers(t *testing.T) {
	stub := providertest.New()
	stub.Guests["1"] = activeGuest("1", "web1")
	stub.Guests["2"] = activeGuest("2", "web2")
	h := newTestHandler(stub, Config{})

	rec := do(t, h, http.MethodGet, "/v2/tenant-a/servers", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	list := decode[ServerListResponse](t, rec)
	require.Len(t, list.Servers, 2)
	assert.Equal(t, "web1", list.Servers[0].Name)

	rec = do(t, h, http.MethodGet, "/v2/tenant-a/servers/detail?name=web2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	detail := decode[ServerDetailListResponse](t, rec)
	require.Len(t, detail.Servers, 1)
	assert.Equal(t, "203.0.113.10", detail.Servers[0].AccessIPv4)

	rec = do(t, h, http.MethodGet, "/v2/tenant-a/servers?limit=1", "")
	assert.Len(t, decode[ServerListResponse](t, rec).Servers, 1)

	rec = do(t, h, http.MethodGet, "/v2/tenant-a/servers/detail?status=SHUTOFF", "")
	assert.Empty(t, decode[ServerDetailListResponse](t, rec).Servers)

	rec = do(t, h, http.MethodGet, "/v2/tenant-a/servers?limit=abc", "")
	assertFault(t, rec, http.StatusBadRequest, "badRequest", "")
}

func TestListServers_EmptyIsArray(t *testing.T) {
	rec := do(t, newTestHandler(providertest.New(), Config{}), http.MethodGet, "/v2/tenant-a/servers/detail", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"servers": []}`, rec.Body.String())
}

func TestGetServer(t *testing.T) {
	stub := providertest.New()
	stub.Guests["1234"] = activeGuest("1234", "web1")
	h := newTestHandler(stub, Config{})

	rec := do(t, h, http.MethodGet, "/v2/tenant-a/servers/1234", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	view := decode[map[string]map[string]any](t, rec)["server"]
	assert.Equal(t, "ACTIVE", view["status"])
	assert.Equal(t, "active", view["OS-EXT-STS:vm_state"])
	assert.Nil(t, view["OS-EXT-STS:task_state"])
	assert.Equal(t, "fsn1", view["OS-EXT-AZ:availability_zone"])

	rec = do(t, h, http.MethodGet, "/v2/tenant-a/servers/9999", "")
	assertFault(t, rec, http.StatusNotFound, "notFound", corecompute.MsgInstanceNotFound)
}

// =============================================================================
// Actions
// =============================================================================

func TestServerAction(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantOp     string
	}{
		{"start", `{"os-start": null}`, http.StatusAccepted, "PowerOn"},
		{"stop", `{"os-stop": null}`, http.StatusAccepted, "PowerOff"},
		{"hard reboot", `{"reboot": {"type": "HARD"}}`, http.StatusAccepted, "RebootHard"},
		{"resize", `{"resize": {"flavorRef": "7"}}`, http.StatusAccepted, "Upgrade"},
		{"confirm resize", `{"confirmResize": null}`, http.StatusNoContent, "ConfirmResize"},
		{"create image", `{"createImage": {"name": "snap"}}`, http.StatusAccepted, "CaptureArchive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := providertest.New()
			stub.Guests["1234"] = activeGuest("1234", "web1")
			rec := do(t, newTestHandler(stub, Config{}), http.MethodPost, "/v2/tenant-a/servers/1234/action", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Empty(t, rec.Body.String())
			ops := stub.Ops()
			assert.Equal(t, tt.wantOp, ops[len(ops)-1])
		})
	}
}

func TestServerAction_Faults(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		body       string
		setup      func(*providertest.Stub)
		wantStatus int
		wantKind   string
		wantMsg    string
	}{
		{
			name: "empty body", id: "1234", body: "",
			wantStatus: http.StatusBadRequest, wantKind: "badRequest", wantMsg: corecompute.MsgMalformedBody,
		},
		{
			name: "two actions", id: "1234", body: `{"os-start": null, "os-stop": null}`,
			wantStatus: http.StatusBadRequest, wantKind: "badRequest", wantMsg: corecompute.MsgMalformedBody,
		},
		{
			name: "resize to unknown flavor", id: "1234", body: `{"resize": {"flavorRef": "99"}}`,
			wantStatus: http.StatusBadRequest, wantKind: "badRequest",
		},
		{
			name: "missing server", id: "4321", body: `{"os-start": null}`,
			wantStatus: http.StatusNotFound, wantKind: "notFound", wantMsg: corecompute.MsgInstanceNotFound,
		},
		{
			name: "provider failure", id: "1234", body: `{"os-stop": null}`,
			setup: func(s *providertest.Stub) {
				s.Err["PowerOff"] = &provider.Error{Message: "server is locked"}
			},
			wantStatus: http.StatusInternalServerError, wantKind: "computeFault", wantMsg: "server is locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := providertest.New()
			stub.Guests["1234"] = activeGuest("1234", "web1")
			if tt.setup != nil {
				tt.setup(stub)
			}
			rec := do(t, newTestHandler(stub, Config{}), http.MethodPost, "/v2/tenant-a/servers/"+tt.id+"/action", tt.body)
			assertFault(t, rec, tt.wantStatus, tt.wantKind, tt.wantMsg)
		})
	}
}

// =============================================================================
// Flavors and Extensions
// =============================================================================

func TestFlavors(t *testing.T) {
	h := newTestHandler(providertest.New(), Config{})

	rec := do(t, h, http.MethodGet, "/v2/tenant-a/flavors", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	list := decode[FlavorListResponse](t, rec)
	require.Len(t, list.Flavors, 8)
	assert.Equal(t, "1 vCPU, 1GB ram, 25GB", list.Flavors[0].Name)

	rec = do(t, h, http.MethodGet, "/v2/tenant-a/flavors/detail", "")
	assert.Len(t, decode[FlavorDetailListResponse](t, rec).Flavors, 8)

	rec = do(t, h, http.MethodGet, "/v2/tenant-a/flavors/8", "")
	f := decode[FlavorResponse](t, rec).Flavor
	assert.Equal(t, 4, f.VCPUs)
	assert.Equal(t, 8192, f.RAM)
	assert.Equal(t, 100, f.Disk)

	rec = do(t, h, http.MethodGet, "/v2/tenant-a/flavors/80", "")
	assertFault(t, rec, http.StatusNotFound, "notFound", compute.MsgFlavorNotFound)
}

func TestExtensions(t *testing.T) {
	h := newTestHandler(providertest.New(), Config{})

	rec := do(t, h, http.MethodGet, "/v2/tenant-a/extensions", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	list := decode[ExtensionListResponse](t, rec)
	require.NotEmpty(t, list.Extensions)
	assert.Equal(t, "os-availability-zone", list.Extensions[0].Alias)

	rec = do(t, h, http.MethodGet, "/v2/tenant-a/extensions/os-availability-zone", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	ext := decode[ExtensionResponse](t, rec).Extension
	assert.Equal(t, "AvailabilityZone", ext.Name)
	assert.Equal(t, []string{}, ext.Links)

	rec = do(t, h, http.MethodGet, "/v2/tenant-a/extensions/os-nope", "")
	assertFault(t, rec, http.StatusNotFound, "notFound", MsgExtensionNotFound)
}

func TestLoadExtensions_Invalid(t *testing.T) {
	_, err := LoadExtensions([]byte("- name: NoAlias\n"))
	assert.Error(t, err)

	_, err = LoadExtensions([]byte("- alias: a\n- alias: a\n"))
	assert.Error(t, err)

	_, err = LoadExtensions([]byte("{not: [yaml"))
	assert.Error(t, err)
}

// =============================================================================
// Routing and Identity
// =============================================================================

func TestUnknownRoute(t *testing.T) {
	rec := do(t, newTestHandler(providertest.New(), Config{}), http.MethodGet, "/v2/tenant-a/volumes", "")
	assertFault(t, rec, http.StatusNotFound, "notFound", "")
}

func TestTenantMismatchIsForbidden(t *testing.T) {
	stub := providertest.New()
	h := newTestHandler(stub, Config{RequireIdentity: true})

	req := httptest.NewRequest(http.MethodPost, "/v2/tenant-a/servers/1/action", bytes.NewBufferString(`{"os-start": null}`))
	req.Header.Set(auth.HeaderUserID, "u-1")
	req.Header.Set(auth.HeaderProjectID, "tenant-b")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assertFault(t, rec, http.StatusForbidden, "forbidden", corecompute.MsgForbidden)
	assert.Empty(t, stub.Ops())
}
