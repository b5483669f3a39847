package api

import (
	"log/slog"
	"net/http"

	corecompute "github.com/artpar/novagate/internal/core/compute"
	"github.com/artpar/novagate/internal/shell/api/openapi"
	"github.com/artpar/novagate/internal/shell/compute"
)

// =============================================================================
// API Setup
// =============================================================================

// APIConfig holds configuration for the API setup.
type APIConfig struct {
	Service *compute.Service
	Logger  *slog.Logger

	// RequireIdentity rejects requests without identity headers.
	RequireIdentity bool

	MetricsEnabled bool
	MetricsPath    string

	Version string

	// Readiness, when set, answers /ready instead of a live provider call.
	Readiness ReadinessChecker
}

// SetupAPI creates the complete API router.
func SetupAPI(cfg APIConfig) http.Handler {
	h := NewHandler(cfg.Service, Config{
		RequireIdentity: cfg.RequireIdentity,
		MetricsEnabled:  cfg.MetricsEnabled,
		MetricsPath:     cfg.MetricsPath,
		Version:         cfg.Version,
		Readiness:       cfg.Readiness,
	}, cfg.Logger)
	return h.Routes()
}

// =============================================================================
// Documented Routes
// =============================================================================

const (
	serversPath    = "/v2/{tenant_id}/servers"
	flavorsPath    = "/v2/{tenant_id}/flavors"
	extensionsPath = "/v2/{tenant_id}/extensions"
)

var listQuery = []string{"name", "status", "availability_zone", "limit"}

// documentedRoutes feeds /openapi.json.
var documentedRoutes = []openapi.Route{
	{
		Method: http.MethodPost, Path: serversPath, OperationID: "createServer",
		Summary: "Create a server", Tag: "Servers",
		Request: corecompute.CreateServerEnvelope{}, Response: ServerResponse{}, Status: http.StatusAccepted,
	},
	{
		Method: http.MethodGet, Path: serversPath, OperationID: "listServers",
		Summary: "List servers", Tag: "Servers", Query: listQuery, Response: ServerListResponse{},
	},
	{
		Method: http.MethodGet, Path: serversPath + "/detail", OperationID: "listServersDetail",
		Summary: "List servers with details", Tag: "Servers", Query: listQuery, Response: ServerDetailListResponse{},
	},
	{
		Method: http.MethodGet, Path: serversPath + "/{server_id}", OperationID: "getServer",
		Summary: "Show server details", Tag: "Servers", Response: ServerResponse{},
	},
	{
		Method: http.MethodPost, Path: serversPath + "/{server_id}/action", OperationID: "serverAction",
		Summary: "Run a server action", Tag: "Servers", Request: ActionEnvelope{}, Status: http.StatusAccepted,
	},
	{
		Method: http.MethodGet, Path: flavorsPath, OperationID: "listFlavors",
		Summary: "List flavors", Tag: "Flavors", Response: FlavorListResponse{},
	},
	{
		Method: http.MethodGet, Path: flavorsPath + "/detail", OperationID: "listFlavorsDetail",
		Summary: "List flavors with details", Tag: "Flavors", Response: FlavorDetailListResponse{},
	},
	{
		Method: http.MethodGet, Path: flavorsPath + "/{flavor_id}", OperationID: "getFlavor",
		Summary: "Show flavor details", Tag: "Flavors", Response: FlavorResponse{},
	},
	{
		Method: http.MethodGet, Path: extensionsPath, OperationID: "listExtensions",
		Summary: "List extensions", Tag: "Extensions", Response: ExtensionListResponse{},
	},
	{
		Method: http.MethodGet, Path: extensionsPath + "/{alias}", OperationID: "getExtension",
		Summary: "Show an extension", Tag: "Extensions", Response: ExtensionResponse{},
	},
}
