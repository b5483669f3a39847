// Package api serves the compute v2 API over HTTP.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	corecompute "github.com/artpar/novagate/internal/core/compute"
	"github.com/artpar/novagate/internal/shell/api/middleware"
	"github.com/artpar/novagate/internal/shell/api/openapi"
	"github.com/artpar/novagate/internal/shell/compute"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	compute    *compute.Service
	readiness  ReadinessChecker
	extensions *ExtensionCatalog
	openapi    *openapi.Generator
	config     Config
	logger     *slog.Logger
}

// ReadinessChecker reports whether the provider behind the gateway answers.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Config holds the HTTP surface options.
type Config struct {
	RequireIdentity bool
	MetricsEnabled  bool
	MetricsPath     string
	Version         string

	// Readiness overrides the live provider check behind /ready.
	Readiness ReadinessChecker
}

// NewHandler creates a new API handler.
func NewHandler(svc *compute.Service, cfg Config, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	gen := openapi.NewGenerator(openapi.WithVersion("2.0"))
	gen.Register(documentedRoutes...)
	var readiness ReadinessChecker = svc
	if cfg.Readiness != nil {
		readiness = cfg.Readiness
	}
	return &Handler{
		compute:    svc,
		readiness:  readiness,
		extensions: DefaultExtensions(),
		openapi:    gen,
		config:     cfg,
		logger:     l.With("component", "api"),
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.ComputeRequestID)
	r.Use(chimw.RealIP)
	r.Use(h.recoverer)
	r.Use(middleware.Instrument(h.logger))
	r.Use(h.jsonContentType)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteFault(w, corecompute.NewNotFoundError("The resource could not be found."))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteFault(w, &corecompute.Error{
			Kind:       corecompute.KindInvalidRequest,
			Message:    "The method specified is not allowed for this resource.",
			StatusCode: http.StatusMethodNotAllowed,
		})
	})

	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Get("/openapi.json", h.openapi.Handler())
	if h.config.MetricsEnabled {
		r.Handle(h.config.MetricsPath, promhttp.Handler())
	}

	authMW := middleware.NewAuthMiddleware(middleware.AuthConfig{
		RequireIdentity: h.config.RequireIdentity,
		Logger:          h.logger,
	})

	r.Route("/v2/{tenant_id}", func(r chi.Router) {
		r.Use(authMW.Handler)

		r.Route("/servers", func(r chi.Router) {
			r.Post("/", h.handleCreateServer)
			r.Get("/", h.handleListServers)
			r.Get("/detail", h.handleListServersDetail)
			r.Get("/{server_id}", h.handleGetServer)
			r.Post("/{server_id}/action", h.handleServerAction)
		})

		r.Route("/flavors", func(r chi.Router) {
			r.Get("/", h.handleListFlavors)
			r.Get("/detail", h.handleListFlavorsDetail)
			r.Get("/{flavor_id}", h.handleGetFlavor)
		})

		r.Route("/extensions", func(r chi.Router) {
			r.Get("/", h.handleListExtensions)
			r.Get("/{alias}", h.handleGetExtension)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// recoverer turns a panic into a computeFault envelope.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.logger.ErrorContext(r.Context(), "panic serving request",
					"panic", rec,
					"path", r.URL.Path,
				)
				middleware.WriteFault(w, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: h.config.Version})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"provider": "ok"}
	if err := h.readiness.Ready(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "provider not ready", "error", err)
		checks["provider"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not_ready", Checks: checks})
		return
	}
	h.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready", Checks: checks})
}

// =============================================================================
// Server Handlers
// =============================================================================

func (h *Handler) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		h.writeFault(w, r, corecompute.NewInvalidRequestError("%s", corecompute.MsgMalformedBody))
		return
	}

	view, err := h.compute.CreateServer(r.Context(), scope(r), body)
	if err != nil {
		h.writeFault(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, ServerResponse{Server: view})
}

func (h *Handler) handleListServers(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		h.writeFault(w, r, err)
		return
	}
	servers, err := h.compute.ListServers(r.Context(), scope(r), opts)
	if err != nil {
		h.writeFault(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ServerListResponse{Servers: servers})
}

func (h *Handler) handleListServersDetail(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		h.writeFault(w, r, err)
		return
	}
	servers, err := h.compute.ListServersDetail(r.Context(), scope(r), opts)
	if err != nil {
		h.writeFault(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ServerDetailListResponse{Servers: servers})
}

func (h *Handler) handleGetServer(w http.ResponseWriter, r *http.Request) {
	view, err := h.compute.GetServer(r.Context(), scope(r), chi.URLParam(r, "server_id"))
	if err != nil {
		h.writeFault(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ServerResponse{Server: view})
}

func (h *Handler) handleServerAction(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		h.writeFault(w, r, corecompute.NewMalformedEnvelopeError(err))
		return
	}

	status, err := h.compute.PerformAction(r.Context(), scope(r), chi.URLParam(r, "server_id"), body)
	if err != nil {
		h.writeFault(w, r, err)
		return
	}
	w.WriteHeader(status)
}

// =============================================================================
// Flavor Handlers
// =============================================================================

func (h *Handler) handleListFlavors(w http.ResponseWriter, r *http.Request) {
	views := h.compute.ListFlavors(scope(r))
	out := make([]FlavorSummary, 0, len(views))
	for _, f := range views {
		out = append(out, FlavorSummary{ID: f.ID, Name: f.Name, Links: f.Links})
	}
	h.writeJSON(w, http.StatusOK, FlavorListResponse{Flavors: out})
}

func (h *Handler) handleListFlavorsDetail(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, FlavorDetailListResponse{Flavors: h.compute.ListFlavors(scope(r))})
}

func (h *Handler) handleGetFlavor(w http.ResponseWriter, r *http.Request) {
	f, err := h.compute.GetFlavor(scope(r), chi.URLParam(r, "flavor_id"))
	if err != nil {
		h.writeFault(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, FlavorResponse{Flavor: f})
}

// =============================================================================
// Extension Handlers
// =============================================================================

func (h *Handler) handleListExtensions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, ExtensionListResponse{Extensions: h.extensions.All()})
}

func (h *Handler) handleGetExtension(w http.ResponseWriter, r *http.Request) {
	ext, ok := h.extensions.Get(chi.URLParam(r, "alias"))
	if !ok {
		h.writeFault(w, r, corecompute.NewNotFoundError(MsgExtensionNotFound))
		return
	}
	h.writeJSON(w, http.StatusOK, ExtensionResponse{Extension: ext})
}

// =============================================================================
// Helpers
// =============================================================================

// scope derives the tenant and the link base of a request. The base is the
// request's own origin; a configured base URL overrides it in the service.
func scope(r *http.Request) compute.Scope {
	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		proto = strings.ToLower(strings.TrimSpace(strings.Split(fwd, ",")[0]))
	}
	return compute.Scope{
		TenantID: chi.URLParam(r, middleware.TenantParam),
		BaseURL:  proto + "://" + r.Host,
	}
}

func listOptions(r *http.Request) (compute.ListOptions, error) {
	q := r.URL.Query()
	opts := compute.ListOptions{
		Name:             q.Get("name"),
		Status:           q.Get("status"),
		AvailabilityZone: q.Get("availability_zone"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return compute.ListOptions{}, corecompute.NewInvalidRequestError("limit param must be a non-negative integer")
		}
		opts.Limit = n
	}
	return opts, nil
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeFault is the only place a failure becomes a response.
func (h *Handler) writeFault(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := corecompute.Envelope(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "status", status, "error", err)
	}
	middleware.WriteFault(w, err)
}
