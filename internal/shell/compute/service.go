// Package compute runs the creation pipeline, action dispatch and read
// translation against the Provider Client Facade.
// This is part of the Imperative Shell - it performs facade I/O and calls
// the pure resolvers in core/compute.
package compute

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	corecompute "github.com/artpar/novagate/internal/core/compute"
	"github.com/artpar/novagate/internal/core/flavor"
	"github.com/artpar/novagate/internal/shell/metrics"
	"github.com/artpar/novagate/internal/shell/provider"
)

// MsgFlavorNotFound is returned for unknown flavor ids on flavor routes.
const MsgFlavorNotFound = "Flavor could not be found"

// Config is the immutable configuration shared by all requests.
type Config struct {
	// BaseURL prefixes resource links. Empty means the request's own origin.
	BaseURL                 string
	DefaultAvailabilityZone string
	DefaultDomain           string
}

// Scope identifies who a request is made for and where links point.
type Scope struct {
	TenantID string
	BaseURL  string
}

// Service implements the compute server operations.
type Service struct {
	client      provider.Client
	datacenters corecompute.DatacenterResolver
	config      Config
	logger      *slog.Logger
}

// NewService creates a compute service over a facade client.
func NewService(client provider.Client, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:      client,
		datacenters: corecompute.NewDatacenterResolver(cfg.DefaultAvailabilityZone),
		config:      cfg,
		logger:      logger.With("component", "compute"),
	}
}

func (s *Service) links(scope Scope) corecompute.LinkBuilder {
	base := s.config.BaseURL
	if base == "" {
		base = scope.BaseURL
	}
	return corecompute.NewLinkBuilder(base, scope.TenantID)
}

// =============================================================================
// Creation Pipeline
// =============================================================================

// CreateServer resolves a create request into provisioning parameters and
// places the order. Every failure, including a provider rejection, is a
// client error.
func (s *Service) CreateServer(ctx context.Context, scope Scope, body []byte) (view corecompute.InstanceView, err error) {
	defer func() { metrics.ServerCreateCount.WithLabelValues(metrics.Result(err)).Inc() }()

	params, err := s.resolve(ctx, scope, body)
	if err != nil {
		s.logger.InfoContext(ctx, "create request rejected", "error", err)
		return corecompute.InstanceView{}, err
	}

	g, err := s.client.CreateInstance(ctx, params)
	if err != nil {
		s.logger.WarnContext(ctx, "provider rejected create", "hostname", params.Hostname, "error", err)
		return corecompute.InstanceView{}, createFailure(err)
	}

	s.logger.InfoContext(ctx, "server ordered",
		"server_id", g.ID,
		"hostname", params.Hostname,
		"flavor", params.FlavorID,
		"datacenter", params.Datacenter,
	)
	return corecompute.NewInstanceView(g, s.links(scope)), nil
}

// resolve runs the field resolvers in order and merges their fragments.
func (s *Service) resolve(ctx context.Context, scope Scope, body []byte) (corecompute.ProvisioningParameters, error) {
	req, err := corecompute.DecodeCreateServer(body)
	if err != nil {
		return corecompute.ProvisioningParameters{}, err
	}

	var frags corecompute.Fragments
	if frags.Identity, err = corecompute.ResolveIdentity(req, s.config.DefaultDomain); err != nil {
		return corecompute.ProvisioningParameters{}, err
	}
	if frags.Flavor, err = corecompute.ResolveFlavor(req.FlavorRef); err != nil {
		return corecompute.ProvisioningParameters{}, err
	}
	if frags.SSHKeyIDs, err = s.resolveSSHKeys(ctx, scope, req.KeyName); err != nil {
		return corecompute.ProvisioningParameters{}, err
	}
	if frags.UserData, err = corecompute.AssembleUserData(req); err != nil {
		return corecompute.ProvisioningParameters{}, err
	}
	if frags.Datacenter, err = s.datacenters.Resolve(req.AvailabilityZone); err != nil {
		return corecompute.ProvisioningParameters{}, err
	}
	if frags.Network, err = s.resolveNetworks(ctx, scope, req.Networks); err != nil {
		return corecompute.ProvisioningParameters{}, err
	}

	return corecompute.BuildParameters(frags)
}

func (s *Service) resolveSSHKeys(ctx context.Context, scope Scope, name string) ([]string, error) {
	if name == "" {
		return corecompute.SelectSSHKeys("", nil)
	}
	matches, err := s.client.ListSSHKeys(ctx, scope.TenantID, name)
	if err != nil {
		return nil, createFailure(err)
	}
	return corecompute.SelectSSHKeys(name, matches)
}

func (s *Service) resolveNetworks(ctx context.Context, scope Scope, refs []corecompute.NetworkRef) (corecompute.NetworkAssignment, error) {
	plan, err := corecompute.PlanNetworks(refs)
	if err != nil {
		return corecompute.NetworkAssignment{}, err
	}
	if !plan.NeedsVLANLookup() {
		return plan.Resolve(nil, nil)
	}

	private, err := s.client.ListPrivateVLANs(ctx, scope.TenantID)
	if err != nil {
		return corecompute.NetworkAssignment{}, createFailure(err)
	}
	public, err := s.client.ListPublicVLANs(ctx, scope.TenantID)
	if err != nil {
		return corecompute.NetworkAssignment{}, createFailure(err)
	}
	return plan.Resolve(private, public)
}

// =============================================================================
// Action Dispatch
// =============================================================================

// PerformAction parses an action envelope and routes it to the facade. It
// returns the success status: 204 for confirmResize, 202 otherwise.
func (s *Service) PerformAction(ctx context.Context, scope Scope, id string, body []byte) (status int, err error) {
	key := "invalid"
	defer func() { metrics.ServerActionCount.WithLabelValues(key, metrics.Result(err)).Inc() }()

	if strings.TrimSpace(id) == "" {
		return 0, corecompute.NewNotFoundError(corecompute.MsgInvalidInstanceID)
	}
	action, err := corecompute.ParseAction(body)
	if err != nil {
		return 0, err
	}
	key = action.Key()

	logger := s.logger.With("server_id", id, "action", key)
	if err := s.dispatch(ctx, id, action); err != nil {
		logger.WarnContext(ctx, "server action failed", "error", err)
		return 0, err
	}
	logger.InfoContext(ctx, "server action accepted")

	if _, ok := action.(corecompute.ConfirmResize); ok {
		return http.StatusNoContent, nil
	}
	return http.StatusAccepted, nil
}

func (s *Service) dispatch(ctx context.Context, id string, action corecompute.Action) error {
	switch a := action.(type) {
	case corecompute.PowerOn:
		return actionFailure(s.client.PowerOn(ctx, id))

	case corecompute.PowerOff:
		return actionFailure(s.client.PowerOff(ctx, id))

	case corecompute.Reboot:
		switch a.Type {
		case corecompute.RebootSoft:
			return actionFailure(s.client.RebootSoft(ctx, id))
		case corecompute.RebootHard:
			return actionFailure(s.client.RebootHard(ctx, id))
		default:
			return actionFailure(s.client.RebootDefault(ctx, id))
		}

	case corecompute.Resize:
		f, err := corecompute.ResolveFlavor(a.FlavorRef)
		if err != nil {
			return err
		}
		return actionFailure(s.client.Upgrade(ctx, id, f))

	case corecompute.ConfirmResize:
		return actionFailure(s.client.ConfirmResize(ctx, id))

	case corecompute.CreateImage:
		if strings.TrimSpace(a.Name) == "" {
			return corecompute.NewInvalidRequestError("createImage requires a name")
		}
		devices, err := s.client.GetBlockDevices(ctx, id)
		if err != nil {
			return actionFailure(err)
		}
		return actionFailure(s.client.CaptureArchive(ctx, id, a.Name, devices))

	default:
		return corecompute.NewMalformedEnvelopeError(errors.New("unhandled action"))
	}
}

// =============================================================================
// Reads
// =============================================================================

// ListOptions are the query filters of the server listings.
type ListOptions struct {
	Name             string
	Status           string
	AvailabilityZone string
	Limit            int
}

// ListServers returns the short form of every matching server.
func (s *Service) ListServers(ctx context.Context, scope Scope, opts ListOptions) ([]corecompute.ServerSummary, error) {
	views, err := s.ListServersDetail(ctx, scope, opts)
	if err != nil {
		return nil, err
	}
	out := make([]corecompute.ServerSummary, 0, len(views))
	for _, v := range views {
		out = append(out, corecompute.ServerSummary{ID: v.ID, Name: v.Name, Links: v.Links})
	}
	return out, nil
}

// ListServersDetail returns the full view of every matching server. Status
// is filtered after translation since it is a derived field.
func (s *Service) ListServersDetail(ctx context.Context, scope Scope, opts ListOptions) ([]corecompute.InstanceView, error) {
	filter := provider.ListFilter{Name: opts.Name, Datacenter: opts.AvailabilityZone}
	status := strings.ToUpper(opts.Status)
	if status == "" {
		filter.Limit = opts.Limit
	}

	guests, err := s.client.ListInstances(ctx, filter)
	if err != nil {
		return nil, actionFailure(err)
	}

	links := s.links(scope)
	views := make([]corecompute.InstanceView, 0, len(guests))
	for _, g := range guests {
		v := corecompute.NewInstanceView(g, links)
		if status != "" && v.Status != status {
			continue
		}
		views = append(views, v)
		if opts.Limit > 0 && len(views) == opts.Limit {
			break
		}
	}
	return views, nil
}

// GetServer returns one server's full view.
func (s *Service) GetServer(ctx context.Context, scope Scope, id string) (corecompute.InstanceView, error) {
	if strings.TrimSpace(id) == "" {
		return corecompute.InstanceView{}, corecompute.NewNotFoundError(corecompute.MsgInvalidInstanceID)
	}
	g, err := s.client.GetInstance(ctx, id)
	if err != nil {
		return corecompute.InstanceView{}, actionFailure(err)
	}
	return corecompute.NewInstanceView(g, s.links(scope)), nil
}

// ListFlavors returns the flavor catalog.
func (s *Service) ListFlavors(scope Scope) []corecompute.FlavorView {
	links := s.links(scope)
	all := flavor.All()
	out := make([]corecompute.FlavorView, 0, len(all))
	for _, f := range all {
		out = append(out, corecompute.NewFlavorView(f, links))
	}
	return out
}

// GetFlavor returns one catalog flavor.
func (s *Service) GetFlavor(scope Scope, id string) (corecompute.FlavorView, error) {
	f, err := flavor.Resolve(id)
	if err != nil {
		return corecompute.FlavorView{}, corecompute.NewNotFoundError(MsgFlavorNotFound)
	}
	return corecompute.NewFlavorView(f, s.links(scope)), nil
}

// Ready checks the facade answers a minimal listing.
func (s *Service) Ready(ctx context.Context) error {
	_, err := s.client.ListInstances(ctx, provider.ListFilter{Limit: 1})
	return err
}

// =============================================================================
// Failure Mapping
// =============================================================================

// createFailure maps a facade error during creation: always a client error.
func createFailure(err error) error {
	return providerFailure(http.StatusBadRequest, err)
}

// actionFailure maps a facade error during a lifecycle action or read.
func actionFailure(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, provider.ErrNotFound) {
		return corecompute.NewNotFoundError(corecompute.MsgInstanceNotFound)
	}
	return providerFailure(http.StatusInternalServerError, err)
}

// providerFailure keeps vendor messages and hides anything else.
func providerFailure(status int, err error) error {
	var pErr *provider.Error
	if errors.As(err, &pErr) {
		return corecompute.NewProviderError(status, pErr)
	}
	cErr := corecompute.NewProviderError(status, nil)
	cErr.Err = err
	return cErr
}
