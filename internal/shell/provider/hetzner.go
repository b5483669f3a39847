package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/artpar/novagate/internal/core/compute"
	"github.com/artpar/novagate/internal/core/flavor"
	"github.com/artpar/novagate/internal/core/guest"
	coreprovider "github.com/artpar/novagate/internal/core/provider"
)

// DefaultNetworkLabel is the label key that classifies Hetzner networks as
// public or private VLANs.
const DefaultNetworkLabel = "novagate/network-class"

// HetznerClient implements Client for Hetzner Cloud. Networks carrying the
// network label stand in for VLANs; their ids are the VLAN ids.
type HetznerClient struct {
	client       *hcloud.Client
	networkLabel string
	logger       *slog.Logger
}

// NewHetznerClient creates a Hetzner Cloud facade.
func NewHetznerClient(apiToken, networkLabel string, logger *slog.Logger) *HetznerClient {
	if networkLabel == "" {
		networkLabel = DefaultNetworkLabel
	}
	return &HetznerClient{
		client:       hcloud.NewClient(hcloud.WithToken(apiToken), hcloud.WithApplication("novagate", "")),
		networkLabel: networkLabel,
		logger:       logger.With("provider", coreprovider.TypeHetzner),
	}
}

// CreateInstance creates a Hetzner server from resolved parameters.
func (p *HetznerClient) CreateInstance(ctx context.Context, params compute.ProvisioningParameters) (guest.Guest, error) {
	size, ok := coreprovider.MatchSize(coreprovider.TypeHetzner, params.CPUs, params.MemoryMB)
	if !ok {
		return guest.Guest{}, p.fail("CreateInstance", fmt.Errorf("no server type fits %d cpus and %d MB", params.CPUs, params.MemoryMB))
	}

	opts := hcloud.ServerCreateOpts{
		Name:       fqdn(params.Hostname, params.Domain),
		ServerType: &hcloud.ServerType{Name: size.ID},
		Image:      hetznerImage(params.ImageRef),
		Location:   &hcloud.Location{Name: params.Datacenter},
		UserData:   params.UserData,
		Labels: map[string]string{
			managedByKey: managedByValue,
			flavorKey:    params.FlavorID,
			domainKey:    params.Domain,
		},
	}

	for _, keyID := range params.SSHKeyIDs {
		id, err := strconv.ParseInt(keyID, 10, 64)
		if err != nil {
			return guest.Guest{}, p.fail("CreateInstance", fmt.Errorf("invalid ssh key id %q", keyID))
		}
		opts.SSHKeys = append(opts.SSHKeys, &hcloud.SSHKey{ID: id})
	}
	for _, vlan := range []int64{params.PublicVLAN, params.PrivateVLAN} {
		if vlan != 0 {
			opts.Networks = append(opts.Networks, &hcloud.Network{ID: vlan})
		}
	}
	if params.PrivateOnly != nil && *params.PrivateOnly {
		opts.PublicNet = &hcloud.ServerCreatePublicNet{EnableIPv4: false, EnableIPv6: false}
	}

	result, _, err := p.client.Server.Create(ctx, opts)
	if err != nil {
		return guest.Guest{}, p.fail("CreateInstance", err)
	}

	p.logger.Info("Hetzner server created", "server_id", result.Server.ID, "location", params.Datacenter, "server_type", size.ID)
	return p.toGuest(result.Server), nil
}

// ListInstances lists servers created by the gateway.
func (p *HetznerClient) ListInstances(ctx context.Context, filter ListFilter) ([]guest.Guest, error) {
	servers, err := p.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: managedByKey + "=" + managedByValue},
	})
	if err != nil {
		return nil, p.fail("ListInstances", err)
	}

	out := make([]guest.Guest, 0, len(servers))
	for _, s := range servers {
		g := p.toGuest(s)
		if filter.Name != "" && g.Hostname != filter.Name && g.FullyQualifiedDomainName != filter.Name {
			continue
		}
		if filter.Datacenter != "" && (g.Datacenter == nil || g.Datacenter.Name != filter.Datacenter) {
			continue
		}
		out = append(out, g)
	}
	return limit(out, filter.Limit), nil
}

// GetInstance fetches one server.
func (p *HetznerClient) GetInstance(ctx context.Context, id string) (guest.Guest, error) {
	server, err := p.server(ctx, "GetInstance", id)
	if err != nil {
		return guest.Guest{}, err
	}
	return p.toGuest(server), nil
}

func (p *HetznerClient) PowerOn(ctx context.Context, id string) error {
	return p.action(ctx, "PowerOn", id, p.client.Server.Poweron)
}

func (p *HetznerClient) PowerOff(ctx context.Context, id string) error {
	return p.action(ctx, "PowerOff", id, p.client.Server.Poweroff)
}

// RebootSoft sends an ACPI reboot request.
func (p *HetznerClient) RebootSoft(ctx context.Context, id string) error {
	return p.action(ctx, "RebootSoft", id, p.client.Server.Reboot)
}

// RebootHard resets the server.
func (p *HetznerClient) RebootHard(ctx context.Context, id string) error {
	return p.action(ctx, "RebootHard", id, p.client.Server.Reset)
}

func (p *HetznerClient) RebootDefault(ctx context.Context, id string) error {
	return p.action(ctx, "RebootDefault", id, p.client.Server.Reboot)
}

// Upgrade changes the server type. The disk is left alone so the change can
// be reverted to a smaller type.
func (p *HetznerClient) Upgrade(ctx context.Context, id string, f flavor.Flavor) error {
	serverID, err := parseHetznerID(id)
	if err != nil {
		return err
	}
	size, ok := coreprovider.MatchSize(coreprovider.TypeHetzner, f.CPUs, f.MemoryMB)
	if !ok {
		return p.fail("Upgrade", fmt.Errorf("no server type fits flavor %s", f.ID))
	}

	server := &hcloud.Server{ID: serverID}
	if _, _, err := p.client.Server.ChangeType(ctx, server, hcloud.ServerChangeTypeOpts{
		ServerType:  &hcloud.ServerType{Name: size.ID},
		UpgradeDisk: false,
	}); err != nil {
		return p.fail("Upgrade", err)
	}
	if _, _, err := p.client.Server.Update(ctx, server, hcloud.ServerUpdateOpts{
		Labels: p.relabel(ctx, serverID, f.ID),
	}); err != nil {
		p.logger.Warn("failed to record flavor label", "server_id", serverID, "error", err)
	}

	p.logger.Info("Hetzner server type changed", "server_id", serverID, "server_type", size.ID)
	return nil
}

// ConfirmResize has nothing to finalize on Hetzner; it only checks the
// server exists.
func (p *HetznerClient) ConfirmResize(ctx context.Context, id string) error {
	_, err := p.server(ctx, "ConfirmResize", id)
	return err
}

// GetBlockDevices returns the local boot disk followed by attached volumes.
func (p *HetznerClient) GetBlockDevices(ctx context.Context, id string) ([]guest.BlockDevice, error) {
	server, err := p.server(ctx, "GetBlockDevices", id)
	if err != nil {
		return nil, err
	}

	devices := []guest.BlockDevice{{ID: "boot", Device: "0"}}
	if server.ServerType != nil {
		devices[0].SizeGB = server.ServerType.Disk
	}
	for i, v := range server.Volumes {
		if v == nil {
			continue
		}
		devices = append(devices, guest.BlockDevice{
			ID:     strconv.FormatInt(v.ID, 10),
			Device: strconv.Itoa(i + 1),
			SizeGB: v.Size,
		})
	}
	return devices, nil
}

// CaptureArchive snapshots the server. Hetzner snapshots cover the local
// disk only, so volumes in devices are recorded on the image but not
// captured.
func (p *HetznerClient) CaptureArchive(ctx context.Context, id, name string, devices []guest.BlockDevice) error {
	serverID, err := parseHetznerID(id)
	if err != nil {
		return err
	}

	description := name
	result, _, err := p.client.Server.CreateImage(ctx, &hcloud.Server{ID: serverID}, &hcloud.ServerCreateImageOpts{
		Type:        hcloud.ImageTypeSnapshot,
		Description: &description,
		Labels: map[string]string{
			managedByKey:     managedByValue,
			"novagate/disks": strconv.Itoa(len(devices)),
		},
	})
	if err != nil {
		return p.fail("CaptureArchive", err)
	}

	if result.Image != nil {
		p.logger.Info("Hetzner snapshot started", "server_id", serverID, "image_id", result.Image.ID, "name", name)
	}
	return nil
}

// ListPrivateVLANs returns ids of networks labelled private.
func (p *HetznerClient) ListPrivateVLANs(ctx context.Context, _ string) ([]int64, error) {
	return p.networks(ctx, "ListPrivateVLANs", compute.NetworkPrivate)
}

// ListPublicVLANs returns ids of networks labelled public.
func (p *HetznerClient) ListPublicVLANs(ctx context.Context, _ string) ([]int64, error) {
	return p.networks(ctx, "ListPublicVLANs", compute.NetworkPublic)
}

// ListSSHKeys returns the keys registered under name.
func (p *HetznerClient) ListSSHKeys(ctx context.Context, _ string, name string) ([]guest.SSHKey, error) {
	keys, err := p.client.SSHKey.AllWithOpts(ctx, hcloud.SSHKeyListOpts{Name: name})
	if err != nil {
		return nil, p.fail("ListSSHKeys", err)
	}

	out := make([]guest.SSHKey, 0, len(keys))
	for _, k := range keys {
		out = append(out, guest.SSHKey{
			ID:          strconv.FormatInt(k.ID, 10),
			Label:       k.Name,
			Fingerprint: k.Fingerprint,
		})
	}
	return out, nil
}

// =============================================================================
// Helpers
// =============================================================================

type hetznerAction func(context.Context, *hcloud.Server) (*hcloud.Action, *hcloud.Response, error)

func (p *HetznerClient) action(ctx context.Context, op, id string, fn hetznerAction) error {
	serverID, err := parseHetznerID(id)
	if err != nil {
		return err
	}
	if _, _, err := fn(ctx, &hcloud.Server{ID: serverID}); err != nil {
		return p.fail(op, err)
	}
	p.logger.Info("Hetzner server action started", "server_id", serverID, "op", op)
	return nil
}

func (p *HetznerClient) server(ctx context.Context, op, id string) (*hcloud.Server, error) {
	serverID, err := parseHetznerID(id)
	if err != nil {
		return nil, err
	}
	server, _, err := p.client.Server.GetByID(ctx, serverID)
	if err != nil {
		return nil, p.fail(op, err)
	}
	if server == nil {
		return nil, ErrNotFound
	}
	return server, nil
}

func (p *HetznerClient) relabel(ctx context.Context, serverID int64, flavorID string) map[string]string {
	labels := map[string]string{managedByKey: managedByValue}
	if server, _, err := p.client.Server.GetByID(ctx, serverID); err == nil && server != nil {
		for k, v := range server.Labels {
			labels[k] = v
		}
	}
	labels[flavorKey] = flavorID
	return labels
}

func (p *HetznerClient) networks(ctx context.Context, op, class string) ([]int64, error) {
	networks, err := p.client.Network.AllWithOpts(ctx, hcloud.NetworkListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: p.networkLabel + "=" + class},
	})
	if err != nil {
		return nil, p.fail(op, err)
	}

	ids := make([]int64, 0, len(networks))
	for _, n := range networks {
		ids = append(ids, n.ID)
	}
	return ids, nil
}

// fail converts a vendor error into the facade's error types.
func (p *HetznerClient) fail(op string, err error) error {
	if hcloud.IsError(err, hcloud.ErrorCodeNotFound) {
		return ErrNotFound
	}

	pErr := &Error{Provider: coreprovider.TypeHetzner, Op: op, Message: err.Error(), Err: err}
	var hErr hcloud.Error
	if errors.As(err, &hErr) {
		pErr.Message = hErr.Message
		switch hErr.Code {
		case hcloud.ErrorCodeRateLimitExceeded, hcloud.ErrorCodeLocked, hcloud.ErrorCodeConflict,
			hcloud.ErrorCodeServiceError, hcloud.ErrorCodeUnavailable, hcloud.ErrorCodeTimeout:
			pErr.Retryable = true
		}
	}
	p.logger.Warn("Hetzner call failed", "op", op, "error", err)
	return pErr
}

func parseHetznerID(id string) (int64, error) {
	serverID, err := strconv.ParseInt(id, 10, 64)
	if err != nil || serverID <= 0 {
		return 0, ErrNotFound
	}
	return serverID, nil
}

func hetznerImage(ref string) *hcloud.Image {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return &hcloud.Image{ID: id}
	}
	return &hcloud.Image{Name: ref}
}

func (p *HetznerClient) toGuest(s *hcloud.Server) guest.Guest {
	hostname, domain := splitName(s.Name)
	if d := s.Labels[domainKey]; d != "" && domain == "" {
		domain = d
	}

	g := guest.Guest{
		ID:                       strconv.FormatInt(s.ID, 10),
		Hostname:                 hostname,
		Domain:                   domain,
		FullyQualifiedDomainName: s.Name,
		CreateDate:               s.Created,
		ModifyDate:               s.Created,
	}

	if s.ServerType != nil {
		g.StartCPUs = s.ServerType.Cores
		g.MaxMemory = int(s.ServerType.Memory * 1024)
		g.DiskGB = s.ServerType.Disk
		g.LocalDisk = s.ServerType.StorageType == hcloud.StorageTypeLocal
	}
	orderShape(&g, s.Labels[flavorKey])

	if ip := s.PublicNet.IPv4.IP; ip != nil && !ip.IsUnspecified() {
		g.PrimaryIPAddress = ip.String()
	}
	if ip := s.PublicNet.IPv6.IP; ip != nil && !ip.IsUnspecified() {
		g.PrimaryIPv6Address = ip.String()
	}
	for _, pn := range s.PrivateNet {
		if pn.IP != nil {
			g.PrimaryBackendIPAddress = pn.IP.String()
			break
		}
	}

	if s.Image != nil {
		g.ImageName = s.Image.Name
		if g.ImageName == "" {
			g.ImageName = s.Image.Description
		}
	}

	if s.Datacenter != nil && s.Datacenter.Location != nil {
		loc := s.Datacenter.Location
		g.Datacenter = &guest.Datacenter{ID: strconv.FormatInt(s.Datacenter.ID, 10), Name: loc.Name, LongName: loc.City}
		if r, ok := coreprovider.LookupRegion(coreprovider.TypeHetzner, loc.Name); ok {
			g.Datacenter.LongName = r.Name
		}
	}

	g.Status, g.PowerState, g.ActiveTransaction = hetznerState(s.Status, s.Locked)
	return g
}

func hetznerState(status hcloud.ServerStatus, locked bool) (*guest.Status, *guest.PowerState, *guest.Transaction) {
	st := &guest.Status{KeyName: guest.StatusActive}
	power := &guest.PowerState{KeyName: guest.PowerRunning}
	var tx *guest.Transaction

	switch status {
	case hcloud.ServerStatusInitializing:
		tx = &guest.Transaction{Name: guest.TransactionProvision}
		power.KeyName = guest.PowerHalted
	case hcloud.ServerStatusOff, hcloud.ServerStatusStarting:
		power.KeyName = guest.PowerHalted
	case hcloud.ServerStatusRebuilding:
		tx = &guest.Transaction{Name: guest.TransactionReload}
	case hcloud.ServerStatusMigrating:
		tx = &guest.Transaction{Name: guest.TransactionMigrate}
	case hcloud.ServerStatusDeleting:
		st.KeyName = guest.StatusDeactive
		power.KeyName = guest.PowerHalted
	case hcloud.ServerStatusUnknown:
		st.KeyName = guest.StatusDisconnected
	}
	if locked && tx == nil {
		tx = &guest.Transaction{Name: guest.TransactionCapture}
	}
	return st, power, tx
}
