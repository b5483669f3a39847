package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/digitalocean/godo"

	"github.com/artpar/novagate/internal/core/compute"
	"github.com/artpar/novagate/internal/core/flavor"
	"github.com/artpar/novagate/internal/core/guest"
	coreprovider "github.com/artpar/novagate/internal/core/provider"
)

const (
	doManagedTag      = "novagate"
	doFlavorTagPrefix = "novagate-flavor-"
	doPageSize        = 100
)

// errDOPrivateOnly is returned for private-only requests; droplets always
// get a public interface.
var errDOPrivateOnly = errors.New("private-only networking is not supported by DigitalOcean")

// DigitalOceanClient implements Client for DigitalOcean. VPCs are not
// addressed by numeric ids, so both VLAN listings are empty and any numeric
// network request fails classification.
type DigitalOceanClient struct {
	client *godo.Client
	logger *slog.Logger
}

// NewDigitalOceanClient creates a DigitalOcean facade.
func NewDigitalOceanClient(apiToken string, logger *slog.Logger) *DigitalOceanClient {
	return &DigitalOceanClient{
		client: godo.NewFromToken(apiToken),
		logger: logger.With("provider", coreprovider.TypeDigitalOcean),
	}
}

// CreateInstance creates a droplet from resolved parameters.
func (p *DigitalOceanClient) CreateInstance(ctx context.Context, params compute.ProvisioningParameters) (guest.Guest, error) {
	if params.PrivateOnly != nil && *params.PrivateOnly {
		return guest.Guest{}, &Error{Provider: coreprovider.TypeDigitalOcean, Op: "CreateInstance", Message: errDOPrivateOnly.Error(), Err: errDOPrivateOnly}
	}
	size, ok := coreprovider.MatchSize(coreprovider.TypeDigitalOcean, params.CPUs, params.MemoryMB)
	if !ok {
		return guest.Guest{}, p.fail("CreateInstance", nil, fmt.Errorf("no droplet size fits %d cpus and %d MB", params.CPUs, params.MemoryMB))
	}

	req := &godo.DropletCreateRequest{
		Name:     fqdn(params.Hostname, params.Domain),
		Region:   params.Datacenter,
		Size:     size.ID,
		Image:    doImage(params.ImageRef),
		IPv6:     true,
		UserData: params.UserData,
		Tags:     []string{doManagedTag, doFlavorTagPrefix + params.FlavorID},
	}
	for _, keyID := range params.SSHKeyIDs {
		id, err := strconv.Atoi(keyID)
		if err != nil {
			return guest.Guest{}, p.fail("CreateInstance", nil, fmt.Errorf("invalid ssh key id %q", keyID))
		}
		req.SSHKeys = append(req.SSHKeys, godo.DropletCreateSSHKey{ID: id})
	}

	droplet, resp, err := p.client.Droplets.Create(ctx, req)
	if err != nil {
		return guest.Guest{}, p.fail("CreateInstance", resp, err)
	}

	p.logger.Info("droplet created", "droplet_id", droplet.ID, "region", params.Datacenter, "size", size.ID)
	return p.toGuest(droplet), nil
}

// ListInstances pages through droplets tagged by the gateway.
func (p *DigitalOceanClient) ListInstances(ctx context.Context, filter ListFilter) ([]guest.Guest, error) {
	out := make([]guest.Guest, 0)
	opt := &godo.ListOptions{PerPage: doPageSize}
	for {
		droplets, resp, err := p.client.Droplets.ListByTag(ctx, doManagedTag, opt)
		if err != nil {
			return nil, p.fail("ListInstances", resp, err)
		}

		for i := range droplets {
			g := p.toGuest(&droplets[i])
			if filter.Name != "" && g.Hostname != filter.Name && g.FullyQualifiedDomainName != filter.Name {
				continue
			}
			if filter.Datacenter != "" && (g.Datacenter == nil || g.Datacenter.Name != filter.Datacenter) {
				continue
			}
			out = append(out, g)
		}

		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
		if resp == nil || resp.Links == nil || resp.Links.IsLastPage() {
			break
		}
		page, err := resp.Links.CurrentPage()
		if err != nil {
			return nil, p.fail("ListInstances", nil, err)
		}
		opt.Page = page + 1
	}
	return limit(out, filter.Limit), nil
}

// GetInstance fetches one droplet.
func (p *DigitalOceanClient) GetInstance(ctx context.Context, id string) (guest.Guest, error) {
	droplet, err := p.droplet(ctx, "GetInstance", id)
	if err != nil {
		return guest.Guest{}, err
	}
	return p.toGuest(droplet), nil
}

func (p *DigitalOceanClient) PowerOn(ctx context.Context, id string) error {
	return p.action(ctx, "PowerOn", id, p.client.DropletActions.PowerOn)
}

func (p *DigitalOceanClient) PowerOff(ctx context.Context, id string) error {
	return p.action(ctx, "PowerOff", id, p.client.DropletActions.PowerOff)
}

// RebootSoft asks the droplet to reboot gracefully.
func (p *DigitalOceanClient) RebootSoft(ctx context.Context, id string) error {
	return p.action(ctx, "RebootSoft", id, p.client.DropletActions.Reboot)
}

// RebootHard power cycles the droplet.
func (p *DigitalOceanClient) RebootHard(ctx context.Context, id string) error {
	return p.action(ctx, "RebootHard", id, p.client.DropletActions.PowerCycle)
}

func (p *DigitalOceanClient) RebootDefault(ctx context.Context, id string) error {
	return p.action(ctx, "RebootDefault", id, p.client.DropletActions.Reboot)
}

// Upgrade resizes the droplet without growing its disk, then re-tags it with
// the new flavor.
func (p *DigitalOceanClient) Upgrade(ctx context.Context, id string, f flavor.Flavor) error {
	dropletID, err := parseDOID(id)
	if err != nil {
		return err
	}
	size, ok := coreprovider.MatchSize(coreprovider.TypeDigitalOcean, f.CPUs, f.MemoryMB)
	if !ok {
		return p.fail("Upgrade", nil, fmt.Errorf("no droplet size fits flavor %s", f.ID))
	}

	if _, resp, err := p.client.DropletActions.Resize(ctx, dropletID, size.ID, false); err != nil {
		return p.fail("Upgrade", resp, err)
	}

	p.retag(ctx, dropletID, f.ID)
	p.logger.Info("droplet resize started", "droplet_id", dropletID, "size", size.ID)
	return nil
}

// ConfirmResize only checks the droplet exists; resizes finalize on their own.
func (p *DigitalOceanClient) ConfirmResize(ctx context.Context, id string) error {
	_, err := p.droplet(ctx, "ConfirmResize", id)
	return err
}

// GetBlockDevices returns the droplet disk followed by attached volumes.
func (p *DigitalOceanClient) GetBlockDevices(ctx context.Context, id string) ([]guest.BlockDevice, error) {
	droplet, err := p.droplet(ctx, "GetBlockDevices", id)
	if err != nil {
		return nil, err
	}

	devices := []guest.BlockDevice{{ID: "boot", Device: "0", SizeGB: droplet.Disk}}
	for i, volumeID := range droplet.VolumeIDs {
		devices = append(devices, guest.BlockDevice{ID: volumeID, Device: strconv.Itoa(i + 1)})
	}
	return devices, nil
}

// CaptureArchive snapshots the droplet's disk.
func (p *DigitalOceanClient) CaptureArchive(ctx context.Context, id, name string, devices []guest.BlockDevice) error {
	dropletID, err := parseDOID(id)
	if err != nil {
		return err
	}
	action, resp, err := p.client.DropletActions.Snapshot(ctx, dropletID, name)
	if err != nil {
		return p.fail("CaptureArchive", resp, err)
	}
	p.logger.Info("droplet snapshot started", "droplet_id", dropletID, "action_id", action.ID, "name", name, "disks", len(devices))
	return nil
}

// ListPrivateVLANs is always empty on DigitalOcean.
func (p *DigitalOceanClient) ListPrivateVLANs(context.Context, string) ([]int64, error) {
	return []int64{}, nil
}

// ListPublicVLANs is always empty on DigitalOcean.
func (p *DigitalOceanClient) ListPublicVLANs(context.Context, string) ([]int64, error) {
	return []int64{}, nil
}

// ListSSHKeys returns account keys whose name equals name.
func (p *DigitalOceanClient) ListSSHKeys(ctx context.Context, _ string, name string) ([]guest.SSHKey, error) {
	out := make([]guest.SSHKey, 0)
	opt := &godo.ListOptions{PerPage: doPageSize}
	for {
		keys, resp, err := p.client.Keys.List(ctx, opt)
		if err != nil {
			return nil, p.fail("ListSSHKeys", resp, err)
		}
		for _, k := range keys {
			if k.Name == name {
				out = append(out, guest.SSHKey{ID: strconv.Itoa(k.ID), Label: k.Name, Fingerprint: k.Fingerprint})
			}
		}

		if resp == nil || resp.Links == nil || resp.Links.IsLastPage() {
			break
		}
		page, err := resp.Links.CurrentPage()
		if err != nil {
			return nil, p.fail("ListSSHKeys", nil, err)
		}
		opt.Page = page + 1
	}
	return out, nil
}

// =============================================================================
// Helpers
// =============================================================================

type doAction func(context.Context, int) (*godo.Action, *godo.Response, error)

func (p *DigitalOceanClient) action(ctx context.Context, op, id string, fn doAction) error {
	dropletID, err := parseDOID(id)
	if err != nil {
		return err
	}
	if _, resp, err := fn(ctx, dropletID); err != nil {
		return p.fail(op, resp, err)
	}
	p.logger.Info("droplet action started", "droplet_id", dropletID, "op", op)
	return nil
}

func (p *DigitalOceanClient) droplet(ctx context.Context, op, id string) (*godo.Droplet, error) {
	dropletID, err := parseDOID(id)
	if err != nil {
		return nil, err
	}
	droplet, resp, err := p.client.Droplets.Get(ctx, dropletID)
	if err != nil {
		return nil, p.fail(op, resp, err)
	}
	if droplet == nil {
		return nil, ErrNotFound
	}
	return droplet, nil
}

func (p *DigitalOceanClient) retag(ctx context.Context, dropletID int, flavorID string) {
	droplet, _, err := p.client.Droplets.Get(ctx, dropletID)
	if err != nil || droplet == nil {
		return
	}
	resource := godo.Resource{ID: strconv.Itoa(dropletID), Type: godo.DropletResourceType}
	for _, tag := range droplet.Tags {
		if strings.HasPrefix(tag, doFlavorTagPrefix) {
			if _, err := p.client.Tags.UntagResources(ctx, tag, &godo.UntagResourcesRequest{Resources: []godo.Resource{resource}}); err != nil {
				p.logger.Warn("failed to remove flavor tag", "droplet_id", dropletID, "tag", tag, "error", err)
			}
		}
	}
	tag := doFlavorTagPrefix + flavorID
	if _, _, err := p.client.Tags.Create(ctx, &godo.TagCreateRequest{Name: tag}); err != nil {
		p.logger.Warn("failed to create flavor tag", "tag", tag, "error", err)
	}
	if _, err := p.client.Tags.TagResources(ctx, tag, &godo.TagResourcesRequest{Resources: []godo.Resource{resource}}); err != nil {
		p.logger.Warn("failed to record flavor tag", "droplet_id", dropletID, "tag", tag, "error", err)
	}
}

// fail converts a vendor error into the facade's error types.
func (p *DigitalOceanClient) fail(op string, resp *godo.Response, err error) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	pErr := &Error{Provider: coreprovider.TypeDigitalOcean, Op: op, Message: err.Error(), Err: err}

	var errResp *godo.ErrorResponse
	if errors.As(err, &errResp) {
		pErr.Message = errResp.Message
		if errResp.Response != nil {
			status = errResp.Response.StatusCode
		}
	}
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	pErr.Retryable = status == http.StatusTooManyRequests || status >= http.StatusInternalServerError

	p.logger.Warn("DigitalOcean call failed", "op", op, "status", status, "error", err)
	return pErr
}

func parseDOID(id string) (int, error) {
	dropletID, err := strconv.Atoi(id)
	if err != nil || dropletID <= 0 {
		return 0, ErrNotFound
	}
	return dropletID, nil
}

func doImage(ref string) godo.DropletCreateImage {
	if id, err := strconv.Atoi(ref); err == nil {
		return godo.DropletCreateImage{ID: id}
	}
	return godo.DropletCreateImage{Slug: ref}
}

func (p *DigitalOceanClient) toGuest(d *godo.Droplet) guest.Guest {
	hostname, domain := splitName(d.Name)
	g := guest.Guest{
		ID:                       strconv.Itoa(d.ID),
		Hostname:                 hostname,
		Domain:                   domain,
		FullyQualifiedDomainName: d.Name,
		StartCPUs:                d.Vcpus,
		MaxMemory:                d.Memory,
		DiskGB:                   d.Disk,
		LocalDisk:                true,
	}

	for _, tag := range d.Tags {
		if strings.HasPrefix(tag, doFlavorTagPrefix) {
			orderShape(&g, strings.TrimPrefix(tag, doFlavorTagPrefix))
		}
	}

	if created, err := time.Parse(time.RFC3339, d.Created); err == nil {
		g.CreateDate = created
		g.ModifyDate = created
	}
	if ip, err := d.PublicIPv4(); err == nil {
		g.PrimaryIPAddress = ip
	}
	if ip, err := d.PrivateIPv4(); err == nil {
		g.PrimaryBackendIPAddress = ip
	}
	if ip, err := d.PublicIPv6(); err == nil {
		g.PrimaryIPv6Address = ip
	}
	if d.Image != nil {
		g.ImageName = d.Image.Name
	}
	if d.Region != nil {
		g.Datacenter = &guest.Datacenter{ID: d.Region.Slug, Name: d.Region.Slug, LongName: d.Region.Name}
	}

	g.Status, g.PowerState, g.ActiveTransaction = doState(d.Status, d.Locked)
	return g
}

func doState(status string, locked bool) (*guest.Status, *guest.PowerState, *guest.Transaction) {
	st := &guest.Status{KeyName: guest.StatusActive}
	power := &guest.PowerState{KeyName: guest.PowerRunning}
	var tx *guest.Transaction

	switch status {
	case "new":
		tx = &guest.Transaction{Name: guest.TransactionProvision}
		power.KeyName = guest.PowerHalted
	case "off":
		power.KeyName = guest.PowerHalted
	case "archive":
		st.KeyName = guest.StatusDeactive
		power.KeyName = guest.PowerHalted
	case "active":
	default:
		st.KeyName = guest.StatusDisconnected
	}
	if locked && tx == nil {
		tx = &guest.Transaction{Name: guest.TransactionCapture}
	}
	return st, power, tx
}
