// Package provider implements the Provider Client Facade: one Client per
// vendor API, plus retry and metrics decorators.
// This is part of the Imperative Shell - handles I/O with cloud APIs.
package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/artpar/novagate/internal/core/compute"
	"github.com/artpar/novagate/internal/core/flavor"
	"github.com/artpar/novagate/internal/core/guest"
)

// ErrNotFound is returned when the addressed instance does not exist.
var ErrNotFound = errors.New("instance not found")

// ListFilter narrows an instance listing. Zero fields match everything.
type ListFilter struct {
	Name       string
	Datacenter string
	Limit      int
}

// Client is the Provider Client Facade. Every call is a blocking vendor API
// round trip.
type Client interface {
	// CreateInstance places an order for a new instance.
	CreateInstance(ctx context.Context, params compute.ProvisioningParameters) (guest.Guest, error)

	// ListInstances returns instances managed by the gateway.
	ListInstances(ctx context.Context, filter ListFilter) ([]guest.Guest, error)

	// GetInstance returns one instance or ErrNotFound.
	GetInstance(ctx context.Context, id string) (guest.Guest, error)

	PowerOn(ctx context.Context, id string) error
	PowerOff(ctx context.Context, id string) error
	RebootSoft(ctx context.Context, id string) error
	RebootHard(ctx context.Context, id string) error
	RebootDefault(ctx context.Context, id string) error

	// Upgrade moves an instance to the vendor size that fits the flavor.
	Upgrade(ctx context.Context, id string, f flavor.Flavor) error
	ConfirmResize(ctx context.Context, id string) error

	GetBlockDevices(ctx context.Context, id string) ([]guest.BlockDevice, error)
	CaptureArchive(ctx context.Context, id, name string, devices []guest.BlockDevice) error

	ListPrivateVLANs(ctx context.Context, account string) ([]int64, error)
	ListPublicVLANs(ctx context.Context, account string) ([]int64, error)
	ListSSHKeys(ctx context.Context, account, name string) ([]guest.SSHKey, error)
}

// Error is a failure reported by a vendor API. Message is the vendor's own
// text and is safe to show to clients.
type Error struct {
	Provider  string
	Op        string
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient vendor failure.
func IsRetryable(err error) bool {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Retryable
	}
	return false
}

// =============================================================================
// Gateway Labels
// =============================================================================

// Labels written on every instance the gateway creates.
const (
	managedByKey   = "managed-by"
	managedByValue = "novagate"
	flavorKey      = "novagate/flavor"
	domainKey      = "novagate/domain"
)

// splitName separates an instance name into hostname and domain.
func splitName(name string) (string, string) {
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}

func fqdn(hostname, domain string) string {
	if domain == "" {
		return hostname
	}
	return hostname + "." + domain
}

// orderShape reports the shape an instance was ordered with. Vendor sizes are
// rounded up from the flavor, so the flavor recorded at create time wins
// over the native size when it is known.
func orderShape(g *guest.Guest, flavorID string) {
	if flavorID == "" {
		return
	}
	f, err := flavor.Resolve(flavorID)
	if err != nil {
		return
	}
	g.StartCPUs = f.CPUs
	g.MaxMemory = f.MemoryMB
	g.DiskGB = f.DiskGB
	g.LocalDisk = f.LocalDisk()
}

// limit truncates a listing to the filter's limit.
func limit(guests []guest.Guest, n int) []guest.Guest {
	if n > 0 && len(guests) > n {
		return guests[:n]
	}
	return guests
}
