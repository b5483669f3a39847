package provider

import (
	"context"
	"time"

	"github.com/artpar/novagate/internal/core/compute"
	"github.com/artpar/novagate/internal/core/flavor"
	"github.com/artpar/novagate/internal/core/guest"
	"github.com/artpar/novagate/internal/shell/metrics"
)

// instrumented records call counts and latency for every facade call.
type instrumented struct {
	next     Client
	provider string
}

// WithMetrics wraps c with prometheus instrumentation labelled by provider.
func WithMetrics(c Client, provider string) Client {
	return &instrumented{next: c, provider: provider}
}

func (m *instrumented) CreateInstance(ctx context.Context, params compute.ProvisioningParameters) (guest.Guest, error) {
	start := time.Now()
	out, err := m.next.CreateInstance(ctx, params)
	metrics.ObserveProviderCall(m.provider, "CreateInstance", start, err)
	return out, err
}

func (m *instrumented) ListInstances(ctx context.Context, filter ListFilter) ([]guest.Guest, error) {
	start := time.Now()
	out, err := m.next.ListInstances(ctx, filter)
	metrics.ObserveProviderCall(m.provider, "ListInstances", start, err)
	return out, err
}

func (m *instrumented) GetInstance(ctx context.Context, id string) (guest.Guest, error) {
	start := time.Now()
	out, err := m.next.GetInstance(ctx, id)
	metrics.ObserveProviderCall(m.provider, "GetInstance", start, err)
	return out, err
}

func (m *instrumented) PowerOn(ctx context.Context, id string) error {
	start := time.Now()
	err := m.next.PowerOn(ctx, id)
	metrics.ObserveProviderCall(m.provider, "PowerOn", start, err)
	return err
}

func (m *instrumented) PowerOff(ctx context.Context, id string) error {
	start := time.Now()
	err := m.next.PowerOff(ctx, id)
	metrics.ObserveProviderCall(m.provider, "PowerOff", start, err)
	return err
}

func (m *instrumented) RebootSoft(ctx context.Context, id string) error {
	start := time.Now()
	err := m.next.RebootSoft(ctx, id)
	metrics.ObserveProviderCall(m.provider, "RebootSoft", start, err)
	return err
}

func (m *instrumented) RebootHard(ctx context.Context, id string) error {
	start := time.Now()
	err := m.next.RebootHard(ctx, id)
	metrics.ObserveProviderCall(m.provider, "RebootHard", start, err)
	return err
}

func (m *instrumented) RebootDefault(ctx context.Context, id string) error {
	start := time.Now()
	err := m.next.RebootDefault(ctx, id)
	metrics.ObserveProviderCall(m.provider, "RebootDefault", start, err)
	return err
}

func (m *instrumented) Upgrade(ctx context.Context, id string, f flavor.Flavor) error {
	start := time.Now()
	err := m.next.Upgrade(ctx, id, f)
	metrics.ObserveProviderCall(m.provider, "Upgrade", start, err)
	return err
}

func (m *instrumented) ConfirmResize(ctx context.Context, id string) error {
	start := time.Now()
	err := m.next.ConfirmResize(ctx, id)
	metrics.ObserveProviderCall(m.provider, "ConfirmResize", start, err)
	return err
}

func (m *instrumented) GetBlockDevices(ctx context.Context, id string) ([]guest.BlockDevice, error) {
	start := time.Now()
	out, err := m.next.GetBlockDevices(ctx, id)
	metrics.ObserveProviderCall(m.provider, "GetBlockDevices", start, err)
	return out, err
}

func (m *instrumented) CaptureArchive(ctx context.Context, id, name string, devices []guest.BlockDevice) error {
	start := time.Now()
	err := m.next.CaptureArchive(ctx, id, name, devices)
	metrics.ObserveProviderCall(m.provider, "CaptureArchive", start, err)
	return err
}

func (m *instrumented) ListPrivateVLANs(ctx context.Context, account string) ([]int64, error) {
	start := time.Now()
	out, err := m.next.ListPrivateVLANs(ctx, account)
	metrics.ObserveProviderCall(m.provider, "ListPrivateVLANs", start, err)
	return out, err
}

func (m *instrumented) ListPublicVLANs(ctx context.Context, account string) ([]int64, error) {
	start := time.Now()
	out, err := m.next.ListPublicVLANs(ctx, account)
	metrics.ObserveProviderCall(m.provider, "ListPublicVLANs", start, err)
	return out, err
}

func (m *instrumented) ListSSHKeys(ctx context.Context, account, name string) ([]guest.SSHKey, error) {
	start := time.Now()
	out, err := m.next.ListSSHKeys(ctx, account, name)
	metrics.ObserveProviderCall(m.provider, "ListSSHKeys", start, err)
	return out, err
}
