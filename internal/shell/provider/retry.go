package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/artpar/novagate/internal/core/compute"
	"github.com/artpar/novagate/internal/core/flavor"
	"github.com/artpar/novagate/internal/core/guest"
)

const defaultRetryDelay = 500 * time.Millisecond

// retrying repeats facade calls that fail with a retryable vendor error.
type retrying struct {
	next     Client
	attempts int
	delay    time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

// WithRetry wraps c so transient vendor failures are retried up to attempts
// times. Fewer than two attempts returns c unchanged.
func WithRetry(c Client, attempts int, delay time.Duration, logger *slog.Logger) Client {
	if attempts < 2 {
		return c
	}
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	return &retrying{
		next:     c,
		attempts: attempts,
		delay:    delay,
		clock:    clock.WallClock,
		logger:   logger.With("component", "provider-retry"),
	}
}

func (r *retrying) call(ctx context.Context, op string, fn func() error) error {
	var last error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			last = fn()
			return last
		},
		IsFatalError: func(err error) bool {
			return !IsRetryable(err)
		},
		NotifyFunc: func(err error, attempt int) {
			r.logger.Warn("provider call failed, retrying", "op", op, "attempt", attempt, "error", err)
		},
		Attempts: r.attempts,
		Delay:    r.delay,
		Clock:    r.clock,
		Stop:     ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if last != nil {
		return last
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return retry.LastError(err)
}

func (r *retrying) CreateInstance(ctx context.Context, params compute.ProvisioningParameters) (guest.Guest, error) {
	// Orders are not idempotent; a retried create could place two.
	return r.next.CreateInstance(ctx, params)
}

func (r *retrying) ListInstances(ctx context.Context, filter ListFilter) ([]guest.Guest, error) {
	var out []guest.Guest
	err := r.call(ctx, "ListInstances", func() (err error) {
		out, err = r.next.ListInstances(ctx, filter)
		return err
	})
	return out, err
}

func (r *retrying) GetInstance(ctx context.Context, id string) (guest.Guest, error) {
	var out guest.Guest
	err := r.call(ctx, "GetInstance", func() (err error) {
		out, err = r.next.GetInstance(ctx, id)
		return err
	})
	return out, err
}

func (r *retrying) PowerOn(ctx context.Context, id string) error {
	return r.call(ctx, "PowerOn", func() error { return r.next.PowerOn(ctx, id) })
}

func (r *retrying) PowerOff(ctx context.Context, id string) error {
	return r.call(ctx, "PowerOff", func() error { return r.next.PowerOff(ctx, id) })
}

func (r *retrying) RebootSoft(ctx context.Context, id string) error {
	return r.call(ctx, "RebootSoft", func() error { return r.next.RebootSoft(ctx, id) })
}

func (r *retrying) RebootHard(ctx context.Context, id string) error {
	return r.call(ctx, "RebootHard", func() error { return r.next.RebootHard(ctx, id) })
}

func (r *retrying) RebootDefault(ctx context.Context, id string) error {
	return r.call(ctx, "RebootDefault", func() error { return r.next.RebootDefault(ctx, id) })
}

func (r *retrying) Upgrade(ctx context.Context, id string, f flavor.Flavor) error {
	return r.call(ctx, "Upgrade", func() error { return r.next.Upgrade(ctx, id, f) })
}

func (r *retrying) ConfirmResize(ctx context.Context, id string) error {
	return r.call(ctx, "ConfirmResize", func() error { return r.next.ConfirmResize(ctx, id) })
}

func (r *retrying) GetBlockDevices(ctx context.Context, id string) ([]guest.BlockDevice, error) {
	var out []guest.BlockDevice
	err := r.call(ctx, "GetBlockDevices", func() (err error) {
		out, err = r.next.GetBlockDevices(ctx, id)
		return err
	})
	return out, err
}

func (r *retrying) CaptureArchive(ctx context.Context, id, name string, devices []guest.BlockDevice) error {
	return r.call(ctx, "CaptureArchive", func() error { return r.next.CaptureArchive(ctx, id, name, devices) })
}

func (r *retrying) ListPrivateVLANs(ctx context.Context, account string) ([]int64, error) {
	var out []int64
	err := r.call(ctx, "ListPrivateVLANs", func() (err error) {
		out, err = r.next.ListPrivateVLANs(ctx, account)
		return err
	})
	return out, err
}

func (r *retrying) ListPublicVLANs(ctx context.Context, account string) ([]int64, error) {
	var out []int64
	err := r.call(ctx, "ListPublicVLANs", func() (err error) {
		out, err = r.next.ListPublicVLANs(ctx, account)
		return err
	})
	return out, err
}

func (r *retrying) ListSSHKeys(ctx context.Context, account, name string) ([]guest.SSHKey, error) {
	var out []guest.SSHKey
	err := r.call(ctx, "ListSSHKeys", func() (err error) {
		out, err = r.next.ListSSHKeys(ctx, account, name)
		return err
	})
	return out, err
}
