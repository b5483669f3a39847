// Package workers contains background workers for the gateway.
package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/artpar/novagate/internal/shell/metrics"
)

// ErrNotProbed is reported until the first probe cycle completes.
var ErrNotProbed = errors.New("provider not probed yet")

// Checker answers whether the provider facade is reachable.
type Checker interface {
	Ready(ctx context.Context) error
}

// ProbeConfig configures the provider probe worker.
type ProbeConfig struct {
	// Interval is the time between probe cycles.
	// Default: 30 seconds.
	Interval time.Duration

	// Timeout bounds a single probe.
	// Default: 10 seconds.
	Timeout time.Duration
}

// DefaultProbeConfig returns the default configuration.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// ProviderProbe periodically checks the provider and caches the outcome so
// readiness requests never wait on the vendor API.
type ProviderProbe struct {
	checker  Checker
	provider string
	config   ProbeConfig
	logger   *slog.Logger

	mu        sync.RWMutex
	lastErr   error
	checkedAt time.Time

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProviderProbe creates a new provider probe worker.
func NewProviderProbe(checker Checker, provider string, config ProbeConfig, logger *slog.Logger) *ProviderProbe {
	if config.Interval == 0 {
		config.Interval = 30 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ProviderProbe{
		checker:  checker,
		provider: provider,
		config:   config,
		lastErr:  ErrNotProbed,
		logger:   logger.With("component", "provider_probe", "provider", provider),
	}
}

// Start begins the probe background goroutine.
func (p *ProviderProbe) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.wg.Add(1)
	go p.run()

	p.logger.Info("provider probe started", "interval", p.config.Interval)
}

// Stop stops the probe and waits for an in-flight check.
func (p *ProviderProbe) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("provider probe stopped")
}

func (p *ProviderProbe) run() {
	defer p.wg.Done()

	p.CheckNow(p.ctx)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.CheckNow(p.ctx)
		}
	}
}

// CheckNow runs one probe and records the result.
func (p *ProviderProbe) CheckNow(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	err := p.checker.Ready(checkCtx)
	if ctx.Err() != nil {
		// Shutdown interrupted the check; keep the previous result.
		return
	}

	p.mu.Lock()
	prev := p.lastErr
	p.lastErr = err
	p.checkedAt = time.Now()
	p.mu.Unlock()

	switch {
	case err != nil && prev == nil:
		p.logger.Warn("provider became unreachable", "error", err)
	case err == nil && prev != nil:
		p.logger.Info("provider reachable")
	}

	up := 0.0
	if err == nil {
		up = 1
	}
	metrics.ProviderUp.WithLabelValues(p.provider).Set(up)
}

// Ready reports the cached result of the last probe.
func (p *ProviderProbe) Ready(context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// CheckedAt returns when the last probe finished; zero before the first.
func (p *ProviderProbe) CheckedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.checkedAt
}
