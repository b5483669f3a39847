// Package metrics holds the gateway's prometheus collectors.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace         = "novagate"
	metricsAPISubsystem      = "api"
	metricsProviderSubsystem = "provider"
	metricsServerSubsystem   = "server"
)

var (
	RequestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsAPISubsystem,
		Name:      "requests_total",
		Help:      "Total number of API requests by route and status code",
	}, []string{"route", "method", "code"})

	ProviderCallCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsProviderSubsystem,
		Name:      "calls_total",
		Help:      "Total number of provider facade calls",
	}, []string{"provider", "operation"})

	ProviderCallFailedCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsProviderSubsystem,
		Name:      "calls_failed_total",
		Help:      "Total number of failed provider facade calls",
	}, []string{"provider", "operation"})

	ProviderCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsProviderSubsystem,
		Name:      "call_duration_seconds",
		Help:      "Latency of provider facade calls",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "operation"})

	ProviderUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsProviderSubsystem,
		Name:      "up",
		Help:      "Whether the last provider probe succeeded",
	}, []string{"provider"})

	ServerActionCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsServerSubsystem,
		Name:      "actions_total",
		Help:      "Total number of server actions by action key and result",
	}, []string{"action", "result"})

	ServerCreateCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsServerSubsystem,
		Name:      "creates_total",
		Help:      "Total number of server create requests by result",
	}, []string{"result"})
)

// RegisterMetrics registers all collectors with the default registry. It
// can be called more than once.
func RegisterMetrics() error {
	collectors := []prometheus.Collector{
		RequestCount,
		ProviderCallCount,
		ProviderCallFailedCount,
		ProviderCallDuration,
		ProviderUp,
		ServerActionCount,
		ServerCreateCount,
	}

	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveProviderCall records one facade call.
func ObserveProviderCall(provider, operation string, started time.Time, err error) {
	ProviderCallCount.WithLabelValues(provider, operation).Inc()
	ProviderCallDuration.WithLabelValues(provider, operation).Observe(time.Since(started).Seconds())
	if err != nil {
		ProviderCallFailedCount.WithLabelValues(provider, operation).Inc()
	}
}

// Result labels a counter with the outcome of an operation.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
