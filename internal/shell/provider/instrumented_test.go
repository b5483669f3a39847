package provider

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/artpar/novagate/internal/shell/metrics"
)

func TestWithMetrics_CountsCalls(t *testing.T) {
	flaky := newFlaky(1, ErrNotFound)
	c := WithMetrics(flaky, "instrumented-test")

	calls := metrics.ProviderCallCount.WithLabelValues("instrumented-test", "PowerOn")
	failed := metrics.ProviderCallFailedCount.WithLabelValues("instrumented-test", "PowerOn")
	beforeCalls, beforeFailed := testutil.ToFloat64(calls), testutil.ToFloat64(failed)

	assert.ErrorIs(t, c.PowerOn(context.Background(), "1"), ErrNotFound)
	assert.NoError(t, c.PowerOn(context.Background(), "1"))

	assert.Equal(t, beforeCalls+2, testutil.ToFloat64(calls))
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
}
