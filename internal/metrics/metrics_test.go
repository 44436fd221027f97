package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		ActivationsTotal,
		PropertyWriteFailures,
		TranslationErrors,
		StyleReloads,
		ActiveOverlays,
		AnimationTasks,
		CircuitBreakerStateChanges,
	}
	for _, c := range collectors {
		desc := make(chan *prometheus.Desc, 1)
		c.Describe(desc)
		close(desc)
		require.NotNil(t, <-desc)
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(ActivationsTotal.WithLabelValues("metrics-test", "success"))
	ActivationsTotal.WithLabelValues("metrics-test", "success").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ActivationsTotal.WithLabelValues("metrics-test", "success")))

	ActiveOverlays.Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(ActiveOverlays))
	ActiveOverlays.Set(0)
}
