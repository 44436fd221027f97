package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Overlay lifecycle metrics
var (
	// ActivationsTotal counts settled activations by overlay and result
	// (success, failure, cancelled, superseded).
	ActivationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marine_overlay_activations_total",
			Help: "Overlay activations by overlay and result",
		},
		[]string{"overlay", "result"},
	)

	// PropertyWriteFailures counts paint/layout writes the surface rejected.
	PropertyWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marine_property_write_failures_total",
			Help: "Paint and layout property writes rejected by the surface",
		},
		[]string{"overlay"},
	)

	// TranslationErrors counts configuration properties that failed to translate.
	TranslationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marine_translation_errors_total",
			Help: "Configuration properties skipped because they could not be translated",
		},
		[]string{"overlay"},
	)

	// StyleReloads counts theme-driven style swaps.
	StyleReloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marine_style_reloads_total",
			Help: "Base style reloads triggered by theme changes",
		},
	)

	// ActiveOverlays tracks the size of the active overlay set.
	ActiveOverlays = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marine_active_overlays",
			Help: "Number of overlays currently materialised on the surface",
		},
	)

	// AnimationTasks tracks running animation tasks.
	AnimationTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marine_animation_tasks",
			Help: "Number of running overlay animation tasks",
		},
	)
)

// Remote service metrics
var (
	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marine_circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)
)
