package breaker

import (
	"github.com/architeacher/adaptivebreaker/pkg/metrics"
)

const tracerName = "github.com/architeacher/adaptivebreaker/pkg/breaker"

const (
	MetricCalls        = "breaker_calls"
	MetricCallDuration = "breaker_call_duration"
	MetricRejections   = "breaker_rejections"
	MetricTransitions  = "breaker_transitions"
	MetricHealthScore  = "breaker_health_score"

	AttrCircuit = "circuit"
	AttrOutcome = "outcome"
	AttrReason  = "reason"
	AttrFrom    = "from"
	AttrTo      = "to"

	OutcomeSuccess = "success"
)

// MetricDescriptors describes the instruments the Manager reports, for use
// with metrics.NewOTelClient.
func MetricDescriptors() map[string]metrics.Descriptor {
	return map[string]metrics.Descriptor{
		MetricCalls: {
			Description: "Completed calls per circuit and outcome",
			Unit:        "{call}",
		},
		MetricCallDuration: {
			Description: "Duration of completed calls",
			Unit:        "s",
		},
		MetricRejections: {
			Description: "Calls rejected by a circuit",
			Unit:        "{call}",
		},
		MetricTransitions: {
			Description: "Circuit phase transitions",
			Unit:        "{transition}",
		},
		MetricHealthScore: {
			Description: "Composite circuit health score",
			Unit:        "1",
		},
	}
}
