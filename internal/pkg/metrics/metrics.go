// Package metrics holds the Prometheus collectors shared across layers.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "identity"

// Outcome labels.
const (
	Success = "success"
	Failure = "failure"
	Error   = "error"
)

// AuthOutcomes counts identity operations by operation name and result.
// A nil *AuthOutcomes is valid and records nothing.
type AuthOutcomes struct {
	vec *prometheus.CounterVec
}

// NewAuthOutcomes registers the counter with reg (prometheus.DefaultRegisterer
// when nil). Registering twice returns the existing collector.
func NewAuthOutcomes(reg prometheus.Registerer) (*AuthOutcomes, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "operations_total",
		Help:      "Identity operations partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})

	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("register auth outcomes: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing auth collector has unexpected type %T", already.ExistingCollector)
		}
		vec = existing
	}
	return &AuthOutcomes{vec: vec}, nil
}

// Record increments the counter for op and outcome.
func (a *AuthOutcomes) Record(op, outcome string) {
	if a == nil {
		return
	}
	a.vec.WithLabelValues(op, outcome).Inc()
}

// Counter exposes the series for op and outcome. Tests only.
func (a *AuthOutcomes) Counter(op, outcome string) prometheus.Counter {
	return a.vec.WithLabelValues(op, outcome)
}
