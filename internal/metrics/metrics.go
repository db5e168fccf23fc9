// Package metrics exposes hiring lifecycle counters to prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
)

const (
	Namespace = "hiring"

	MatchingSubsystem  = "matching"
	LifecycleSubsystem = "lifecycle"
)

var (
	assignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: MatchingSubsystem,
			Name:      "assignments_total",
			Help:      "Counter of interviews assigned, broken out by tier (dual or split).",
		},
		[]string{"tier"},
	)

	assignmentFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: MatchingSubsystem,
			Name:      "no_capacity_total",
			Help:      "Counter of assignments that failed because nobody had capacity for the role.",
		},
		[]string{"role"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: LifecycleSubsystem,
			Name:      "transitions_total",
			Help:      "Counter of interview phase transitions.",
		},
		[]string{"transition"},
	)

	promptTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: LifecycleSubsystem,
			Name:      "prompt_timeouts_total",
			Help:      "Counter of prompts nobody answered before the deadline.",
		},
	)
)

var registerMetrics sync.Once

// Register all metrics.
func Register(reg prometheus.Registerer, customCollectors ...prometheus.Collector) {
	registerMetrics.Do(func() {
		reg.MustRegister(assignments)
		reg.MustRegister(assignmentFailures)
		reg.MustRegister(transitions)
		reg.MustRegister(promptTimeouts)
		for _, collector := range customCollectors {
			reg.MustRegister(collector)
		}
	})
}

// Reset is for tests
func Reset() {
	assignments.Reset()
	assignmentFailures.Reset()
	transitions.Reset()
}

// RecordAssignment records a successful assignment.
func RecordAssignment(tier string) {
	assignments.WithLabelValues(tier).Inc()
}

// RecordNoCapacity records a role nobody could take.
func RecordNoCapacity(role hiring.Role) {
	assignmentFailures.WithLabelValues(role.String()).Inc()
}

func RecordTransition(name string) {
	transitions.WithLabelValues(name).Inc()
}

func RecordPromptTimeout() {
	promptTimeouts.Inc()
}

// Recorder forwards service events to the package counters
type Recorder struct{}

func (Recorder) Assigned(tier string)           { RecordAssignment(tier) }
func (Recorder) AssignmentFailed(r hiring.Role) { RecordNoCapacity(r) }
func (Recorder) Transition(name string)         { RecordTransition(name) }
func (Recorder) PromptTimedOut()                { RecordPromptTimeout() }
