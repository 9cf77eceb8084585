// Package funnel counts how far users get through the intake flow.
package funnel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bekksaar/intakebot/internal/intake"
)

// Flow outcomes.
const (
	OutcomeStarted   = "started"
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
)

// Delivery statuses.
const (
	DeliveryOK      = "ok"
	DeliveryFail    = "fail"
	DeliveryDropped = "dropped"
)

// Funnel records flow milestones in Prometheus and keeps in-process totals
// for the admin chart. It implements intake.Observer.
type Funnel struct {
	stateEntered *prometheus.CounterVec
	flows        *prometheus.CounterVec
	deliveries   *prometheus.CounterVec

	mu         sync.RWMutex
	states     map[intake.State]int
	outcomes   map[string]int
	deliveryBy map[string]int
}

var _ intake.Observer = (*Funnel)(nil)

// New registers the funnel collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Funnel {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Funnel{
		stateEntered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_state_entered_total",
				Help: "Number of times a conversation entered each intake state",
			},
			[]string{"state"},
		),
		flows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_flows_total",
				Help: "Intake flows by outcome",
			},
			[]string{"outcome"},
		),
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_deliveries_total",
				Help: "Collector submissions by status",
			},
			[]string{"status"},
		),
		states:     make(map[intake.State]int),
		outcomes:   make(map[string]int),
		deliveryBy: make(map[string]int),
	}
}

// FlowStarted implements intake.Observer.
func (f *Funnel) FlowStarted() { f.flow(OutcomeStarted) }

// FlowCompleted implements intake.Observer.
func (f *Funnel) FlowCompleted() { f.flow(OutcomeCompleted) }

// FlowCancelled implements intake.Observer.
func (f *Funnel) FlowCancelled() { f.flow(OutcomeCancelled) }

// StateEntered implements intake.Observer.
func (f *Funnel) StateEntered(st intake.State) {
	f.stateEntered.WithLabelValues(string(st)).Inc()
	f.mu.Lock()
	f.states[st]++
	f.mu.Unlock()
}

// DeliveryResult counts one collector submission outcome.
func (f *Funnel) DeliveryResult(status string) {
	f.deliveries.WithLabelValues(status).Inc()
	f.mu.Lock()
	f.deliveryBy[status]++
	f.mu.Unlock()
}

func (f *Funnel) flow(outcome string) {
	f.flows.WithLabelValues(outcome).Inc()
	f.mu.Lock()
	f.outcomes[outcome]++
	f.mu.Unlock()
}

// Snapshot is a copy of the in-process counters.
type Snapshot struct {
	States     map[intake.State]int
	Outcomes   map[string]int
	Deliveries map[string]int
}

// Snapshot returns the current counters.
func (f *Funnel) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := Snapshot{
		States:     make(map[intake.State]int, len(f.states)),
		Outcomes:   make(map[string]int, len(f.outcomes)),
		Deliveries: make(map[string]int, len(f.deliveryBy)),
	}
	for k, v := range f.states {
		s.States[k] = v
	}
	for k, v := range f.outcomes {
		s.Outcomes[k] = v
	}
	for k, v := range f.deliveryBy {
		s.Deliveries[k] = v
	}
	return s
}

// Chart renders the funnel as plain text, one bar per state in flow order.
// Percentages are relative to the first state and to the previous one.
func (f *Funnel) Chart() string {
	snap := f.Snapshot()
	if len(snap.States) == 0 {
		return "No funnel data yet."
	}
	base := snap.States[intake.States[0]]
	if base == 0 {
		for _, st := range intake.States {
			if snap.States[st] > base {
				base = snap.States[st]
			}
		}
	}

	var b strings.Builder
	b.WriteString("Funnel by step:\n")
	prev := 0
	for i, st := range intake.States {
		c := snap.States[st]
		relPrev := 100
		if i > 0 {
			relPrev = percent(c, prev)
		}
		fmt.Fprintf(&b, "%-22s %4d %3d%% %3d%% %s\n", st, c, percent(c, base), relPrev, bar(c, base))
		prev = c
	}
	fmt.Fprintf(&b, "\nflows: started=%d completed=%d cancelled=%d\n",
		snap.Outcomes[OutcomeStarted], snap.Outcomes[OutcomeCompleted], snap.Outcomes[OutcomeCancelled])
	fmt.Fprintf(&b, "deliveries: ok=%d fail=%d dropped=%d",
		snap.Deliveries[DeliveryOK], snap.Deliveries[DeliveryFail], snap.Deliveries[DeliveryDropped])
	return b.String()
}

func percent(a, b int) int {
	if b <= 0 {
		return 0
	}
	return 100 * a / b
}

const barWidth = 20

func bar(val, total int) string {
	if total <= 0 {
		return ""
	}
	filled := barWidth * val / total
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]"
}
