package funnel

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bekksaar/intakebot/internal/intake"
)

func TestCountersAndSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := New(reg)

	f.FlowStarted()
	f.FlowStarted()
	f.StateEntered(intake.StateAwaitingLanguage)
	f.StateEntered(intake.StateAwaitingLanguage)
	f.StateEntered(intake.StateAwaitingFirstName)
	f.FlowCancelled()
	f.DeliveryResult(DeliveryOK)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.flows.WithLabelValues(OutcomeStarted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.flows.WithLabelValues(OutcomeCancelled)))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.stateEntered.WithLabelValues(string(intake.StateAwaitingLanguage))))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.deliveries.WithLabelValues(DeliveryOK)))

	snap := f.Snapshot()
	assert.Equal(t, 2, snap.States[intake.StateAwaitingLanguage])
	assert.Equal(t, 1, snap.States[intake.StateAwaitingFirstName])
	assert.Equal(t, 2, snap.Outcomes[OutcomeStarted])
	assert.Equal(t, 1, snap.Deliveries[DeliveryOK])

	// Snapshot is a copy.
	snap.States[intake.StateAwaitingLanguage] = 99
	assert.Equal(t, 2, f.Snapshot().States[intake.StateAwaitingLanguage])
}

func TestMetricNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := New(reg)
	f.FlowStarted()
	f.StateEntered(intake.StateAwaitingLanguage)
	f.DeliveryResult(DeliveryFail)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.ElementsMatch(t, []string{
		"intake_state_entered_total",
		"intake_flows_total",
		"intake_deliveries_total",
	}, names)
}

func TestChart(t *testing.T) {
	f := New(prometheus.NewRegistry())
	assert.Equal(t, "No funnel data yet.", f.Chart())

	for i := 0; i < 4; i++ {
		f.StateEntered(intake.StateAwaitingLanguage)
	}
	f.StateEntered(intake.StateAwaitingFirstName)
	f.StateEntered(intake.StateAwaitingFirstName)

	chart := f.Chart()
	lines := strings.Split(chart, "\n")
	require.Greater(t, len(lines), len(intake.States))
	assert.Contains(t, lines[1], string(intake.StateAwaitingLanguage))
	assert.Contains(t, lines[1], "100%")
	assert.Contains(t, lines[1], "[####################]")
	assert.Contains(t, lines[2], " 50%")
	assert.Contains(t, lines[2], "[##########----------]")
	assert.Contains(t, lines[3], "[--------------------]")
	assert.Contains(t, chart, "deliveries: ok=0 fail=0 dropped=0")
}

func TestBarClamps(t *testing.T) {
	assert.Equal(t, "", bar(1, 0))
	assert.Equal(t, "[####################]", bar(30, 10))
	assert.Equal(t, "[--------------------]", bar(-1, 10))
}
