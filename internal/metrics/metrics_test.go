package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
)

var _ hiring.Metrics = Recorder{}

func TestRecorder(t *testing.T) {
	Reset()
	var r Recorder

	r.Assigned(hiring.TierDual)
	r.Assigned(hiring.TierDual)
	r.Assigned(hiring.TierSplit)
	r.AssignmentFailed(hiring.RoleApplicationManager)
	r.Transition("finalize")

	assert.Equal(t, 2.0, testutil.ToFloat64(assignments.WithLabelValues(hiring.TierDual)))
	assert.Equal(t, 1.0, testutil.ToFloat64(assignments.WithLabelValues(hiring.TierSplit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(assignmentFailures.WithLabelValues("APPLICATION_MANAGER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(transitions.WithLabelValues("finalize")))

	before := testutil.ToFloat64(promptTimeouts)
	r.PromptTimedOut()
	assert.Equal(t, before+1, testutil.ToFloat64(promptTimeouts))
}

func TestRegisterOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	// second call must not panic on duplicate registration
	Register(reg)

	RecordTransition("close")
	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
