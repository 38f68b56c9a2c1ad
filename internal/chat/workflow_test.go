package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapdesk/internal/domain"
)

func TestToggleStep(t *testing.T) {
	t.Parallel()

	plain := domain.WorkflowStep{ID: "step-1", Title: "Collect details"}
	transfer := domain.WorkflowStep{ID: "step-2", Title: "Escalate", TransferTo: "billing"}

	t.Run("completing a plain step has no effect", func(t *testing.T) {
		t.Parallel()
		active := &domain.ActiveWorkflow{WorkflowID: "onboarding"}
		next, effect := ToggleStep(active, plain)
		require.NotNil(t, next)
		assert.True(t, next.StepDone("step-1"))
		assert.Nil(t, effect)
		assert.False(t, active.StepDone("step-1"), "input not mutated")
	})

	t.Run("completing a transfer step demands the handoff", func(t *testing.T) {
		t.Parallel()
		active := &domain.ActiveWorkflow{WorkflowID: "onboarding"}
		next, effect := ToggleStep(active, transfer)
		assert.True(t, next.StepDone("step-2"))
		require.NotNil(t, effect)
		assert.Equal(t, "billing", effect.DepartmentID)
	})

	t.Run("un-completing a transfer step has no effect", func(t *testing.T) {
		t.Parallel()
		active := &domain.ActiveWorkflow{WorkflowID: "onboarding", CompletedStepIDs: []string{"step-2"}}
		next, effect := ToggleStep(active, transfer)
		assert.False(t, next.StepDone("step-2"))
		assert.Nil(t, effect)
	})

	t.Run("nil active workflow", func(t *testing.T) {
		t.Parallel()
		next, effect := ToggleStep(nil, plain)
		assert.Nil(t, next)
		assert.Nil(t, effect)
	})
}
