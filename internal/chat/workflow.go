package chat

import "zapdesk/internal/domain"

// Workflow step completion is layered on top of the claim lifecycle as
// independent boolean flags. The one coupling between the two machines is
// the transfer step: completing it must hand the chat to another
// department. That coupling is expressed here as an explicit effect value
// so the reducer can apply both changes in a single atomic transition
// instead of one handler implicitly invoking another.

// TransferEffect is the side effect a step toggle can demand.
type TransferEffect struct {
	DepartmentID string
}

// ToggleStep flips completion of the given step on a copy of the active
// workflow. When the step is a transfer step and is being completed (not
// un-completed), the returned effect carries the required department
// transfer; in every other case the effect is nil.
func ToggleStep(active *domain.ActiveWorkflow, step domain.WorkflowStep) (*domain.ActiveWorkflow, *TransferEffect) {
	next := active.Clone()
	if next == nil {
		return nil, nil
	}

	if next.StepDone(step.ID) {
		next.CompletedStepIDs = removeString(next.CompletedStepIDs, step.ID)
		return next, nil
	}

	next.CompletedStepIDs = append(next.CompletedStepIDs, step.ID)
	if step.TransferTo != "" {
		return next, &TransferEffect{DepartmentID: step.TransferTo}
	}
	return next, nil
}
