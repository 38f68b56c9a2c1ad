package chat

import "zapdesk/internal/domain"

// Event is one unit of change applied to a chat snapshot by the reducer.
// Each event kind is a small struct; Kind is used for logging and for the
// broadcast envelope.
type Event interface {
	Kind() string
}

// AppendMessage appends an agent-authored (or locally-originated) message:
// the chat reopens and its unread counter resets.
type AppendMessage struct {
	Message domain.Message
}

// InboundReply appends a customer message and bumps the unread counter.
type InboundReply struct {
	Message domain.Message
}

// Assign claims the chat for an agent.
type Assign struct {
	AgentID   string
	AgentName string
}

// Transfer moves the chat to another department and clears any claim, so
// the chat awaits claim again in the new department.
type Transfer struct {
	DepartmentID string
}

// Close ends the chat, optionally asking the customer for a rating.
type Close struct {
	WithSurvey bool
}

// AddTag and RemoveTag are idempotent set operations.
type AddTag struct{ Tag string }

// RemoveTag removes a tag; removing an absent tag is a no-op.
type RemoveTag struct{ Tag string }

// StartWorkflow attaches a workflow checklist to the chat.
type StartWorkflow struct {
	WorkflowID string
}

// ToggleWorkflowStep flips a step's completion. Completing a transfer
// step also applies the department transfer in the same transition.
type ToggleWorkflowStep struct {
	StepID string
}

// CancelWorkflow detaches the active workflow.
type CancelWorkflow struct{}

// MarkMessageFailed records a dispatch failure on the optimistic message.
type MarkMessageFailed struct {
	MessageID string
}

// UpdateMessageStatus applies a provider receipt. The message may be
// addressed by local or provider id; only forward transitions apply,
// downgrades are ignored.
type UpdateMessageStatus struct {
	MessageID string
	Status    domain.MessageStatus
}

// PatchMessage enriches an existing message with later-arriving provider
// data. It is a patch to the same message id, never a new message, so the
// history stays append-only and duplicate-free.
type PatchMessage struct {
	MessageID         string
	ProviderMessageID string
	MediaURL          string
}

// NoteDepartmentPromptSent records that the one-time department-selection
// prompt went out to the customer.
type NoteDepartmentPromptSent struct{}

// SelectDepartment applies the customer's reply to the department prompt.
type SelectDepartment struct {
	DepartmentID string
}

// RateChat records the customer's closure-survey rating.
type RateChat struct {
	Rating int
}

// MarkRead resets the unread counter when the chat becomes the actively
// viewed one.
type MarkRead struct{}

func (AppendMessage) Kind() string            { return "append_message" }
func (InboundReply) Kind() string             { return "inbound_reply" }
func (Assign) Kind() string                   { return "assign" }
func (Transfer) Kind() string                 { return "transfer" }
func (Close) Kind() string                    { return "close" }
func (AddTag) Kind() string                   { return "add_tag" }
func (RemoveTag) Kind() string                { return "remove_tag" }
func (StartWorkflow) Kind() string            { return "start_workflow" }
func (ToggleWorkflowStep) Kind() string       { return "toggle_workflow_step" }
func (CancelWorkflow) Kind() string           { return "cancel_workflow" }
func (MarkMessageFailed) Kind() string        { return "mark_message_failed" }
func (UpdateMessageStatus) Kind() string      { return "update_message_status" }
func (PatchMessage) Kind() string             { return "patch_message" }
func (NoteDepartmentPromptSent) Kind() string { return "note_department_prompt_sent" }
func (SelectDepartment) Kind() string         { return "select_department" }
func (RateChat) Kind() string                 { return "rate_chat" }
func (MarkRead) Kind() string                 { return "mark_read" }
