// Package chat implements the routing and state-reconciliation core of
// the inbox: phone identity resolution, queue classification, the chat
// state reducer, the send orchestrator, and per-chat serialization.
package chat

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"zapdesk/internal/domain"
)

// Reducer is the single authority for producing a new chat snapshot from
// an event. It never mutates its input: every successful application
// returns a fresh deep copy, and every failure leaves the input
// observably untouched.
type Reducer struct {
	departments domain.DepartmentDirectory
	workflows   domain.WorkflowDirectory
	now         func() time.Time
}

// NewReducer creates a reducer bound to the reference-data directories
// used to validate transfers and workflow operations.
func NewReducer(departments domain.DepartmentDirectory, workflows domain.WorkflowDirectory) *Reducer {
	return &Reducer{
		departments: departments,
		workflows:   workflows,
		now:         time.Now,
	}
}

// Apply produces the next snapshot for the chat under the given event.
// Invalid events return an error and the snapshot is not changed; partial
// application is never observable because all changes happen on a clone
// that is only returned on success.
func (r *Reducer) Apply(chat *domain.Chat, ev Event) (*domain.Chat, error) {
	if chat == nil {
		return nil, fmt.Errorf("%w: nil chat", ErrInvalidEvent)
	}

	next := chat.Clone()
	next.UpdatedAt = r.now()

	var err error
	switch e := ev.(type) {
	case AppendMessage:
		r.appendMessage(next, e.Message)
		next.Status = domain.ChatOpen
		next.UnreadCount = 0
	case InboundReply:
		r.appendMessage(next, e.Message)
		next.UnreadCount++
	case Assign:
		err = r.assign(next, e)
	case Transfer:
		err = r.transfer(next, e.DepartmentID)
	case Close:
		err = r.close(next, e.WithSurvey)
	case AddTag:
		if e.Tag != "" && !next.HasTag(e.Tag) {
			next.Tags = append(next.Tags, e.Tag)
			sort.Strings(next.Tags)
		}
	case RemoveTag:
		next.Tags = removeString(next.Tags, e.Tag)
	case StartWorkflow:
		err = r.startWorkflow(next, e.WorkflowID)
	case ToggleWorkflowStep:
		err = r.toggleWorkflowStep(next, e.StepID)
	case CancelWorkflow:
		next.ActiveWorkflow = nil
	case MarkMessageFailed:
		err = r.markMessageFailed(next, e.MessageID)
	case UpdateMessageStatus:
		err = r.updateMessageStatus(next, e)
	case PatchMessage:
		err = r.patchMessage(next, e)
	case NoteDepartmentPromptSent:
		next.DepartmentSelectionSent = true
		next.AwaitingDepartmentSelection = true
		r.appendSystemMessage(next, "Department selection prompt sent to the customer")
	case SelectDepartment:
		err = r.selectDepartment(next, e.DepartmentID)
	case RateChat:
		err = r.rateChat(next, e.Rating)
	case MarkRead:
		next.UnreadCount = 0
	default:
		err = fmt.Errorf("%w: unsupported event %T", ErrInvalidEvent, ev)
	}

	if err != nil {
		return nil, err
	}
	return next, nil
}

// appendMessage appends to the history and refreshes the denormalized
// preview fields. Messages are append-only: nothing here ever reorders or
// rewrites previously appended entries.
func (r *Reducer) appendMessage(chat *domain.Chat, msg domain.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = r.now()
	}
	if msg.Status == "" {
		msg.Status = domain.StatusSent
	}
	if msg.Type == "" {
		msg.Type = domain.TypeText
	}
	chat.Messages = append(chat.Messages, msg)
	chat.LastMessage = msg.Content
	chat.LastMessageTime = msg.Timestamp
}

func (r *Reducer) appendSystemMessage(chat *domain.Chat, content string) {
	r.appendMessage(chat, domain.Message{
		Content: content,
		Sender:  domain.SenderSystem,
		Type:    domain.TypeText,
	})
}

func (r *Reducer) assign(chat *domain.Chat, e Assign) error {
	if chat.Status == domain.ChatClosed {
		return ErrChatClosed
	}
	if e.AgentID == "" {
		return fmt.Errorf("%w: assign without agent id", ErrInvalidEvent)
	}
	chat.AssignedTo = e.AgentID
	name := e.AgentName
	if name == "" {
		name = e.AgentID
	}
	r.appendSystemMessage(chat, fmt.Sprintf("Conversation claimed by %s", name))
	return nil
}

func (r *Reducer) transfer(chat *domain.Chat, departmentID string) error {
	if chat.Status == domain.ChatClosed {
		return ErrChatClosed
	}
	dept, ok := r.departments.DepartmentByID(departmentID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDepartment, departmentID)
	}
	chat.DepartmentID = dept.ID
	chat.AssignedTo = ""
	chat.AwaitingDepartmentSelection = false
	r.appendSystemMessage(chat, fmt.Sprintf("Conversation transferred to %s", dept.Name))
	return nil
}

func (r *Reducer) close(chat *domain.Chat, withSurvey bool) error {
	if chat.Status == domain.ChatClosed {
		return ErrChatClosed
	}
	now := r.now()
	chat.Status = domain.ChatClosed
	chat.EndedAt = &now
	chat.AssignedTo = ""
	chat.ActiveWorkflow = nil
	chat.AwaitingRating = withSurvey
	if withSurvey {
		r.appendSystemMessage(chat, "Conversation closed, rating survey sent")
	} else {
		r.appendSystemMessage(chat, "Conversation closed")
	}
	return nil
}

func (r *Reducer) startWorkflow(chat *domain.Chat, workflowID string) error {
	if chat.Status == domain.ChatClosed {
		return ErrChatClosed
	}
	wf, ok := r.workflows.WorkflowByID(workflowID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWorkflow, workflowID)
	}
	chat.ActiveWorkflow = &domain.ActiveWorkflow{WorkflowID: wf.ID}
	r.appendSystemMessage(chat, fmt.Sprintf("Workflow started: %s", wf.Name))
	return nil
}

// toggleWorkflowStep flips step completion. When a transfer step is being
// completed the resulting transfer effect is applied inside this same
// transition, so callers never see the step done without the handoff.
func (r *Reducer) toggleWorkflowStep(chat *domain.Chat, stepID string) error {
	if chat.ActiveWorkflow == nil {
		return ErrNoActiveWorkflow
	}
	wf, ok := r.workflows.WorkflowByID(chat.ActiveWorkflow.WorkflowID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWorkflow, chat.ActiveWorkflow.WorkflowID)
	}
	step, ok := wf.Step(stepID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWorkflowStep, stepID)
	}

	next, effect := ToggleStep(chat.ActiveWorkflow, step)
	if effect != nil {
		if err := r.transfer(chat, effect.DepartmentID); err != nil {
			return err
		}
	}
	chat.ActiveWorkflow = next
	return nil
}

func (r *Reducer) markMessageFailed(chat *domain.Chat, messageID string) error {
	i := chat.MessageIndex(messageID)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrMessageNotFound, messageID)
	}
	chat.Messages[i].Status = domain.StatusError
	return nil
}

func (r *Reducer) updateMessageStatus(chat *domain.Chat, e UpdateMessageStatus) error {
	i := chat.MessageIndex(e.MessageID)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrMessageNotFound, e.MessageID)
	}
	// Receipts only move the lifecycle forward; a late DELIVERED after a
	// READ, or anything after ERROR, is dropped.
	if chat.Messages[i].Status.Advances(e.Status) {
		chat.Messages[i].Status = e.Status
	}
	return nil
}

func (r *Reducer) patchMessage(chat *domain.Chat, e PatchMessage) error {
	i := chat.MessageIndex(e.MessageID)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrMessageNotFound, e.MessageID)
	}
	if e.ProviderMessageID != "" {
		chat.Messages[i].ProviderMessageID = e.ProviderMessageID
	}
	if e.MediaURL != "" {
		chat.Messages[i].MediaURL = e.MediaURL
	}
	return nil
}

func (r *Reducer) selectDepartment(chat *domain.Chat, departmentID string) error {
	if !chat.AwaitingDepartmentSelection {
		return fmt.Errorf("%w: chat is not awaiting department selection", ErrInvalidEvent)
	}
	return r.transfer(chat, departmentID)
}

func (r *Reducer) rateChat(chat *domain.Chat, rating int) error {
	if !chat.AwaitingRating {
		return fmt.Errorf("%w: chat is not awaiting a rating", ErrInvalidEvent)
	}
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating %d out of range", ErrInvalidEvent, rating)
	}
	chat.Rating = rating
	chat.AwaitingRating = false
	r.appendSystemMessage(chat, fmt.Sprintf("Customer rated the conversation %d/5", rating))
	return nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
