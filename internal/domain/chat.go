// Package domain defines the chat aggregate and its supporting value types.
// A Chat owns its Messages and its ActiveWorkflow; department, workflow,
// and agent definitions are external reference data addressed by id.
package domain

import (
	"sort"
	"time"
)

// ChatStatus is the handling lifecycle state of a chat.
type ChatStatus string

const (
	ChatOpen    ChatStatus = "open"
	ChatPending ChatStatus = "pending"
	ChatClosed  ChatStatus = "closed"
)

// ActiveWorkflow tracks an externally-defined checklist attached to a
// chat. Step completion is a set of step ids; ordering comes from the
// workflow definition, not from here.
type ActiveWorkflow struct {
	WorkflowID       string   `json:"workflow_id"`
	CompletedStepIDs []string `json:"completed_step_ids"`
}

// StepDone reports whether the given step id is marked complete.
func (w *ActiveWorkflow) StepDone(stepID string) bool {
	if w == nil {
		return false
	}
	for _, id := range w.CompletedStepIDs {
		if id == stepID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the active workflow.
func (w *ActiveWorkflow) Clone() *ActiveWorkflow {
	if w == nil {
		return nil
	}
	out := &ActiveWorkflow{WorkflowID: w.WorkflowID}
	out.CompletedStepIDs = append([]string(nil), w.CompletedStepIDs...)
	return out
}

// Chat is the aggregate root for one customer conversation. Snapshots are
// immutable by convention: all mutation goes through the reducer, which
// clones before changing anything.
type Chat struct {
	// ID is the provider chat identifier. For synced conversations it is a
	// JID-like address (digits@domain); locally created chats carry a
	// "chat_" placeholder id instead.
	ID string `json:"id"`

	ContactName   string `json:"contact_name"`
	ContactNumber string `json:"contact_number"`
	ClientCode    string `json:"client_code,omitempty"`

	// DepartmentID empty means the chat awaits triage.
	DepartmentID string `json:"department_id,omitempty"`
	// AssignedTo empty means no agent has claimed the chat.
	AssignedTo string `json:"assigned_to,omitempty"`

	Status      ChatStatus `json:"status"`
	UnreadCount int        `json:"unread_count"`

	// LastMessage and LastMessageTime are a denormalized cache of the
	// newest message, used only for list sorting and previews.
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`

	Messages []Message `json:"messages"`
	Tags     []string  `json:"tags,omitempty"`

	ActiveWorkflow *ActiveWorkflow `json:"active_workflow,omitempty"`

	DepartmentSelectionSent     bool `json:"department_selection_sent"`
	AwaitingDepartmentSelection bool `json:"awaiting_department_selection"`

	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Rating         int        `json:"rating,omitempty"`
	AwaitingRating bool       `json:"awaiting_rating"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the chat snapshot.
func (c *Chat) Clone() *Chat {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.Clone()
	}
	out.Tags = append([]string(nil), c.Tags...)
	out.ActiveWorkflow = c.ActiveWorkflow.Clone()
	if c.EndedAt != nil {
		t := *c.EndedAt
		out.EndedAt = &t
	}
	return &out
}

// MessageIndex returns the position of the message with the given local
// or provider id, or -1 when absent.
func (c *Chat) MessageIndex(id string) int {
	if id == "" {
		return -1
	}
	for i := range c.Messages {
		if c.Messages[i].ID == id || (c.Messages[i].ProviderMessageID != "" && c.Messages[i].ProviderMessageID == id) {
			return i
		}
	}
	return -1
}

// HasTag reports whether the tag is present.
func (c *Chat) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Normalize repairs snapshots arriving from outside the reducer so that
// impossible states never enter the collection: a closed chat cannot keep
// an assignee or a workflow, and counters cannot go negative. Tags are
// kept sorted so set operations stay deterministic.
func (c *Chat) Normalize() {
	if c.Status == ChatClosed {
		c.AssignedTo = ""
		c.ActiveWorkflow = nil
	}
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
	if c.Status == "" {
		c.Status = ChatOpen
	}
	sort.Strings(c.Tags)
}
