package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapdesk/internal/domain"
)

func testDirectory() *domain.Directory {
	return domain.NewDirectory(
		[]domain.Department{
			{ID: "support", Name: "Support"},
			{ID: "billing", Name: "Billing"},
		},
		[]domain.Workflow{
			{
				ID:   "onboarding",
				Name: "Onboarding",
				Steps: []domain.WorkflowStep{
					{ID: "step-1", Title: "Collect details"},
					{ID: "step-2", Title: "Escalate to billing", TransferTo: "billing"},
				},
			},
		},
		[]domain.Agent{
			{ID: "agent-1", Name: "Ana", DepartmentID: "support"},
			{ID: "agent-2", Name: "Beto"},
			{ID: "admin-1", Name: "Root", Admin: true},
		},
	)
}

func testReducer() *Reducer {
	dir := testDirectory()
	r := NewReducer(dir, dir)
	r.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func openChat() *domain.Chat {
	return &domain.Chat{
		ID:          "5511999887766@s.whatsapp.net",
		ContactName: "Alice Santos",
		Status:      domain.ChatOpen,
	}
}

func TestReducerAppendMessage(t *testing.T) {
	t.Parallel()

	r := testReducer()
	chat := openChat()
	chat.Status = domain.ChatClosed
	chat.UnreadCount = 3

	next, err := r.Apply(chat, AppendMessage{Message: domain.Message{Content: "hello", Sender: domain.SenderAgent}})
	require.NoError(t, err)

	require.Len(t, next.Messages, 1)
	msg := next.Messages[0]
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, domain.StatusSent, msg.Status)
	assert.Equal(t, domain.TypeText, msg.Type)
	assert.False(t, msg.Timestamp.IsZero())

	assert.Equal(t, domain.ChatOpen, next.Status, "sending reopens the chat")
	assert.Zero(t, next.UnreadCount)
	assert.Equal(t, "hello", next.LastMessage)
	assert.Equal(t, msg.Timestamp, next.LastMessageTime)
}

func TestReducerInboundReply(t *testing.T) {
	t.Parallel()

	r := testReducer()
	next, err := r.Apply(openChat(), InboundReply{Message: domain.Message{Content: "hi", Sender: domain.SenderUser}})
	require.NoError(t, err)
	assert.Equal(t, 1, next.UnreadCount)

	next, err = r.Apply(next, InboundReply{Message: domain.Message{Content: "anyone?", Sender: domain.SenderUser}})
	require.NoError(t, err)
	assert.Equal(t, 2, next.UnreadCount)
	require.Len(t, next.Messages, 2)
	assert.Equal(t, "hi", next.Messages[0].Content, "history is append-only")
}

func TestReducerNeverMutatesInput(t *testing.T) {
	t.Parallel()

	r := testReducer()
	chat := openChat()
	chat.Tags = []string{"vip"}
	chat.Messages = []domain.Message{{ID: "m1", Content: "hi", Sender: domain.SenderUser, Status: domain.StatusSent}}
	before := chat.Clone()

	events := []Event{
		AppendMessage{Message: domain.Message{Content: "x"}},
		Assign{AgentID: "agent-1", AgentName: "Ana"},
		Transfer{DepartmentID: "billing"},
		AddTag{Tag: "billing"},
		RemoveTag{Tag: "vip"},
		StartWorkflow{WorkflowID: "onboarding"},
		UpdateMessageStatus{MessageID: "m1", Status: domain.StatusRead},
		Close{WithSurvey: true},
	}
	for _, ev := range events {
		_, err := r.Apply(chat, ev)
		require.NoError(t, err, ev.Kind())
		assert.Equal(t, before, chat, "input changed by %s", ev.Kind())
	}

	// Failed applications leave the input untouched too.
	_, err := r.Apply(chat, Transfer{DepartmentID: "nope"})
	require.Error(t, err)
	assert.Equal(t, before, chat)
}

func TestReducerAssign(t *testing.T) {
	t.Parallel()

	r := testReducer()
	next, err := r.Apply(openChat(), Assign{AgentID: "agent-1", AgentName: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "agent-1", next.AssignedTo)
	require.Len(t, next.Messages, 1)
	assert.Equal(t, domain.SenderSystem, next.Messages[0].Sender)
	assert.Contains(t, next.Messages[0].Content, "Ana")

	closed := openChat()
	closed.Status = domain.ChatClosed
	_, err = r.Apply(closed, Assign{AgentID: "agent-1"})
	assert.ErrorIs(t, err, ErrChatClosed)
}

func TestReducerTransfer(t *testing.T) {
	t.Parallel()

	r := testReducer()
	chat := openChat()
	chat.AssignedTo = "agent-1"
	chat.AwaitingDepartmentSelection = true

	next, err := r.Apply(chat, Transfer{DepartmentID: "billing"})
	require.NoError(t, err)
	assert.Equal(t, "billing", next.DepartmentID)
	assert.Empty(t, next.AssignedTo, "transfer releases the claim")
	assert.False(t, next.AwaitingDepartmentSelection)

	_, err = r.Apply(chat, Transfer{DepartmentID: "unknown"})
	assert.ErrorIs(t, err, ErrUnknownDepartment)
}

func TestReducerClose(t *testing.T) {
	t.Parallel()

	r := testReducer()
	chat := openChat()
	chat.AssignedTo = "agent-1"
	chat.ActiveWorkflow = &domain.ActiveWorkflow{WorkflowID: "onboarding"}

	next, err := r.Apply(chat, Close{WithSurvey: true})
	require.NoError(t, err)
	assert.Equal(t, domain.ChatClosed, next.Status)
	require.NotNil(t, next.EndedAt)
	assert.Empty(t, next.AssignedTo)
	assert.Nil(t, next.ActiveWorkflow)
	assert.True(t, next.AwaitingRating)

	_, err = r.Apply(next, Close{})
	assert.ErrorIs(t, err, ErrChatClosed)
}

func TestReducerTags(t *testing.T) {
	t.Parallel()

	r := testReducer()
	next, err := r.Apply(openChat(), AddTag{Tag: "vip"})
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, next.Tags)

	// Adding the same tag again is a no-op.
	next, err = r.Apply(next, AddTag{Tag: "vip"})
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, next.Tags)

	next, err = r.Apply(next, AddTag{Tag: "billing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "vip"}, next.Tags)

	next, err = r.Apply(next, RemoveTag{Tag: "vip"})
	require.NoError(t, err)
	assert.Equal(t, []string{"billing"}, next.Tags)

	next, err = r.Apply(next, RemoveTag{Tag: "absent"})
	require.NoError(t, err)
	assert.Equal(t, []string{"billing"}, next.Tags)
}

func TestReducerWorkflowLifecycle(t *testing.T) {
	t.Parallel()

	r := testReducer()
	next, err := r.Apply(openChat(), StartWorkflow{WorkflowID: "onboarding"})
	require.NoError(t, err)
	require.NotNil(t, next.ActiveWorkflow)
	assert.Equal(t, "onboarding", next.ActiveWorkflow.WorkflowID)
	assert.Empty(t, next.ActiveWorkflow.CompletedStepIDs)

	next, err = r.Apply(next, ToggleWorkflowStep{StepID: "step-1"})
	require.NoError(t, err)
	assert.True(t, next.ActiveWorkflow.StepDone("step-1"))

	// Toggling again un-completes.
	next, err = r.Apply(next, ToggleWorkflowStep{StepID: "step-1"})
	require.NoError(t, err)
	assert.False(t, next.ActiveWorkflow.StepDone("step-1"))

	next, err = r.Apply(next, CancelWorkflow{})
	require.NoError(t, err)
	assert.Nil(t, next.ActiveWorkflow)

	_, err = r.Apply(next, ToggleWorkflowStep{StepID: "step-1"})
	assert.ErrorIs(t, err, ErrNoActiveWorkflow)

	_, err = r.Apply(openChat(), StartWorkflow{WorkflowID: "missing"})
	assert.ErrorIs(t, err, ErrUnknownWorkflow)
}

func TestReducerTransferStepMovesChat(t *testing.T) {
	t.Parallel()

	r := testReducer()
	chat := openChat()
	chat.AssignedTo = "agent-1"
	chat.ActiveWorkflow = &domain.ActiveWorkflow{WorkflowID: "onboarding"}

	next, err := r.Apply(chat, ToggleWorkflowStep{StepID: "step-2"})
	require.NoError(t, err)
	assert.True(t, next.ActiveWorkflow.StepDone("step-2"))
	assert.Equal(t, "billing", next.DepartmentID, "completing the transfer step hands the chat off")
	assert.Empty(t, next.AssignedTo)

	// Un-completing the step does not transfer back.
	next, err = r.Apply(next, ToggleWorkflowStep{StepID: "step-2"})
	require.NoError(t, err)
	assert.False(t, next.ActiveWorkflow.StepDone("step-2"))
	assert.Equal(t, "billing", next.DepartmentID)
}

func TestReducerMessageStatusTransitions(t *testing.T) {
	t.Parallel()

	r := testReducer()
	chat := openChat()
	chat.Messages = []domain.Message{{ID: "m1", ProviderMessageID: "prov-1", Status: domain.StatusSent}}

	next, err := r.Apply(chat, UpdateMessageStatus{MessageID: "m1", Status: domain.StatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, next.Messages[0].Status)

	// Provider id addresses the same message.
	next, err = r.Apply(next, UpdateMessageStatus{MessageID: "prov-1", Status: domain.StatusRead})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, next.Messages[0].Status)

	// Late DELIVERED after READ is dropped, not an error.
	next, err = r.Apply(next, UpdateMessageStatus{MessageID: "m1", Status: domain.StatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, next.Messages[0].Status)

	// Receipts never resurrect a failed message.
	failed, err := r.Apply(chat, MarkMessageFailed{MessageID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, failed.Messages[0].Status)
	failed, err = r.Apply(failed, UpdateMessageStatus{MessageID: "m1", Status: domain.StatusRead})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, failed.Messages[0].Status)

	_, err = r.Apply(chat, UpdateMessageStatus{MessageID: "ghost", Status: domain.StatusRead})
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestReducerPatchMessage(t *testing.T) {
	t.Parallel()

	r := testReducer()
	chat := openChat()
	chat.Messages = []domain.Message{{ID: "m1", Status: domain.StatusSent, MediaURL: "https://cdn/original"}}

	next, err := r.Apply(chat, PatchMessage{MessageID: "m1", ProviderMessageID: "prov-9"})
	require.NoError(t, err)
	assert.Equal(t, "prov-9", next.Messages[0].ProviderMessageID)
	assert.Equal(t, "https://cdn/original", next.Messages[0].MediaURL, "empty patch fields leave values alone")
	require.Len(t, next.Messages, 1, "patch never appends")
}

func TestReducerDepartmentSelectionFlow(t *testing.T) {
	t.Parallel()

	r := testReducer()
	next, err := r.Apply(openChat(), NoteDepartmentPromptSent{})
	require.NoError(t, err)
	assert.True(t, next.DepartmentSelectionSent)
	assert.True(t, next.AwaitingDepartmentSelection)

	next, err = r.Apply(next, SelectDepartment{DepartmentID: "support"})
	require.NoError(t, err)
	assert.Equal(t, "support", next.DepartmentID)
	assert.False(t, next.AwaitingDepartmentSelection)

	// Selection outside the prompt window is rejected.
	_, err = r.Apply(openChat(), SelectDepartment{DepartmentID: "support"})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestReducerRating(t *testing.T) {
	t.Parallel()

	r := testReducer()
	chat, err := r.Apply(openChat(), Close{WithSurvey: true})
	require.NoError(t, err)

	_, err = r.Apply(chat, RateChat{Rating: 6})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	rated, err := r.Apply(chat, RateChat{Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, rated.Rating)
	assert.False(t, rated.AwaitingRating)

	_, err = r.Apply(rated, RateChat{Rating: 2})
	assert.ErrorIs(t, err, ErrInvalidEvent, "rating applies once")
}

func TestReducerRejectsNilChatAndUnknownEvent(t *testing.T) {
	t.Parallel()

	r := testReducer()
	_, err := r.Apply(nil, MarkRead{})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}
