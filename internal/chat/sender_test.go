package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapdesk/internal/domain"
)

type fakeDispatcher struct {
	mu sync.Mutex

	textOK    bool
	mediaOK   bool
	contactOK bool
	promptOK  bool

	texts    []sentText
	media    []MediaPayload
	contacts []sentContact
	prompts  []string
}

type sentText struct {
	to    string
	body  string
	reply *ReplyTarget
}

type sentContact struct {
	to, name, number string
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{textOK: true, mediaOK: true, contactOK: true, promptOK: true}
}

func (d *fakeDispatcher) SendText(_ context.Context, to, body string, reply *ReplyTarget) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, sentText{to: to, body: body, reply: reply})
	return d.textOK
}

func (d *fakeDispatcher) SendMedia(_ context.Context, to string, media MediaPayload) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.media = append(d.media, media)
	return d.mediaOK
}

func (d *fakeDispatcher) SendContactCard(_ context.Context, to, name, number string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts = append(d.contacts, sentContact{to: to, name: name, number: number})
	return d.contactOK
}

func (d *fakeDispatcher) SendDepartmentPrompt(_ context.Context, to string, _ []domain.Department) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prompts = append(d.prompts, to)
	return d.promptOK
}

func newTestSender(dispatcher Dispatcher, chats ...*domain.Chat) (*Sender, *Manager) {
	dir := testDirectory()
	m := NewManager(NewReducer(dir, dir), &memorySink{}, nil, dir, testLogger())
	m.Load(chats)
	return NewSender(m, dispatcher, dir, dir, testLogger()), m
}

func TestSenderTextSend(t *testing.T) {
	t.Parallel()

	d := newFakeDispatcher()
	chat := openChat()
	chat.DepartmentID = "support"
	s, m := newTestSender(d, chat)

	msg, err := s.Send(context.Background(), SendRequest{
		ChatID:  chat.ID,
		AgentID: "agent-1",
		Content: "Good morning",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, msg.Status)
	assert.Equal(t, domain.SenderAgent, msg.Sender)

	// Stored content is the agent's text exactly; the identity header
	// exists only on the wire.
	stored, err := m.Get(chat.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 1)
	assert.Equal(t, "Good morning", stored.Messages[0].Content)

	require.Len(t, d.texts, 1)
	assert.Equal(t, "5511999887766", d.texts[0].to)
	assert.Equal(t, "*Ana - Support:*\nGood morning", d.texts[0].body)
}

func TestSenderUnroutedChatGetsDepartmentPrompt(t *testing.T) {
	t.Parallel()

	d := newFakeDispatcher()
	chat := openChat()
	s, m := newTestSender(d, chat)

	_, err := s.Send(context.Background(), SendRequest{ChatID: chat.ID, AgentID: "agent-2", Content: "hello"})
	require.NoError(t, err)

	require.Len(t, d.prompts, 1)
	assert.Equal(t, "5511999887766", d.prompts[0])

	after, err := m.Get(chat.ID)
	require.NoError(t, err)
	assert.True(t, after.DepartmentSelectionSent)
	assert.True(t, after.AwaitingDepartmentSelection)

	// The prompt goes out once per chat.
	_, err = s.Send(context.Background(), SendRequest{ChatID: chat.ID, AgentID: "agent-2", Content: "again"})
	require.NoError(t, err)
	assert.Len(t, d.prompts, 1)
}

func TestSenderPromptNotSentWhenRouted(t *testing.T) {
	t.Parallel()

	d := newFakeDispatcher()
	chat := openChat()
	chat.DepartmentID = "support"
	s, _ := newTestSender(d, chat)

	_, err := s.Send(context.Background(), SendRequest{ChatID: chat.ID, AgentID: "agent-1", Content: "hi"})
	require.NoError(t, err)
	assert.Empty(t, d.prompts)
}

func TestSenderPromptFailureRetriedNextSend(t *testing.T) {
	t.Parallel()

	d := newFakeDispatcher()
	d.promptOK = false
	chat := openChat()
	s, m := newTestSender(d, chat)

	_, err := s.Send(context.Background(), SendRequest{ChatID: chat.ID, AgentID: "agent-2", Content: "hello"})
	require.NoError(t, err, "a failed prompt does not fail the send")

	after, err := m.Get(chat.ID)
	require.NoError(t, err)
	assert.False(t, after.DepartmentSelectionSent, "flag records only a delivered prompt")

	d.promptOK = true
	_, err = s.Send(context.Background(), SendRequest{ChatID: chat.ID, AgentID: "agent-2", Content: "again"})
	require.NoError(t, err)
	assert.Len(t, d.prompts, 2)
}

func TestSenderDispatchFailureMarksMessageFailed(t *testing.T) {
	t.Parallel()

	d := newFakeDispatcher()
	d.textOK = false
	chat := openChat()
	s, m := newTestSender(d, chat)

	msg, err := s.Send(context.Background(), SendRequest{ChatID: chat.ID, AgentID: "agent-2", Content: "hello"})
	require.ErrorIs(t, err, ErrDispatchFailed)

	stored, gerr := m.Get(chat.ID)
	require.NoError(t, gerr)
	require.Len(t, stored.Messages, 1, "the failed message stays in the history")
	assert.Equal(t, msg.ID, stored.Messages[0].ID)
	assert.Equal(t, domain.StatusError, stored.Messages[0].Status)
	assert.Empty(t, d.prompts, "no prompt after a failed send")
}

func TestSenderBlocksWithoutValidNumber(t *testing.T) {
	t.Parallel()

	d := newFakeDispatcher()
	chat := &domain.Chat{ID: "chat_1700000000", ContactName: "Walk-in", Status: domain.ChatOpen}
	s, m := newTestSender(d, chat)

	_, err := s.Send(context.Background(), SendRequest{ChatID: chat.ID, AgentID: "agent-2", Content: "hello"})
	require.ErrorIs(t, err, ErrNoValidNumber)

	stored, gerr := m.Get(chat.ID)
	require.NoError(t, gerr)
	assert.Empty(t, stored.Messages, "nothing is appended when the send is blocked")
	assert.Empty(t, d.texts)
}

func TestSenderTargetingGuard(t *testing.T) {
	t.Parallel()

	d := newFakeDispatcher()
	chat := openChat()
	chat.AssignedTo = "agent-1"
	s, _ := newTestSender(d, chat)

	_, err := s.Send(context.Background(), SendRequest{ChatID: chat.ID, AgentID: "agent-2", Content: "hello"})
	assert.ErrorIs(t, err, ErrChatLocked)

	// The assignee and admins may send.
	_, err = s.Send(context.Background(), SendRequest{ChatID: chat.ID, AgentID: "agent-1", Content: "hello"})
	require.NoError(t, err)
	_, err = s.Send(context.Background(), SendRequest{ChatID: chat.ID, AgentID: "admin-1", Content: "override"})
	require.NoError(t, err)

	_, err = s.Send(context.Background(), SendRequest{ChatID: chat.ID, AgentID: "ghost", Content: "hello"})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestSenderReplyPrefersProviderID(t *testing.T) {
	t.Parallel()

	d := newFakeDispatcher()
	chat := openChat()
	chat.Messages = []domain.Message{
		{
			ID: "m1", Content: "original", Sender: domain.SenderUser,
			ProviderMessageID: "prov-1", Status: domain.StatusSent,
			Raw: &domain.ProviderPayload{MessageID: "prov-1", From: chat.ID, PushName: "Alice Santos"},
		},
		{ID: "m2", Content: "no provider id", Sender: domain.SenderUser, Status: domain.StatusSent},
	}
	s, _ := newTestSender(d, chat)

	_, err := s.Send(context.Background(), SendRequest{ChatID: chat.ID, AgentID: "agent-2", Content: "re", ReplyToMessageID: "m1"})
	require.NoError(t, err)
	require.NotNil(t, d.texts[0].reply)
	assert.Equal(t, "prov-1", d.texts[0].reply.MessageID)
	assert.Equal(t, "original", d.texts[0].reply.Content)
	require.NotNil(t, d.texts[0].reply.Raw, "quoted provider payload travels with the reply")
	assert.Equal(t, "prov-1", d.texts[0].reply.Raw.MessageID)

	_, err = s.Send(context.Background(), SendRequest{ChatID: chat.ID, AgentID: "agent-2", Content: "re", ReplyToMessageID: "m2"})
	require.NoError(t, err)
	require.NotNil(t, d.texts[1].reply)
	assert.Equal(t, "m2", d.texts[1].reply.MessageID, "local id is the fallback")
	assert.Nil(t, d.texts[1].reply.Raw)
}

func TestSenderNoIdentityHeaderWithoutName(t *testing.T) {
	t.Parallel()

	dir := domain.NewDirectory(
		[]domain.Department{{ID: "support", Name: "Support"}},
		nil,
		[]domain.Agent{{ID: "agent-x", DepartmentID: "support"}},
	)
	d := newFakeDispatcher()
	chat := openChat()
	m := NewManager(NewReducer(dir, dir), &memorySink{}, nil, dir, testLogger())
	m.Load([]*domain.Chat{chat})
	s := NewSender(m, d, dir, dir, testLogger())

	_, err := s.Send(context.Background(), SendRequest{ChatID: chat.ID, AgentID: "agent-x", Content: "hello"})
	require.NoError(t, err)
	require.Len(t, d.texts, 1)
	assert.Equal(t, "hello", d.texts[0].body, "no header when the agent has no display name")
}

func TestSenderMediaSend(t *testing.T) {
	t.Parallel()

	d := newFakeDispatcher()
	chat := openChat()
	s, m := newTestSender(d, chat)

	msg, err := s.Send(context.Background(), SendRequest{
		ChatID:   chat.ID,
		AgentID:  "agent-1",
		Type:     domain.TypeImage,
		Content:  "the screenshot",
		MediaURL: "https://cdn.example/img.png",
		MimeType: "image/png",
		FileName: "img.png",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TypeImage, msg.Type)

	require.Len(t, d.media, 1)
	assert.Equal(t, domain.TypeImage, d.media[0].Kind)
	assert.Equal(t, "https://cdn.example/img.png", d.media[0].URL)
	assert.Equal(t, "*Ana - Support:*\nthe screenshot", d.media[0].Caption)

	// Media sends never trigger the department prompt.
	assert.Empty(t, d.prompts)
	stored, gerr := m.Get(chat.ID)
	require.NoError(t, gerr)
	assert.Equal(t, "the screenshot", stored.Messages[0].Content)
}

func TestSenderContactCardSend(t *testing.T) {
	t.Parallel()

	d := newFakeDispatcher()
	chat := openChat()
	s, _ := newTestSender(d, chat)

	_, err := s.Send(context.Background(), SendRequest{
		ChatID:   chat.ID,
		AgentID:  "agent-1",
		Type:     domain.TypeContact,
		Content:  "5521888776655",
		FileName: "Bruno Lima",
	})
	require.NoError(t, err)
	require.Len(t, d.contacts, 1)
	assert.Equal(t, "Bruno Lima", d.contacts[0].name)
	assert.Equal(t, "5521888776655", d.contacts[0].number)
}
