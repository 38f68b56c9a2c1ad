package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapdesk/internal/domain"
)

type memorySink struct {
	mu      sync.Mutex
	upserts int
	deletes []string
	failAll bool
}

func (s *memorySink) UpsertChat(_ context.Context, _ *domain.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("sink unavailable")
	}
	s.upserts++
	return nil
}

func (s *memorySink) DeleteChat(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("sink unavailable")
	}
	s.deletes = append(s.deletes, chatID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) ChatUpdated(_ context.Context, event string, _ *domain.Chat) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(sink Sink, publisher Publisher) *Manager {
	dir := testDirectory()
	return NewManager(NewReducer(dir, dir), sink, publisher, dir, testLogger())
}

func TestManagerLoadNormalizes(t *testing.T) {
	t.Parallel()

	m := newTestManager(&memorySink{}, nil)
	m.Load([]*domain.Chat{{
		ID:             "c1",
		Status:         domain.ChatClosed,
		AssignedTo:     "agent-1",
		ActiveWorkflow: &domain.ActiveWorkflow{WorkflowID: "onboarding"},
		UnreadCount:    -2,
	}})

	chat, err := m.Get("c1")
	require.NoError(t, err)
	assert.Empty(t, chat.AssignedTo)
	assert.Nil(t, chat.ActiveWorkflow)
	assert.Zero(t, chat.UnreadCount)
}

func TestManagerEnsureChat(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	m := newTestManager(sink, nil)

	first := m.EnsureChat(context.Background(), "5511999887766@s.whatsapp.net", "Alice", "5511999887766")
	assert.Equal(t, domain.ChatOpen, first.Status)
	assert.Equal(t, 1, sink.upserts)

	// Ensuring again returns the existing chat without another persist.
	again := m.EnsureChat(context.Background(), "5511999887766@s.whatsapp.net", "Someone Else", "")
	assert.Equal(t, "Alice", again.ContactName)
	assert.Equal(t, 1, sink.upserts)
}

func TestManagerApply(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	pub := &recordingPublisher{}
	m := newTestManager(sink, pub)
	m.Load([]*domain.Chat{openChat()})
	id := openChat().ID

	next, err := m.Apply(context.Background(), id, AddTag{Tag: "vip"})
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, next.Tags)
	assert.Equal(t, []string{"add_tag"}, pub.events)

	// Rejected events change nothing and publish nothing.
	_, err = m.Apply(context.Background(), id, Transfer{DepartmentID: "unknown"})
	require.ErrorIs(t, err, ErrUnknownDepartment)
	current, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, current.Tags)
	assert.Len(t, pub.events, 1)

	_, err = m.Apply(context.Background(), "ghost", MarkRead{})
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestManagerApplySurvivesSinkFailure(t *testing.T) {
	t.Parallel()

	sink := &memorySink{failAll: true}
	m := newTestManager(sink, nil)
	m.Load([]*domain.Chat{openChat()})

	next, err := m.Apply(context.Background(), openChat().ID, AddTag{Tag: "vip"})
	require.NoError(t, err, "persistence failure does not fail the transition")
	assert.Equal(t, []string{"vip"}, next.Tags)
}

func TestManagerConcurrentInbound(t *testing.T) {
	t.Parallel()

	m := newTestManager(&memorySink{}, nil)
	id := "5511999887766@s.whatsapp.net"
	m.Load([]*domain.Chat{{ID: id, Status: domain.ChatOpen}})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Apply(context.Background(), id, InboundReply{Message: domain.Message{Content: "hi", Sender: domain.SenderUser}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	chat, err := m.Get(id)
	require.NoError(t, err)
	assert.Len(t, chat.Messages, n, "no event lost to a stale snapshot")
	assert.Equal(t, n, chat.UnreadCount)
}

func TestManagerInboundDepartmentSelection(t *testing.T) {
	t.Parallel()

	m := newTestManager(&memorySink{}, nil)
	id := "5511999887766@s.whatsapp.net"
	m.Load([]*domain.Chat{{
		ID:                          id,
		Status:                      domain.ChatOpen,
		DepartmentSelectionSent:     true,
		AwaitingDepartmentSelection: true,
	}})

	next, err := m.Inbound(context.Background(), id, domain.Message{Content: "2", Sender: domain.SenderUser}, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "billing", next.DepartmentID, "choice indexes the configured department list")
	assert.False(t, next.AwaitingDepartmentSelection)

	// The reply itself is part of the history.
	assert.GreaterOrEqual(t, len(next.Messages), 1)
	assert.Equal(t, "2", next.Messages[0].Content)
}

func TestManagerInboundIgnoresOutOfRangeChoice(t *testing.T) {
	t.Parallel()

	m := newTestManager(&memorySink{}, nil)
	id := "5511999887766@s.whatsapp.net"
	m.Load([]*domain.Chat{{
		ID:                          id,
		Status:                      domain.ChatOpen,
		AwaitingDepartmentSelection: true,
	}})

	next, err := m.Inbound(context.Background(), id, domain.Message{Content: "9", Sender: domain.SenderUser}, "Alice")
	require.NoError(t, err)
	assert.Empty(t, next.DepartmentID)
	assert.True(t, next.AwaitingDepartmentSelection, "still waiting for a valid choice")
}

func TestManagerInboundRating(t *testing.T) {
	t.Parallel()

	m := newTestManager(&memorySink{}, nil)
	id := "5511999887766@s.whatsapp.net"
	m.Load([]*domain.Chat{{ID: id, Status: domain.ChatClosed, AwaitingRating: true}})

	next, err := m.Inbound(context.Background(), id, domain.Message{Content: " 5 ", Sender: domain.SenderUser}, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 5, next.Rating)
	assert.False(t, next.AwaitingRating)
}

func TestManagerInboundCreatesChat(t *testing.T) {
	t.Parallel()

	m := newTestManager(&memorySink{}, nil)

	next, err := m.Inbound(context.Background(), "5521888776655@s.whatsapp.net", domain.Message{Content: "hello", Sender: domain.SenderUser}, "Bruno")
	require.NoError(t, err)
	assert.Equal(t, "Bruno", next.ContactName)
	assert.Equal(t, "5521888776655", next.ContactNumber)
	assert.Equal(t, 1, next.UnreadCount)
}

func TestManagerSetActiveChat(t *testing.T) {
	t.Parallel()

	m := newTestManager(&memorySink{}, nil)
	id := "5511999887766@s.whatsapp.net"
	m.Load([]*domain.Chat{{ID: id, Status: domain.ChatOpen, UnreadCount: 7}})

	next, err := m.SetActiveChat(context.Background(), "agent-1", id)
	require.NoError(t, err)
	assert.Zero(t, next.UnreadCount)

	active, ok := m.ActiveChat("agent-1")
	require.True(t, ok)
	assert.Equal(t, id, active)
}

func TestManagerDelete(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	m := newTestManager(sink, nil)
	m.Load([]*domain.Chat{openChat()})
	id := openChat().ID

	require.NoError(t, m.Delete(context.Background(), id))
	assert.Equal(t, []string{id}, sink.deletes)
	_, err := m.Get(id)
	assert.ErrorIs(t, err, ErrChatNotFound)

	assert.ErrorIs(t, m.Delete(context.Background(), id), ErrChatNotFound)
}

func TestManagerDeleteKeepsChatOnSinkFailure(t *testing.T) {
	t.Parallel()

	sink := &memorySink{failAll: true}
	m := newTestManager(sink, nil)
	m.Load([]*domain.Chat{openChat()})
	id := openChat().ID

	require.Error(t, m.Delete(context.Background(), id))
	_, err := m.Get(id)
	assert.NoError(t, err, "failed delete leaves the chat in place")
}

func TestManagerListSnapshots(t *testing.T) {
	t.Parallel()

	m := newTestManager(&memorySink{}, nil)
	m.Load([]*domain.Chat{
		{ID: "a", Status: domain.ChatOpen, LastMessageTime: time.Now()},
		{ID: "b", Status: domain.ChatOpen},
	})

	assert.Len(t, m.List(), 2)
}
