package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"zapdesk/internal/domain"
)

// Sink is the external persistence collaborator. It is called after every
// committed transition; durability and cross-instance broadcast are its
// responsibility, not the core's.
type Sink interface {
	UpsertChat(ctx context.Context, chat *domain.Chat) error
	DeleteChat(ctx context.Context, chatID string) error
}

// Publisher broadcasts committed chat updates to interested consumers.
type Publisher interface {
	ChatUpdated(ctx context.Context, event string, chat *domain.Chat)
}

// Manager owns the in-memory chat collection and is the only write path
// into it. Each chat has its own lock: every event applies to the latest
// snapshot of that chat in strict sequence, so two racing events can
// never both read the same stale snapshot. Reads hand out the current
// immutable snapshot without locking the collection.
type Manager struct {
	reducer     *Reducer
	sink        Sink
	publisher   Publisher
	departments domain.DepartmentDirectory
	logger      *slog.Logger

	mu    sync.RWMutex
	chats map[string]*chatEntry

	activeMu sync.Mutex
	active   map[string]string // agent id -> actively viewed chat id
}

type chatEntry struct {
	mu       sync.Mutex
	snapshot *domain.Chat
}

// NewManager creates a manager around the reducer and its collaborators.
// publisher may be nil when broadcasting is disabled.
func NewManager(reducer *Reducer, sink Sink, publisher Publisher, departments domain.DepartmentDirectory, logger *slog.Logger) *Manager {
	return &Manager{
		reducer:     reducer,
		sink:        sink,
		publisher:   publisher,
		departments: departments,
		logger:      logger.With("component", "chat_manager"),
		chats:       make(map[string]*chatEntry),
		active:      make(map[string]string),
	}
}

// Load seeds the collection with chats from the persistence layer,
// normalizing each snapshot at the write boundary so inconsistent
// external writes cannot introduce states the classifier cannot place.
func (m *Manager) Load(chats []*domain.Chat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chats {
		snapshot := c.Clone()
		snapshot.Normalize()
		m.chats[snapshot.ID] = &chatEntry{snapshot: snapshot}
	}
	m.logger.Info("chat collection loaded", "count", len(chats))
}

// Get returns the latest snapshot of a chat. Snapshots are immutable by
// convention; callers must not modify them.
func (m *Manager) Get(chatID string) (*domain.Chat, error) {
	m.mu.RLock()
	entry, ok := m.chats[chatID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrChatNotFound, chatID)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.snapshot, nil
}

// List returns the current snapshot of every chat, for the read-side
// classifier.
func (m *Manager) List() []*domain.Chat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Chat, 0, len(m.chats))
	for _, entry := range m.chats {
		entry.mu.Lock()
		out = append(out, entry.snapshot)
		entry.mu.Unlock()
	}
	return out
}

// Apply runs one event through the reducer against the latest snapshot of
// the chat, commits the result, persists it, and broadcasts the update.
// The entry lock is held across reduce and persist so transitions of one
// chat reach the sink in the order they were applied.
func (m *Manager) Apply(ctx context.Context, chatID string, ev Event) (*domain.Chat, error) {
	m.mu.RLock()
	entry, ok := m.chats[chatID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrChatNotFound, chatID)
	}

	entry.mu.Lock()
	next, err := m.reducer.Apply(entry.snapshot, ev)
	if err != nil {
		entry.mu.Unlock()
		m.logger.WarnContext(ctx, "event rejected", "chat_id", chatID, "event", ev.Kind(), "error", err)
		return nil, err
	}
	entry.snapshot = next
	m.persist(ctx, next)
	entry.mu.Unlock()

	if m.publisher != nil {
		m.publisher.ChatUpdated(ctx, ev.Kind(), next)
	}
	return next, nil
}

// persist pushes the committed snapshot to the sink. A persistence
// failure does not roll the transition back: the local snapshot is the
// operator's source of truth and the error is surfaced in the log.
func (m *Manager) persist(ctx context.Context, chat *domain.Chat) {
	if err := m.sink.UpsertChat(ctx, chat); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist chat snapshot", "chat_id", chat.ID, "error", err)
	}
}

// EnsureChat returns the chat with the given id, creating it when the
// first inbound event references an unknown conversation.
func (m *Manager) EnsureChat(ctx context.Context, chatID, contactName, contactNumber string) *domain.Chat {
	m.mu.Lock()
	entry, ok := m.chats[chatID]
	if !ok {
		now := time.Now()
		snapshot := &domain.Chat{
			ID:            chatID,
			ContactName:   contactName,
			ContactNumber: contactNumber,
			Status:        domain.ChatOpen,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		entry = &chatEntry{snapshot: snapshot}
		m.chats[chatID] = entry
	}
	m.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !ok {
		m.logger.InfoContext(ctx, "new chat created", "chat_id", chatID, "contact_name", contactName)
		m.persist(ctx, entry.snapshot)
	}
	return entry.snapshot
}

// Inbound processes a customer message, routing it through the
// conversational sub-flows the chat flags guard: a numeric reply while
// the chat awaits department selection picks a department, a 1-5 reply
// while it awaits a rating records the closure survey. The message itself
// is always appended first.
func (m *Manager) Inbound(ctx context.Context, chatID string, msg domain.Message, contactName string) (*domain.Chat, error) {
	snapshot := m.EnsureChat(ctx, chatID, contactName, contactFromJID(chatID))

	awaitingSelection := snapshot.AwaitingDepartmentSelection
	awaitingRating := snapshot.AwaitingRating

	next, err := m.Apply(ctx, chatID, InboundReply{Message: msg})
	if err != nil {
		return nil, err
	}

	choice, numeric := parseChoice(msg.Content)
	if !numeric {
		return next, nil
	}

	switch {
	case awaitingSelection:
		departments := m.departments.Departments()
		if choice >= 1 && choice <= len(departments) {
			return m.Apply(ctx, chatID, SelectDepartment{DepartmentID: departments[choice-1].ID})
		}
		m.logger.InfoContext(ctx, "department choice out of range", "chat_id", chatID, "choice", choice)
	case awaitingRating:
		if choice >= 1 && choice <= 5 {
			return m.Apply(ctx, chatID, RateChat{Rating: choice})
		}
	}
	return next, nil
}

// SetActiveChat records which chat an agent is viewing and resets its
// unread counter, the only place unread ever resets outside a send.
func (m *Manager) SetActiveChat(ctx context.Context, agentID, chatID string) (*domain.Chat, error) {
	m.activeMu.Lock()
	m.active[agentID] = chatID
	m.activeMu.Unlock()
	return m.Apply(ctx, chatID, MarkRead{})
}

// ActiveChat returns the chat the agent is currently viewing, if any.
func (m *Manager) ActiveChat(agentID string) (string, bool) {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	id, ok := m.active[agentID]
	return id, ok
}

// Delete removes a chat irreversibly. The external deletion runs first;
// the local collection keeps the chat when deletion fails, so a failed
// delete never leaves half-removed state.
func (m *Manager) Delete(ctx context.Context, chatID string) error {
	m.mu.RLock()
	_, ok := m.chats[chatID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrChatNotFound, chatID)
	}
	if err := m.sink.DeleteChat(ctx, chatID); err != nil {
		return fmt.Errorf("failed to delete chat %s: %w", chatID, err)
	}
	m.mu.Lock()
	delete(m.chats, chatID)
	m.mu.Unlock()
	m.logger.InfoContext(ctx, "chat deleted", "chat_id", chatID)
	return nil
}

func parseChoice(content string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(content))
	if err != nil {
		return 0, false
	}
	return n, true
}

// contactFromJID derives the initial contact number for a brand-new chat
// from its id, when the id is an individual JID.
func contactFromJID(chatID string) string {
	local, dom, ok := splitJID(chatID)
	if !ok || isGroupOrBroadcast(dom) || isPlaceholder(chatID) {
		return ""
	}
	return digitsOnly(local)
}
