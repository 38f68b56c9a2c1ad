package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"zapdesk/internal/domain"
)

// Store defines the interface for chat persistence.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// UpsertChat writes a full chat snapshot, replacing the stored one.
	UpsertChat(ctx context.Context, chat *domain.Chat) error

	// LoadChats retrieves every stored chat with its message history.
	LoadChats(ctx context.Context) ([]*domain.Chat, error)

	// DeleteChat removes a chat and its messages.
	DeleteChat(ctx context.Context, chatID string) error

	// CountMessagesByStatus returns how many messages sit in each
	// delivery status, for the send audit task.
	CountMessagesByStatus(ctx context.Context) (map[string]int, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const upsertChatQuery = `
	INSERT INTO chats (
		id, contact_name, contact_number, client_code, department_id, assigned_to,
		status, unread_count, last_message, last_message_time, tags, active_workflow,
		department_selection_sent, awaiting_department_selection,
		ended_at, rating, awaiting_rating, created_at, updated_at
	) VALUES (
		:id, :contact_name, :contact_number, :client_code, :department_id, :assigned_to,
		:status, :unread_count, :last_message, :last_message_time, :tags, :active_workflow,
		:department_selection_sent, :awaiting_department_selection,
		:ended_at, :rating, :awaiting_rating, :created_at, :updated_at
	)
	ON CONFLICT(id) DO UPDATE SET
		contact_name = excluded.contact_name,
		contact_number = excluded.contact_number,
		client_code = excluded.client_code,
		department_id = excluded.department_id,
		assigned_to = excluded.assigned_to,
		status = excluded.status,
		unread_count = excluded.unread_count,
		last_message = excluded.last_message,
		last_message_time = excluded.last_message_time,
		tags = excluded.tags,
		active_workflow = excluded.active_workflow,
		department_selection_sent = excluded.department_selection_sent,
		awaiting_department_selection = excluded.awaiting_department_selection,
		ended_at = excluded.ended_at,
		rating = excluded.rating,
		awaiting_rating = excluded.awaiting_rating,
		updated_at = excluded.updated_at;
`

const upsertMessageQuery = `
	INSERT INTO messages (
		id, chat_id, position, content, sender, timestamp, status, type,
		media_url, mime_type, file_name, author_jid, provider_message_id, reply_to, raw
	) VALUES (
		:id, :chat_id, :position, :content, :sender, :timestamp, :status, :type,
		:media_url, :mime_type, :file_name, :author_jid, :provider_message_id, :reply_to, :raw
	)
	ON CONFLICT(id) DO UPDATE SET
		position = excluded.position,
		status = excluded.status,
		media_url = excluded.media_url,
		provider_message_id = excluded.provider_message_id,
		reply_to = excluded.reply_to,
		raw = excluded.raw;
`

// UpsertChat writes the chat row and its messages in one transaction, so
// a snapshot is either fully stored or not at all.
func (s *sqlxStore) UpsertChat(ctx context.Context, chat *domain.Chat) error {
	if chat == nil {
		return fmt.Errorf("cannot save nil chat")
	}
	if chat.ID == "" {
		return fmt.Errorf("chat must have an id")
	}

	row, err := chatToRow(chat)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for chat upsert", "chat_id", chat.ID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	if _, err := tx.NamedExecContext(ctx, upsertChatQuery, row); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting chat", "chat_id", chat.ID, "error", err)
		return fmt.Errorf("failed to upsert chat %s: %w", chat.ID, err)
	}

	for i, msg := range chat.Messages {
		msgRow, err := messageToRow(chat.ID, i, msg)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, upsertMessageQuery, msgRow); err != nil {
			s.logger.ErrorContext(ctx, "Error upserting message", "chat_id", chat.ID, "message_id", msg.ID, "error", err)
			return fmt.Errorf("failed to upsert message %s: %w", msg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chat upsert: %w", err)
	}
	return nil
}

// LoadChats retrieves every chat and attaches its messages ordered by
// history position.
func (s *sqlxStore) LoadChats(ctx context.Context) ([]*domain.Chat, error) {
	var chatRows []ChatRow
	if err := s.db.SelectContext(ctx, &chatRows, `SELECT * FROM chats;`); err != nil {
		return nil, fmt.Errorf("failed to load chats: %w", err)
	}

	chats := make([]*domain.Chat, 0, len(chatRows))
	for i := range chatRows {
		chat, err := rowToChat(&chatRows[i])
		if err != nil {
			return nil, err
		}

		var msgRows []MessageRow
		if err := s.db.SelectContext(ctx, &msgRows,
			`SELECT * FROM messages WHERE chat_id = ? ORDER BY position ASC;`, chat.ID); err != nil {
			return nil, fmt.Errorf("failed to load messages for chat %s: %w", chat.ID, err)
		}
		chat.Messages = make([]domain.Message, 0, len(msgRows))
		for j := range msgRows {
			msg, err := rowToMessage(&msgRows[j])
			if err != nil {
				return nil, err
			}
			chat.Messages = append(chat.Messages, msg)
		}
		chats = append(chats, chat)
	}

	s.logger.InfoContext(ctx, "Loaded chats from database", "count", len(chats))
	return chats, nil
}

// DeleteChat removes the chat and its messages in one transaction.
func (s *sqlxStore) DeleteChat(ctx context.Context, chatID string) error {
	if chatID == "" {
		return fmt.Errorf("chat id is required")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?;`, chatID); err != nil {
		return fmt.Errorf("failed to delete messages for chat %s: %w", chatID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?;`, chatID); err != nil {
		return fmt.Errorf("failed to delete chat %s: %w", chatID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chat deletion: %w", err)
	}
	s.logger.InfoContext(ctx, "Chat deleted from database", "chat_id", chatID)
	return nil
}

// CountMessagesByStatus groups stored messages by delivery status.
func (s *sqlxStore) CountMessagesByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT status, COUNT(*) AS n FROM messages GROUP BY status;`)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages by status: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.WarnContext(ctx, "Error closing rows", "error", closeErr)
		}
	}()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}
	return counts, nil
}

// RunSQLMaintenance reclaims space and refreshes planner statistics.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM;`); err != nil {
		return fmt.Errorf("vacuum failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `ANALYZE;`); err != nil {
		return fmt.Errorf("analyze failed: %w", err)
	}
	s.logger.InfoContext(ctx, "SQL maintenance completed")
	return nil
}
