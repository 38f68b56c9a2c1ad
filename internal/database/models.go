package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"zapdesk/internal/domain"
)

// ChatRow is the chats table representation of a chat snapshot. Variable
// shaped sub-structures (tags, workflow state) are stored as JSON text.
type ChatRow struct {
	ID            string `db:"id"`
	ContactName   string `db:"contact_name"`
	ContactNumber string `db:"contact_number"`
	ClientCode    string `db:"client_code"`
	DepartmentID  string `db:"department_id"`
	AssignedTo    string `db:"assigned_to"`
	Status        string `db:"status"`
	UnreadCount   int    `db:"unread_count"`

	LastMessage     string    `db:"last_message"`
	LastMessageTime time.Time `db:"last_message_time"`

	TagsJSON     string         `db:"tags"`
	WorkflowJSON sql.NullString `db:"active_workflow"`

	DepartmentSelectionSent     bool `db:"department_selection_sent"`
	AwaitingDepartmentSelection bool `db:"awaiting_department_selection"`

	EndedAt        sql.NullTime `db:"ended_at"`
	Rating         int          `db:"rating"`
	AwaitingRating bool         `db:"awaiting_rating"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// MessageRow is the messages table representation of one history entry.
type MessageRow struct {
	ID                string         `db:"id"`
	ChatID            string         `db:"chat_id"`
	Position          int            `db:"position"`
	Content           string         `db:"content"`
	Sender            string         `db:"sender"`
	Timestamp         time.Time      `db:"timestamp"`
	Status            string         `db:"status"`
	Type              string         `db:"type"`
	MediaURL          string         `db:"media_url"`
	MimeType          string         `db:"mime_type"`
	FileName          string         `db:"file_name"`
	AuthorJID         string         `db:"author_jid"`
	ProviderMessageID string         `db:"provider_message_id"`
	ReplyJSON         sql.NullString `db:"reply_to"`
	RawJSON           sql.NullString `db:"raw"`
}

func chatToRow(chat *domain.Chat) (*ChatRow, error) {
	tags, err := json.Marshal(chat.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	row := &ChatRow{
		ID:                          chat.ID,
		ContactName:                 chat.ContactName,
		ContactNumber:               chat.ContactNumber,
		ClientCode:                  chat.ClientCode,
		DepartmentID:                chat.DepartmentID,
		AssignedTo:                  chat.AssignedTo,
		Status:                      string(chat.Status),
		UnreadCount:                 chat.UnreadCount,
		LastMessage:                 chat.LastMessage,
		LastMessageTime:             chat.LastMessageTime,
		TagsJSON:                    string(tags),
		DepartmentSelectionSent:     chat.DepartmentSelectionSent,
		AwaitingDepartmentSelection: chat.AwaitingDepartmentSelection,
		Rating:                      chat.Rating,
		AwaitingRating:              chat.AwaitingRating,
		CreatedAt:                   chat.CreatedAt,
		UpdatedAt:                   chat.UpdatedAt,
	}
	if chat.ActiveWorkflow != nil {
		wf, err := json.Marshal(chat.ActiveWorkflow)
		if err != nil {
			return nil, fmt.Errorf("failed to encode workflow state: %w", err)
		}
		row.WorkflowJSON = sql.NullString{String: string(wf), Valid: true}
	}
	if chat.EndedAt != nil {
		row.EndedAt = sql.NullTime{Time: *chat.EndedAt, Valid: true}
	}
	return row, nil
}

func rowToChat(row *ChatRow) (*domain.Chat, error) {
	chat := &domain.Chat{
		ID:                          row.ID,
		ContactName:                 row.ContactName,
		ContactNumber:               row.ContactNumber,
		ClientCode:                  row.ClientCode,
		DepartmentID:                row.DepartmentID,
		AssignedTo:                  row.AssignedTo,
		Status:                      domain.ChatStatus(row.Status),
		UnreadCount:                 row.UnreadCount,
		LastMessage:                 row.LastMessage,
		LastMessageTime:             row.LastMessageTime,
		DepartmentSelectionSent:     row.DepartmentSelectionSent,
		AwaitingDepartmentSelection: row.AwaitingDepartmentSelection,
		Rating:                      row.Rating,
		AwaitingRating:              row.AwaitingRating,
		CreatedAt:                   row.CreatedAt,
		UpdatedAt:                   row.UpdatedAt,
	}
	if row.TagsJSON != "" {
		if err := json.Unmarshal([]byte(row.TagsJSON), &chat.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for chat %s: %w", row.ID, err)
		}
	}
	if row.WorkflowJSON.Valid {
		chat.ActiveWorkflow = &domain.ActiveWorkflow{}
		if err := json.Unmarshal([]byte(row.WorkflowJSON.String), chat.ActiveWorkflow); err != nil {
			return nil, fmt.Errorf("failed to decode workflow state for chat %s: %w", row.ID, err)
		}
	}
	if row.EndedAt.Valid {
		t := row.EndedAt.Time
		chat.EndedAt = &t
	}
	return chat, nil
}

func messageToRow(chatID string, position int, msg domain.Message) (*MessageRow, error) {
	row := &MessageRow{
		ID:                msg.ID,
		ChatID:            chatID,
		Position:          position,
		Content:           msg.Content,
		Sender:            string(msg.Sender),
		Timestamp:         msg.Timestamp,
		Status:            string(msg.Status),
		Type:              string(msg.Type),
		MediaURL:          msg.MediaURL,
		MimeType:          msg.MimeType,
		FileName:          msg.FileName,
		AuthorJID:         msg.AuthorJID,
		ProviderMessageID: msg.ProviderMessageID,
	}
	if msg.ReplyTo != nil {
		data, err := json.Marshal(msg.ReplyTo)
		if err != nil {
			return nil, fmt.Errorf("failed to encode reply reference: %w", err)
		}
		row.ReplyJSON = sql.NullString{String: string(data), Valid: true}
	}
	if msg.Raw != nil {
		data, err := json.Marshal(msg.Raw)
		if err != nil {
			return nil, fmt.Errorf("failed to encode provider payload: %w", err)
		}
		row.RawJSON = sql.NullString{String: string(data), Valid: true}
	}
	return row, nil
}

func rowToMessage(row *MessageRow) (domain.Message, error) {
	msg := domain.Message{
		ID:                row.ID,
		Content:           row.Content,
		Sender:            domain.Sender(row.Sender),
		Timestamp:         row.Timestamp,
		Status:            domain.MessageStatus(row.Status),
		Type:              domain.MessageType(row.Type),
		MediaURL:          row.MediaURL,
		MimeType:          row.MimeType,
		FileName:          row.FileName,
		AuthorJID:         row.AuthorJID,
		ProviderMessageID: row.ProviderMessageID,
	}
	if row.ReplyJSON.Valid {
		msg.ReplyTo = &domain.ReplyRef{}
		if err := json.Unmarshal([]byte(row.ReplyJSON.String), msg.ReplyTo); err != nil {
			return domain.Message{}, fmt.Errorf("failed to decode reply reference for message %s: %w", row.ID, err)
		}
	}
	if row.RawJSON.Valid {
		msg.Raw = &domain.ProviderPayload{}
		if err := json.Unmarshal([]byte(row.RawJSON.String), msg.Raw); err != nil {
			return domain.Message{}, fmt.Errorf("failed to decode provider payload for message %s: %w", row.ID, err)
		}
	}
	return msg, nil
}
