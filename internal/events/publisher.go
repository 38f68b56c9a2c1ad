// Package events broadcasts committed chat updates over AMQP so other
// services (notification fan-out, analytics) can follow the inbox.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"zapdesk/internal/domain"
)

// Meta describes one published event.
type Meta struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Producer string    `json:"producer"`
	Time     time.Time `json:"time"`
}

// Envelope wraps every published payload.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// ChatUpdateData is the broadcast payload for a committed chat
// transition. The full message history is deliberately omitted; heavy
// consumers read it from storage.
type ChatUpdateData struct {
	ChatID          string    `json:"chat_id"`
	Event           string    `json:"event"`
	Status          string    `json:"status"`
	DepartmentID    string    `json:"department_id,omitempty"`
	AssignedTo      string    `json:"assigned_to,omitempty"`
	UnreadCount     int       `json:"unread_count"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
}

const producerName = "zapdesk"

// AMQPPublisher publishes chat updates to a durable topic exchange. It
// satisfies the chat manager's publisher contract; publish failures are
// logged and never propagate into the chat transition.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	exchange string
	logger   *slog.Logger
}

// NewAMQPPublisher connects to the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	return &AMQPPublisher{
		conn:     conn,
		exchange: exchange,
		logger:   logger.With("component", "events"),
	}, nil
}

// ChatUpdated publishes one committed transition. The routing key is
// chat.updated.<event>, so consumers can bind to the transitions they
// care about.
func (p *AMQPPublisher) ChatUpdated(ctx context.Context, event string, chat *domain.Chat) {
	envelope := Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Type:     "chat.updated.v1",
			Producer: producerName,
			Time:     time.Now(),
		},
		Data: ChatUpdateData{
			ChatID:          chat.ID,
			Event:           event,
			Status:          string(chat.Status),
			DepartmentID:    chat.DepartmentID,
			AssignedTo:      chat.AssignedTo,
			UnreadCount:     chat.UnreadCount,
			LastMessage:     chat.LastMessage,
			LastMessageTime: chat.LastMessageTime,
		},
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to encode chat update", "chat_id", chat.ID, "error", err)
		return
	}

	ch, err := p.conn.Channel()
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to open broker channel", "chat_id", chat.ID, "error", err)
		return
	}
	defer ch.Close()

	key := "chat.updated." + event
	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     envelope.Meta.ID,
		CorrelationId: uuid.NewString(),
		Timestamp:     envelope.Meta.Time,
		Body:          body,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish chat update", "chat_id", chat.ID, "key", key, "error", err)
		return
	}
	p.logger.DebugContext(ctx, "Published chat update", "chat_id", chat.ID, "key", key)
}

// Close closes the broker connection.
func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}
