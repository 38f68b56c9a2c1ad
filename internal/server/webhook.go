package server

import (
	"encoding/json"
	"net/http"
	"time"

	"zapdesk/internal/chat"
	"zapdesk/internal/domain"
)

// webhookEvent is the provider's delivery format. One call carries
// either a message or a receipt, discriminated by Event.
type webhookEvent struct {
	Event   string `json:"event"`
	EventID string `json:"event_id"`
	ChatID  string `json:"chat_id"`
	FromMe  bool   `json:"from_me"`

	Message *webhookMessage `json:"message,omitempty"`
	Ack     *webhookAck     `json:"ack,omitempty"`
}

type webhookMessage struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Body       string `json:"body"`
	PushName   string `json:"push_name"`
	AuthorJID  string `json:"author_jid"`
	MediaURL   string `json:"media_url"`
	DirectPath string `json:"direct_path"`
	Thumbnail  string `json:"thumbnail"`
	MimeType   string `json:"mime_type"`
	FileName   string `json:"file_name"`
	Timestamp  int64  `json:"timestamp"`
}

type webhookAck struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// handleWebhook ingests provider events: inbound customer messages,
// echoes of our own sends, and delivery receipts. Deduplication runs
// before any state change, so provider redeliveries are harmless.
func (d *Deps) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if d.WebhookToken != "" && r.Header.Get("X-Webhook-Token") != d.WebhookToken {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid webhook token"})
		return
	}

	var ev webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		badRequest(w, "invalid webhook payload")
		return
	}
	if ev.ChatID == "" {
		badRequest(w, "chat_id is required")
		return
	}

	eventID := ev.EventID
	if eventID == "" && ev.Message != nil {
		eventID = ev.Message.ID
	}
	if eventID != "" {
		// Dedup errors fail open; a redelivered event is preferable to a
		// dropped one.
		if dup, err := d.Deduper.IsDuplicate(r.Context(), eventID); err == nil && dup {
			writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		}
	}

	switch ev.Event {
	case "message":
		if ev.Message == nil {
			badRequest(w, "message payload missing")
			return
		}
		if ev.FromMe {
			d.reconcileEcho(w, r, ev)
			return
		}
		d.ingestMessage(w, r, ev, eventID)
	case "ack":
		if ev.Ack == nil {
			badRequest(w, "ack payload missing")
			return
		}
		d.applyReceipt(w, r, ev, eventID)
	default:
		badRequest(w, "unknown event type")
	}
}

func (d *Deps) ingestMessage(w http.ResponseWriter, r *http.Request, ev webhookEvent, eventID string) {
	wm := ev.Message
	msg := domain.Message{
		Content:           wm.Body,
		Sender:            domain.SenderUser,
		Type:              domain.MessageType(wm.Type),
		MimeType:          wm.MimeType,
		FileName:          wm.FileName,
		AuthorJID:         wm.AuthorJID,
		ProviderMessageID: wm.ID,
		Raw: &domain.ProviderPayload{
			MessageID:  wm.ID,
			From:       ev.ChatID,
			PushName:   wm.PushName,
			MediaURL:   wm.MediaURL,
			DirectPath: wm.DirectPath,
			Thumbnail:  wm.Thumbnail,
		},
	}
	if wm.Timestamp > 0 {
		msg.Timestamp = time.Unix(wm.Timestamp, 0)
	}
	msg.MediaURL = msg.Raw.BestMediaURL()

	updated, err := d.Manager.Inbound(r.Context(), ev.ChatID, msg, wm.PushName)
	if err != nil {
		writeError(w, err)
		return
	}

	d.markProcessed(r, eventID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "unread_count": updated.UnreadCount})
}

// reconcileEcho matches the provider's echo of an agent send back to the
// optimistic message and patches in the provider id and media location.
// Unmatched echoes (sent from another device) are ignored.
func (d *Deps) reconcileEcho(w http.ResponseWriter, r *http.Request, ev webhookEvent) {
	snapshot, err := d.Manager.Get(ev.ChatID)
	if err != nil {
		// An echo for a chat we never created carries no actionable state.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	wm := ev.Message
	for i := len(snapshot.Messages) - 1; i >= 0; i-- {
		m := snapshot.Messages[i]
		if m.Sender != domain.SenderAgent || m.ProviderMessageID != "" {
			continue
		}
		if m.Content != wm.Body {
			continue
		}
		_, err := d.Manager.Apply(r.Context(), ev.ChatID, chat.PatchMessage{
			MessageID:         m.ID,
			ProviderMessageID: wm.ID,
			MediaURL:          wm.MediaURL,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		break
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// applyReceipt advances a message's delivery status. Downgrades are
// silently dropped by the state machine, so out-of-order receipts need
// no handling here.
func (d *Deps) applyReceipt(w http.ResponseWriter, r *http.Request, ev webhookEvent, eventID string) {
	var event chat.Event
	switch ev.Ack.Status {
	case "delivered":
		event = chat.UpdateMessageStatus{MessageID: ev.Ack.MessageID, Status: domain.StatusDelivered}
	case "read":
		event = chat.UpdateMessageStatus{MessageID: ev.Ack.MessageID, Status: domain.StatusRead}
	case "failed", "rejected":
		event = chat.MarkMessageFailed{MessageID: ev.Ack.MessageID}
	case "sent", "accepted":
		// Already the optimistic baseline.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	default:
		badRequest(w, "unknown ack status")
		return
	}

	if _, err := d.Manager.Apply(r.Context(), ev.ChatID, event); err != nil {
		writeError(w, err)
		return
	}
	d.markProcessed(r, eventID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *Deps) markProcessed(r *http.Request, eventID string) {
	if eventID == "" {
		return
	}
	if err := d.Deduper.MarkProcessed(r.Context(), eventID); err != nil {
		d.Logger.WarnContext(r.Context(), "Failed to record processed event", "event_id", eventID, "error", err)
	}
}
