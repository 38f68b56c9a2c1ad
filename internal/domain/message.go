package domain

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"
)

// MessageStatus tracks the delivery lifecycle of an outbound message.
// SENT is the optimistic initial state; DELIVERED and READ are advanced
// only by provider receipts; ERROR is terminal and set only when dispatch
// fails.
type MessageStatus string

const (
	StatusSent      MessageStatus = "SENT"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusRead      MessageStatus = "READ"
	StatusError     MessageStatus = "ERROR"
)

var statusRank = map[MessageStatus]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Advances reports whether moving from the current status to next is a
// valid forward transition. Delivery states only move forward and ERROR
// is never reachable through receipts.
func (s MessageStatus) Advances(next MessageStatus) bool {
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// MessageType identifies the payload kind of a message.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeAudio    MessageType = "audio"
	TypeVideo    MessageType = "video"
	TypeDocument MessageType = "document"
	TypeSticker  MessageType = "sticker"
	TypeContact  MessageType = "contact"
)

// ReplyRef is a denormalized snapshot of a quoted message. It is copied at
// send time so later edits to the original never change the quote. The
// provider message id and raw payload are carried because the provider
// threads replies by its own id format, not ours.
type ReplyRef struct {
	MessageID         string           `json:"message_id"`
	Content           string           `json:"content"`
	Sender            Sender           `json:"sender"`
	ProviderMessageID string           `json:"provider_message_id,omitempty"`
	Raw               *ProviderPayload `json:"raw,omitempty"`
}

// ProviderPayload holds the raw provider-side metadata attached to a
// message. It is a fallback data source only and never authoritative over
// the explicit Message fields.
type ProviderPayload struct {
	MessageID  string `json:"message_id,omitempty"`
	From       string `json:"from,omitempty"`
	PushName   string `json:"push_name,omitempty"`
	MediaURL   string `json:"media_url,omitempty"`
	DirectPath string `json:"direct_path,omitempty"`
	Thumbnail  string `json:"thumbnail,omitempty"`
}

// BestMediaURL returns the first usable media location from the raw
// payload. The fallback order (media URL, then direct path, then
// thumbnail) is load-bearing: later entries are progressively degraded
// renditions.
func (p *ProviderPayload) BestMediaURL() string {
	if p == nil {
		return ""
	}
	if p.MediaURL != "" {
		return p.MediaURL
	}
	if p.DirectPath != "" {
		return p.DirectPath
	}
	return p.Thumbnail
}

// Message is one entry in a chat's history. Messages are append-only:
// after creation only Status (via reconciliation) and the provider
// enrichment fields (via a patch event) may change.
type Message struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Sender    Sender        `json:"sender"`
	Timestamp time.Time     `json:"timestamp"`
	Status    MessageStatus `json:"status"`
	Type      MessageType   `json:"type"`

	MediaURL string `json:"media_url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileName string `json:"file_name,omitempty"`

	// AuthorJID is the provider address of the author, when known. The
	// phone resolver scans it as a secondary identity signal.
	AuthorJID string `json:"author_jid,omitempty"`

	ReplyTo           *ReplyRef        `json:"reply_to,omitempty"`
	ProviderMessageID string           `json:"provider_message_id,omitempty"`
	Raw               *ProviderPayload `json:"raw,omitempty"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.ReplyTo != nil {
		ref := *m.ReplyTo
		if ref.Raw != nil {
			raw := *ref.Raw
			ref.Raw = &raw
		}
		out.ReplyTo = &ref
	}
	if m.Raw != nil {
		raw := *m.Raw
		out.Raw = &raw
	}
	return out
}
