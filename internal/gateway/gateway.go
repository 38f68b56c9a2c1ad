// Package gateway implements the outbound HTTP adapter toward the
// messaging provider.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"zapdesk/internal/chat"
	"zapdesk/internal/config"
	"zapdesk/internal/domain"
)

// Client sends messages through the provider gateway's HTTP API. It
// implements the dispatcher contract of the send orchestrator: methods
// report success as a boolean and never panic, so a provider outage is
// an ordinary delivery failure rather than an exception path.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// NewClient creates a gateway client from the provider configuration.
func NewClient(cfg config.ProviderConfig, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		logger:     logger.With("component", "gateway"),
	}
}

type textPayload struct {
	To      string        `json:"to"`
	Body    string        `json:"body"`
	ReplyTo *replyPayload `json:"reply_to,omitempty"`
}

type replyPayload struct {
	MessageID string                  `json:"message_id"`
	Content   string                  `json:"content"`
	Raw       *domain.ProviderPayload `json:"raw,omitempty"`
}

type mediaPayload struct {
	To       string `json:"to"`
	Kind     string `json:"kind"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type contactPayload struct {
	To     string `json:"to"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// SendText delivers a plain text message, optionally quoting an earlier
// one.
func (c *Client) SendText(ctx context.Context, to, body string, reply *chat.ReplyTarget) bool {
	payload := textPayload{To: to, Body: body}
	if reply != nil {
		payload.ReplyTo = &replyPayload{MessageID: reply.MessageID, Content: reply.Content, Raw: reply.Raw}
	}
	return c.post(ctx, "/send/text", payload)
}

// SendMedia delivers an image, audio, video, document, or sticker.
func (c *Client) SendMedia(ctx context.Context, to string, media chat.MediaPayload) bool {
	return c.post(ctx, "/send/media", mediaPayload{
		To:       to,
		Kind:     string(media.Kind),
		URL:      media.URL,
		MimeType: media.MimeType,
		FileName: media.FileName,
		Caption:  media.Caption,
	})
}

// SendContactCard delivers a contact card.
func (c *Client) SendContactCard(ctx context.Context, to, name, number string) bool {
	return c.post(ctx, "/send/contact", contactPayload{To: to, Name: name, Number: number})
}

// SendDepartmentPrompt delivers the numbered department selection menu.
func (c *Client) SendDepartmentPrompt(ctx context.Context, to string, departments []domain.Department) bool {
	var sb strings.Builder
	sb.WriteString("Please choose a department by replying with its number:\n")
	for i, dept := range departments {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, dept.Name)
	}
	return c.SendText(ctx, to, sb.String(), nil)
}

// post performs one JSON POST against the gateway and reports whether
// the gateway accepted the payload. All failure modes are logged here;
// callers only see the boolean.
func (c *Client) post(ctx context.Context, path string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to encode gateway payload", "path", path, "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to create gateway request", "path", path, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Gateway request failed", "path", path, "error", err)
		return false
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.WarnContext(ctx, "Error closing gateway response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.ErrorContext(ctx, "Gateway rejected payload",
			"path", path,
			"status", resp.StatusCode,
			"body", string(body))
		return false
	}

	c.logger.DebugContext(ctx, "Gateway accepted payload", "path", path, "status", resp.StatusCode)
	return true
}
