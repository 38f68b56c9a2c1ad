// Package suggest drafts reply suggestions for agents using Google's
// Gemini API. Suggestions are assistive only: every failure degrades to
// a canned placeholder instead of surfacing an error to the agent.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"zapdesk/internal/config"
	"zapdesk/internal/domain"
)

// Placeholder is returned whenever no real suggestion can be produced.
const Placeholder = "Hello! How can I help you today?"

// Suggester drafts a reply for the current state of a chat.
type Suggester interface {
	SuggestReply(ctx context.Context, chat *domain.Chat) string
}

// Disabled is the no-op suggester used when no API key is configured.
type Disabled struct{}

// SuggestReply always returns the placeholder.
func (Disabled) SuggestReply(context.Context, *domain.Chat) string {
	return Placeholder
}

type sdkClient struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	maxRetries    int
	retryDelay    time.Duration
}

// NewClient creates a Gemini-backed suggester. When the API key is
// empty, a Disabled suggester is returned instead.
func NewClient(ctx context.Context, cfg config.SuggestConfig, log *slog.Logger) (Suggester, error) {
	if cfg.APIKey == "" {
		log.Info("No suggestion API key configured, suggestions disabled")
		return Disabled{}, nil
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	baseCfg := &genai.GenerateContentConfig{
		Temperature: &cfg.Temperature,
	}
	if cfg.Instruction != "" {
		baseCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: cfg.Instruction}}}
	}

	logger := log.With("component", "suggest")
	logger.Info("Suggestion client initialized", "model", cfg.Model)
	return &sdkClient{
		genaiClient:   gi,
		log:           logger,
		contentConfig: baseCfg,
		modelName:     cfg.Model,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    cfg.RetryDelay,
	}, nil
}

// SuggestReply drafts a reply from the recent conversation turns. Any
// failure, including safety blocks and empty responses, yields the
// placeholder.
func (c *sdkClient) SuggestReply(ctx context.Context, chat *domain.Chat) string {
	contents := buildContents(chat)
	if len(contents) == 0 {
		return Placeholder
	}

	resp, err := c.generateWithRetries(ctx, contents)
	if err != nil {
		c.log.WarnContext(ctx, "Suggestion generation failed, using placeholder", "chat_id", chat.ID, "error", err)
		return Placeholder
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		c.log.WarnContext(ctx, "Suggestion response empty, using placeholder", "chat_id", chat.ID)
		return Placeholder
	}
	return text
}

// historyWindow bounds how many trailing messages feed the prompt.
const historyWindow = 20

func buildContents(chat *domain.Chat) []*genai.Content {
	if chat == nil || len(chat.Messages) == 0 {
		return nil
	}
	start := len(chat.Messages) - historyWindow
	if start < 0 {
		start = 0
	}

	var contents []*genai.Content
	for _, m := range chat.Messages[start:] {
		// System notices (claims, transfers, prompt records) are inbox
		// bookkeeping, not conversation turns.
		if m.Content == "" || m.Sender == domain.SenderSystem {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Sender == domain.SenderAgent {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

func (c *sdkClient) generateWithRetries(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, c.contentConfig)
		if err == nil {
			return resp, nil
		}

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) && i < c.maxRetries {
			c.log.InfoContext(ctx, "Retrying suggestion call after retriable error", "code", apiErr.Code, "attempt", i+1, "delay", c.retryDelay)
			time.Sleep(c.retryDelay)
			continue
		}
		return nil, fmt.Errorf("suggestion API call failed: %w", err)
	}
	return nil, err
}
