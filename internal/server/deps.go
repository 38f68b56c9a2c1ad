package server

import (
	"log/slog"

	"zapdesk/internal/chat"
	"zapdesk/internal/dedup"
	"zapdesk/internal/domain"
	"zapdesk/internal/suggest"
)

// Deps bundles the dependencies shared by all HTTP handlers.
type Deps struct {
	Logger    *slog.Logger
	Manager   *chat.Manager
	Sender    *chat.Sender
	Deduper   dedup.Deduper
	Suggester suggest.Suggester
	Agents    domain.AgentDirectory
	Workflows domain.WorkflowDirectory

	// WebhookToken authenticates provider webhook calls when non-empty.
	WebhookToken string
}
