package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"zapdesk/internal/domain"
)

// ReplyTarget is the quote reference handed to the provider when a
// message replies to an earlier one. MessageID prefers the provider's
// own id because the provider threads quotes by its id format; Raw
// carries the quoted message's provider payload when available, which
// some gateways need to reconstruct the quote.
type ReplyTarget struct {
	MessageID string
	Content   string
	Sender    domain.Sender
	Raw       *domain.ProviderPayload
}

// MediaPayload describes a non-text outbound payload.
type MediaPayload struct {
	Kind     domain.MessageType
	URL      string
	MimeType string
	FileName string
	Caption  string
}

// Dispatcher is the outbound edge toward the messaging provider. All
// methods report success as a boolean and never panic or return errors:
// the orchestrator owns the failure semantics, the dispatcher just tells
// it whether the wire accepted the payload.
type Dispatcher interface {
	SendText(ctx context.Context, to, body string, reply *ReplyTarget) bool
	SendMedia(ctx context.Context, to string, media MediaPayload) bool
	SendContactCard(ctx context.Context, to, name, number string) bool
	SendDepartmentPrompt(ctx context.Context, to string, departments []domain.Department) bool
}

// SendRequest is an agent's intent to send one message into a chat.
type SendRequest struct {
	ChatID  string
	AgentID string

	Content string
	Type    domain.MessageType

	MediaURL string
	MimeType string
	FileName string

	// ReplyToMessageID quotes an earlier message in the chat.
	ReplyToMessageID string

	// Contact card fields, used when Type is contact.
	ContactName   string
	ContactNumber string
}

// Sender orchestrates outbound sends: targeting guard, phone resolution,
// optimistic append, provider dispatch, and failure reconciliation. The
// message is committed to the chat before the wire call, so the agent
// sees it immediately; a dispatch failure is reconciled by flipping that
// same message to ERROR, never by removing it.
type Sender struct {
	manager     *Manager
	dispatcher  Dispatcher
	agents      domain.AgentDirectory
	departments domain.DepartmentDirectory
	logger      *slog.Logger
}

// NewSender creates the send orchestrator.
func NewSender(manager *Manager, dispatcher Dispatcher, agents domain.AgentDirectory, departments domain.DepartmentDirectory, logger *slog.Logger) *Sender {
	return &Sender{
		manager:     manager,
		dispatcher:  dispatcher,
		agents:      agents,
		departments: departments,
		logger:      logger.With("component", "chat_sender"),
	}
}

// Send runs one outbound message end to end and returns the committed
// message. Checks that need no committed state (targeting, phone
// resolution) run first, so nothing is appended when they fail.
func (s *Sender) Send(ctx context.Context, req SendRequest) (domain.Message, error) {
	agent, ok := s.agents.AgentByID(req.AgentID)
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: unknown agent %q", ErrInvalidEvent, req.AgentID)
	}

	snapshot, err := s.manager.Get(req.ChatID)
	if err != nil {
		return domain.Message{}, err
	}
	if snapshot.AssignedTo != "" && snapshot.AssignedTo != agent.ID && !agent.Admin {
		return domain.Message{}, ErrChatLocked
	}

	number := ResolveNumber(snapshot)
	if number == "" {
		return domain.Message{}, ErrNoValidNumber
	}

	msg := s.buildMessage(snapshot, agent, req)
	next, err := s.manager.Apply(ctx, req.ChatID, AppendMessage{Message: msg})
	if err != nil {
		return domain.Message{}, err
	}

	if !s.dispatch(ctx, number, agent, msg) {
		s.logger.WarnContext(ctx, "dispatch failed", "chat_id", req.ChatID, "message_id", msg.ID, "type", msg.Type)
		if _, ferr := s.manager.Apply(ctx, req.ChatID, MarkMessageFailed{MessageID: msg.ID}); ferr != nil {
			s.logger.ErrorContext(ctx, "failed to record dispatch failure", "chat_id", req.ChatID, "message_id", msg.ID, "error", ferr)
		}
		return msg, ErrDispatchFailed
	}

	if msg.Type == domain.TypeText {
		s.maybeSendDepartmentPrompt(ctx, snapshot, next, number)
	}
	return msg, nil
}

// buildMessage constructs the optimistic message. The stored content is
// the agent's text exactly as typed; the identity header exists only on
// the wire.
func (s *Sender) buildMessage(snapshot *domain.Chat, agent domain.Agent, req SendRequest) domain.Message {
	msg := domain.Message{
		ID:       uuid.NewString(),
		Content:  req.Content,
		Sender:   domain.SenderAgent,
		Status:   domain.StatusSent,
		Type:     req.Type,
		MediaURL: req.MediaURL,
		MimeType: req.MimeType,
		FileName: req.FileName,
	}
	if msg.Type == "" {
		msg.Type = domain.TypeText
	}
	if msg.Type == domain.TypeContact {
		// Contact cards store the number as content and the display name
		// in FileName, so history rendering needs no extra fields.
		if req.ContactName != "" {
			msg.FileName = req.ContactName
		}
		if req.ContactNumber != "" {
			msg.Content = req.ContactNumber
		}
	}
	if req.ReplyToMessageID != "" {
		if i := snapshot.MessageIndex(req.ReplyToMessageID); i >= 0 {
			orig := snapshot.Messages[i]
			msg.ReplyTo = &domain.ReplyRef{
				MessageID:         orig.ID,
				Content:           orig.Content,
				Sender:            orig.Sender,
				ProviderMessageID: orig.ProviderMessageID,
				Raw:               orig.Raw,
			}
		}
	}
	return msg
}

func (s *Sender) dispatch(ctx context.Context, number string, agent domain.Agent, msg domain.Message) bool {
	switch msg.Type {
	case domain.TypeText:
		return s.dispatcher.SendText(ctx, number, s.wireBody(agent, msg.Content), s.replyTarget(msg))
	case domain.TypeContact:
		return s.dispatcher.SendContactCard(ctx, number, msg.FileName, msg.Content)
	default:
		return s.dispatcher.SendMedia(ctx, number, MediaPayload{
			Kind:     msg.Type,
			URL:      msg.MediaURL,
			MimeType: msg.MimeType,
			FileName: msg.FileName,
			Caption:  s.wireBody(agent, msg.Content),
		})
	}
}

// wireBody prefixes the outbound text with the agent's identity header so
// the customer knows who is speaking. Plain "Name" when the agent has no
// department, "Name - Department" otherwise.
func (s *Sender) wireBody(agent domain.Agent, content string) string {
	if agent.Name == "" {
		return content
	}
	header := agent.Name
	if dept, ok := s.departments.DepartmentByID(agent.DepartmentID); ok {
		header = fmt.Sprintf("%s - %s", agent.Name, dept.Name)
	}
	if content == "" {
		return ""
	}
	return fmt.Sprintf("*%s:*\n%s", header, content)
}

func (s *Sender) replyTarget(msg domain.Message) *ReplyTarget {
	if msg.ReplyTo == nil {
		return nil
	}
	id := msg.ReplyTo.ProviderMessageID
	if id == "" {
		id = msg.ReplyTo.MessageID
	}
	return &ReplyTarget{
		MessageID: id,
		Content:   msg.ReplyTo.Content,
		Sender:    msg.ReplyTo.Sender,
		Raw:       msg.ReplyTo.Raw,
	}
}

// maybeSendDepartmentPrompt sends the one-time department selection menu
// after a successful text send to a chat that nobody has routed yet. The
// sent flag is recorded only after the prompt actually goes out, so a
// failed prompt is retried on the next send.
func (s *Sender) maybeSendDepartmentPrompt(ctx context.Context, before, after *domain.Chat, number string) {
	if before.DepartmentID != "" || before.DepartmentSelectionSent {
		return
	}
	if before.AssignedTo != "" && before.Status != domain.ChatPending {
		return
	}
	departments := s.departments.Departments()
	if len(departments) == 0 {
		return
	}
	if !s.dispatcher.SendDepartmentPrompt(ctx, number, departments) {
		s.logger.WarnContext(ctx, "department prompt dispatch failed", "chat_id", after.ID)
		return
	}
	if _, err := s.manager.Apply(ctx, after.ID, NoteDepartmentPromptSent{}); err != nil {
		s.logger.ErrorContext(ctx, "failed to record department prompt", "chat_id", after.ID, "error", err)
	}
}
