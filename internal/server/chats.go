package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"zapdesk/internal/chat"
	"zapdesk/internal/domain"
)

type sendMessageRequest struct {
	AgentID          string `json:"agent_id"`
	Content          string `json:"content"`
	Type             string `json:"type"`
	MediaURL         string `json:"media_url"`
	MimeType         string `json:"mime_type"`
	FileName         string `json:"file_name"`
	ReplyToMessageID string `json:"reply_to_message_id"`
	ContactName      string `json:"contact_name"`
	ContactNumber    string `json:"contact_number"`
}

type agentRequest struct {
	AgentID string `json:"agent_id"`
}

type transferRequest struct {
	DepartmentID string `json:"department_id"`
}

type closeRequest struct {
	WithSurvey bool `json:"with_survey"`
}

type tagRequest struct {
	Tag string `json:"tag"`
}

type workflowRequest struct {
	WorkflowID string `json:"workflow_id"`
}

// handleListChats returns the chats visible to an agent on one tab,
// optionally narrowed by a search term.
func (d *Deps) handleListChats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	agentID := q.Get("agent_id")
	if agentID == "" {
		badRequest(w, "agent_id is required")
		return
	}
	if _, ok := d.Agents.AgentByID(agentID); !ok {
		badRequest(w, "unknown agent")
		return
	}

	tabParam := q.Get("tab")
	if tabParam == "" {
		tabParam = string(chat.TabTodo)
	}
	tab, ok := chat.ParseTab(tabParam)
	if !ok {
		badRequest(w, "unknown tab")
		return
	}

	chats := chat.FilterChats(d.Manager.List(), agentID, tab, q.Get("search"))
	writeJSON(w, http.StatusOK, map[string]any{"chats": chats, "count": len(chats)})
}

func (d *Deps) handleGetChat(w http.ResponseWriter, r *http.Request) {
	snapshot, err := d.Manager.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (d *Deps) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := d.Manager.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleSendMessage runs the optimistic send pipeline. On success the
// appended message is returned; on dispatch failure the message stays in
// the history marked failed and the error maps to 502.
func (d *Deps) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.AgentID == "" {
		badRequest(w, "agent_id is required")
		return
	}

	msgType := domain.TypeText
	if req.Type != "" {
		msgType = domain.MessageType(req.Type)
	}
	msg, err := d.Sender.Send(r.Context(), chat.SendRequest{
		ChatID:           mux.Vars(r)["id"],
		AgentID:          req.AgentID,
		Content:          req.Content,
		Type:             msgType,
		MediaURL:         req.MediaURL,
		MimeType:         req.MimeType,
		FileName:         req.FileName,
		ReplyToMessageID: req.ReplyToMessageID,
		ContactName:      req.ContactName,
		ContactNumber:    req.ContactNumber,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// handleClaim assigns the chat to the requesting agent. A chat already
// claimed by someone else is locked unless the requester is an admin.
func (d *Deps) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	agent, ok := d.Agents.AgentByID(req.AgentID)
	if !ok {
		badRequest(w, "unknown agent")
		return
	}

	chatID := mux.Vars(r)["id"]
	snapshot, err := d.Manager.Get(chatID)
	if err != nil {
		writeError(w, err)
		return
	}
	if snapshot.AssignedTo != "" && snapshot.AssignedTo != agent.ID && !agent.Admin {
		writeError(w, chat.ErrChatLocked)
		return
	}

	updated, err := d.Manager.Apply(r.Context(), chatID, chat.Assign{AgentID: agent.ID, AgentName: agent.Name})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (d *Deps) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	updated, err := d.Manager.Apply(r.Context(), mux.Vars(r)["id"], chat.Transfer{DepartmentID: req.DepartmentID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (d *Deps) handleClose(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if r.Body != nil {
		// An empty body closes without a survey.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	updated, err := d.Manager.Apply(r.Context(), mux.Vars(r)["id"], chat.Close{WithSurvey: req.WithSurvey})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (d *Deps) handleAddTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	tag := strings.TrimSpace(req.Tag)
	if tag == "" {
		badRequest(w, "tag is required")
		return
	}
	updated, err := d.Manager.Apply(r.Context(), mux.Vars(r)["id"], chat.AddTag{Tag: tag})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (d *Deps) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	updated, err := d.Manager.Apply(r.Context(), vars["id"], chat.RemoveTag{Tag: vars["tag"]})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (d *Deps) handleStartWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	updated, err := d.Manager.Apply(r.Context(), mux.Vars(r)["id"], chat.StartWorkflow{WorkflowID: req.WorkflowID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (d *Deps) handleCancelWorkflow(w http.ResponseWriter, r *http.Request) {
	updated, err := d.Manager.Apply(r.Context(), mux.Vars(r)["id"], chat.CancelWorkflow{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (d *Deps) handleToggleStep(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	updated, err := d.Manager.Apply(r.Context(), vars["id"], chat.ToggleWorkflowStep{StepID: vars["step_id"]})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleView marks the chat as the agent's actively viewed conversation
// and clears its unread counter.
func (d *Deps) handleView(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if _, ok := d.Agents.AgentByID(req.AgentID); !ok {
		badRequest(w, "unknown agent")
		return
	}
	updated, err := d.Manager.SetActiveChat(r.Context(), req.AgentID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (d *Deps) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	snapshot, err := d.Manager.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"suggestion": d.Suggester.SuggestReply(r.Context(), snapshot)})
}
