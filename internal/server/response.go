package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"zapdesk/internal/chat"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors to HTTP statuses. Error text is passed
// through as-is; the send-path sentinels already carry operator-facing
// wording.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chat.ErrChatNotFound), errors.Is(err, chat.ErrMessageNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chat.ErrChatLocked):
		status = http.StatusForbidden
	case errors.Is(err, chat.ErrNoValidNumber),
		errors.Is(err, chat.ErrChatClosed),
		errors.Is(err, chat.ErrUnknownDepartment),
		errors.Is(err, chat.ErrUnknownWorkflow),
		errors.Is(err, chat.ErrUnknownWorkflowStep),
		errors.Is(err, chat.ErrNoActiveWorkflow),
		errors.Is(err, chat.ErrInvalidEvent):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, chat.ErrDispatchFailed):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
