// Package server exposes the provider webhook and the agent-facing HTTP
// API of the inbox.
package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"zapdesk/internal/config"
	"zapdesk/internal/logger"
)

// New builds the HTTP server with all routes registered.
func New(cfg config.ServerConfig, deps Deps) *http.Server {
	r := mux.NewRouter()
	r.Use(logger.Middleware(deps.Logger))

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/webhook", deps.handleWebhook).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/chats", deps.handleListChats).Methods(http.MethodGet)
	api.HandleFunc("/chats/{id}", deps.handleGetChat).Methods(http.MethodGet)
	api.HandleFunc("/chats/{id}", deps.handleDeleteChat).Methods(http.MethodDelete)
	api.HandleFunc("/chats/{id}/messages", deps.handleSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id}/claim", deps.handleClaim).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id}/transfer", deps.handleTransfer).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id}/close", deps.handleClose).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id}/tags", deps.handleAddTag).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id}/tags/{tag}", deps.handleRemoveTag).Methods(http.MethodDelete)
	api.HandleFunc("/chats/{id}/workflow", deps.handleStartWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id}/workflow", deps.handleCancelWorkflow).Methods(http.MethodDelete)
	api.HandleFunc("/chats/{id}/workflow/steps/{step_id}/toggle", deps.handleToggleStep).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id}/view", deps.handleView).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id}/suggestion", deps.handleSuggestion).Methods(http.MethodGet)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Shutdown stops the server gracefully within the given context.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
