package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lucasmend/askdb/internal/core/domain"
	"github.com/lucasmend/askdb/internal/core/service"
)

type chatHandler struct {
	svc    *service.ChatService
	logger *slog.Logger
}

func newChatHandler(chat *service.ChatService, logger *slog.Logger) *chatHandler {
	return &chatHandler{svc: chat, logger: logger}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// chat handles POST /v1/chat. The reply carries the model's answer plus the
// generated SQL and structured results when a query ran.
func (h *chatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	reply, err := h.svc.Ask(r.Context(), req.SessionID, req.Question)
	if err != nil {
		if errors.Is(err, domain.ErrLLMUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "language model is not available, try again later")
			return
		}
		h.logger.ErrorContext(r.Context(), "chat request failed",
			slog.String("chat.session_id", req.SessionID),
			slog.String("error.message", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal error, check server logs")
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
