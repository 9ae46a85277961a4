package actions

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/realty-ai-platform/internal/tenancy"
	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

// ChatService is the engine surface the HTTP handler needs.
type ChatService interface {
	HandleUtterance(ctx context.Context, u Utterance) (Response, error)
	ConfirmPending(ctx context.Context, sessionID string, id tenancy.Identity, accept bool) (Response, error)
	Pending(ctx context.Context, sessionID string, id tenancy.Identity) (Response, error)
	Suggestions(ctx context.Context, id tenancy.Identity) ([]Suggestion, error)
}

// Handler exposes the chat endpoints.
type Handler struct {
	engine ChatService
	logger *logging.Logger
}

func NewHandler(engine ChatService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// Routes mounts the handler's endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/messages", h.PostMessage)
	r.Post("/sessions/{sessionID}/confirm", h.Confirm)
	r.Get("/sessions/{sessionID}/pending", h.GetPending)
	r.Get("/suggestions", h.ListSuggestions)
}

type SuggestionsResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

type MessageRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type ConfirmRequest struct {
	Accept bool `json:"accept"`
}

// PostMessage handles POST /v1/chat/messages
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing agent identity", http.StatusUnauthorized)
		return
	}
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Text) == "" {
		http.Error(w, "session_id and text are required", http.StatusBadRequest)
		return
	}

	resp, err := h.engine.HandleUtterance(r.Context(), Utterance{
		Text:       req.Text,
		SessionID:  req.SessionID,
		Identity:   id,
		ReceivedAt: time.Now().UTC(),
	})
	h.write(w, r, resp, err)
}

// Confirm handles POST /v1/chat/sessions/{sessionID}/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing agent identity", http.StatusUnauthorized)
		return
	}
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := h.engine.ConfirmPending(r.Context(), chi.URLParam(r, "sessionID"), id, req.Accept)
	h.write(w, r, resp, err)
}

// GetPending handles GET /v1/chat/sessions/{sessionID}/pending
func (h *Handler) GetPending(w http.ResponseWriter, r *http.Request) {
	id, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing agent identity", http.StatusUnauthorized)
		return
	}
	resp, err := h.engine.Pending(r.Context(), chi.URLParam(r, "sessionID"), id)
	h.write(w, r, resp, err)
}

// ListSuggestions handles GET /v1/chat/suggestions
func (h *Handler) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing agent identity", http.StatusUnauthorized)
		return
	}
	suggestions, err := h.engine.Suggestions(r.Context(), id)
	if err != nil {
		h.logger.Error("list suggestions failed", "agent_id", id.AgentID, "error", err)
		http.Error(w, "failed to list suggestions", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(SuggestionsResponse{Suggestions: suggestions})
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, resp Response, err error) {
	status := http.StatusOK
	if err != nil {
		h.logger.Error("chat turn failed", "path", r.URL.Path, "error", err)
		if resp.Kind == "" {
			resp = Response{Kind: KindError, Message: "Something went wrong. Please try again."}
		}
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
