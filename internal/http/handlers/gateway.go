package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vibeproxy/vibeproxy-go/pkg/conversation"
	"github.com/vibeproxy/vibeproxy-go/pkg/logging"
	"github.com/vibeproxy/vibeproxy-go/pkg/vibeproxy"
)

// Backend is the part of *vibeproxy.Client the gateway uses.
type Backend interface {
	conversation.Completer
	HealthCheck(ctx context.Context) vibeproxy.HealthStatus
	ListModels(ctx context.Context) ([]vibeproxy.Model, error)
}

var _ Backend = (*vibeproxy.Client)(nil)

// GatewayHandler exposes completions, sessions and cancellation over HTTP.
type GatewayHandler struct {
	backend      Backend
	sessions     *conversation.Manager
	registry     *vibeproxy.Registry
	systemPrompt string
	logger       *logging.Logger

	// originAllowed gates websocket upgrades; nil accepts every origin.
	originAllowed func(origin string) bool
}

func NewGatewayHandler(backend Backend, sessions *conversation.Manager, registry *vibeproxy.Registry, systemPrompt string, logger *logging.Logger) *GatewayHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if registry == nil {
		registry = vibeproxy.NewRegistry()
	}
	return &GatewayHandler{
		backend:      backend,
		sessions:     sessions,
		registry:     registry,
		systemPrompt: systemPrompt,
		logger:       logger,
	}
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Messages    []vibeproxy.Message `json:"messages"`
	Model       string              `json:"model,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature *float32            `json:"temperature,omitempty"`
	RequestID   string              `json:"request_id,omitempty"`
}

// ChatResponse wraps a completion result.
type ChatResponse struct {
	*vibeproxy.Result
	RequestID string `json:"request_id,omitempty"`
}

// SessionMessageRequest is the body of POST /sessions/{sessionID}/messages.
type SessionMessageRequest struct {
	Message      string   `json:"message"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Model        string   `json:"model,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
	Temperature  *float32 `json:"temperature,omitempty"`
	RequestID    string   `json:"request_id,omitempty"`
}

type SessionMessageResponse struct {
	*conversation.Reply
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id,omitempty"`
}

type historyResponse struct {
	SessionID string              `json:"session_id"`
	Messages  []vibeproxy.Message `json:"messages"`
}

type modelView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	OwnedBy  string `json:"owned_by"`
	Created  int64  `json:"created"`
	Provider string `json:"provider"`
}

type providerView struct {
	Provider string      `json:"provider"`
	Models   []modelView `json:"models"`
}

type modelsResponse struct {
	Count     int            `json:"count"`
	Providers []providerView `json:"providers"`
}

// Health reports backend reachability; 503 when VibeProxy is down.
func (h *GatewayHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.backend.HealthCheck(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// Models lists available models grouped by provider.
func (h *GatewayHandler) Models(w http.ResponseWriter, r *http.Request) {
	models, err := h.backend.ListModels(r.Context())
	if err != nil {
		h.logger.Warn("gateway: list models failed", "error", err)
		writeError(w, err)
		return
	}

	resp := modelsResponse{Count: len(models), Providers: []providerView{}}
	for _, group := range vibeproxy.GroupByProvider(models) {
		pv := providerView{Provider: group.Provider, Models: make([]modelView, 0, len(group.Models))}
		for _, m := range group.Models {
			pv.Models = append(pv.Models, modelView{
				ID:       m.ID,
				Name:     m.DisplayName(),
				OwnedBy:  m.OwnedBy,
				Created:  m.Created,
				Provider: group.Provider,
			})
		}
		resp.Providers = append(resp.Providers, pv)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Chat runs a stateless completion.
func (h *GatewayHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "messages are required", http.StatusBadRequest)
		return
	}

	ctx, done := h.track(r.Context(), req.RequestID)
	defer done()

	res, err := h.backend.Complete(ctx, req.Messages, vibeproxy.Options{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Result: res, RequestID: req.RequestID})
}

// SendMessage appends a user turn to a session and returns the reply.
func (h *GatewayHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req SessionMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	ctx, done := h.track(r.Context(), req.RequestID)
	defer done()

	reply, err := h.sessions.Send(ctx, sessionID, req.Message, h.sessionOptions(req.SystemPrompt, vibeproxy.Options{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionMessageResponse{Reply: reply, SessionID: sessionID, RequestID: req.RequestID})
}

// History returns a session's messages.
func (h *GatewayHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	msgs, err := h.sessions.History(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("gateway: failed to load history", "session_id", sessionID, "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{SessionID: sessionID, Messages: msgs})
}

// ClearSession drops a session's history.
func (h *GatewayHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.sessions.Clear(r.Context(), sessionID); err != nil {
		h.logger.Error("gateway: failed to clear session", "session_id", sessionID, "error", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelRequest aborts an in-flight request by id.
func (h *GatewayHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	cancelled := h.registry.Cancel(requestID)
	if cancelled {
		h.logger.Info("gateway: request cancelled", "request_id", requestID)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// track registers ctx under requestID when one was supplied.
func (h *GatewayHandler) track(ctx context.Context, requestID string) (context.Context, func()) {
	if requestID == "" {
		return ctx, func() {}
	}
	return h.registry.Create(ctx, requestID)
}

func (h *GatewayHandler) sessionOptions(systemPrompt string, opts vibeproxy.Options) conversation.Options {
	if systemPrompt == "" {
		systemPrompt = h.systemPrompt
	}
	return conversation.Options{Options: opts, SystemPrompt: systemPrompt}
}
