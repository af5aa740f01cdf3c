package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/vibeproxy/vibeproxy-go/internal/observability/metrics"
	"github.com/vibeproxy/vibeproxy-go/pkg/logging"
	"github.com/vibeproxy/vibeproxy-go/pkg/vibeproxy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	modeSync   = "sync"
	modeStream = "stream"
)

var managerTracer = otel.Tracer("vibeproxy.pkg.conversation")

// Completer is the completion backend a Manager drives. *vibeproxy.Client
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, messages []vibeproxy.Message, opts vibeproxy.Options) (*vibeproxy.Result, error)
	CompleteStream(ctx context.Context, messages []vibeproxy.Message, opts vibeproxy.Options) (vibeproxy.Stream, error)
}

var _ Completer = (*vibeproxy.Client)(nil)

// Options extends the per-request completion options with the system prompt
// used to seed a new session.
type Options struct {
	vibeproxy.Options
	// SystemPrompt is only applied on a session's first turn.
	SystemPrompt string
}

// Reply is the outcome of one conversation turn.
type Reply struct {
	Content      string `json:"content"`
	FinishReason string `json:"finishReason"`
	MessageCount int    `json:"messageCount"`
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHistoryStore replaces the default in-memory store.
func WithHistoryStore(store HistoryStore) ManagerOption {
	return func(m *Manager) {
		if store != nil {
			m.store = store
		}
	}
}

func WithLogger(logger *logging.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(cm *metrics.CompletionMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = cm }
}

func WithTracer(t trace.Tracer) ManagerOption {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

// Manager keeps per-session message history and appends each completed turn
// to it. Turns for the same session run one at a time; different sessions
// proceed in parallel.
type Manager struct {
	completer Completer
	store     HistoryStore
	logger    *logging.Logger
	metrics   *metrics.CompletionMetrics
	tracer    trace.Tracer
	locks     *sessionLocks
}

func NewManager(completer Completer, opts ...ManagerOption) *Manager {
	if completer == nil {
		panic("conversation: completer cannot be nil")
	}
	m := &Manager{
		completer: completer,
		store:     NewMemoryHistory(),
		logger:    logging.Default(),
		tracer:    managerTracer,
		locks:     newSessionLocks(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send appends userText to the session, completes the whole history and
// stores the assistant reply. The user turn is persisted before the backend
// is called, so a failed completion still leaves it in history. Completion
// errors are returned unchanged.
func (m *Manager) Send(ctx context.Context, sessionID, userText string, opts Options) (*Reply, error) {
	ctx, span := m.tracer.Start(ctx, "conversation.send")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.session_id", sessionID))

	release, err := m.locks.acquire(ctx, sessionID)
	if err != nil {
		return nil, waitError(err)
	}
	defer release()

	history, err := m.appendUserTurn(ctx, sessionID, userText, opts.SystemPrompt)
	if err != nil {
		span.RecordError(err)
		m.metrics.ObserveTurn(modeSync, turnStatus(err))
		return nil, err
	}

	res, err := m.completer.Complete(ctx, history, opts.Options)
	if err != nil {
		span.RecordError(err)
		m.metrics.ObserveTurn(modeSync, turnStatus(err))
		m.logger.Warn("conversation: completion failed",
			"session_id", sessionID,
			"messages", len(history),
			"error", err,
		)
		return nil, err
	}

	history = append(history, vibeproxy.AssistantMessage(res.Content))
	if err := m.store.Save(context.WithoutCancel(ctx), sessionID, history); err != nil {
		span.RecordError(err)
		m.metrics.ObserveTurn(modeSync, turnStatus(err))
		return nil, err
	}

	m.metrics.ObserveTurn(modeSync, turnStatus(nil))
	span.SetAttributes(attribute.Int("conversation.messages", len(history)))
	m.logger.Debug("conversation: turn completed",
		"session_id", sessionID,
		"messages", len(history),
		"finish_reason", res.FinishReason,
	)
	return &Reply{
		Content:      res.Content,
		FinishReason: res.FinishReason,
		MessageCount: len(history),
	}, nil
}

// History returns a copy of the session's messages; an unknown session yields
// an empty list.
func (m *Manager) History(ctx context.Context, sessionID string) ([]vibeproxy.Message, error) {
	history, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return vibeproxy.CloneMessages(history), nil
}

// Clear removes the session. Clearing an unknown session is a no-op. It waits
// for an in-flight turn on the same session to finish.
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	release, err := m.locks.acquire(ctx, sessionID)
	if err != nil {
		return waitError(err)
	}
	defer release()

	if err := m.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	m.logger.Debug("conversation: session cleared", "session_id", sessionID)
	return nil
}

// appendUserTurn loads the session, seeds the system prompt on the first turn,
// appends the user message and persists the result.
func (m *Manager) appendUserTurn(ctx context.Context, sessionID, userText, systemPrompt string) ([]vibeproxy.Message, error) {
	history, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 && systemPrompt != "" {
		history = append(history, vibeproxy.SystemMessage(systemPrompt))
	}
	history = append(history, vibeproxy.UserMessage(userText))
	if err := m.store.Save(ctx, sessionID, history); err != nil {
		return nil, err
	}
	return history, nil
}

// waitError converts a context error seen while waiting for the session lock.
func waitError(err error) error {
	kind := vibeproxy.KindCancelled
	if errors.Is(err, context.DeadlineExceeded) {
		kind = vibeproxy.KindTimeout
	}
	return &vibeproxy.Error{
		Kind:    kind,
		Message: fmt.Sprintf("waiting for session: %v", err),
		Err:     err,
	}
}

func turnStatus(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := vibeproxy.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
