package conversation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/vibeproxy/vibeproxy-go/pkg/vibeproxy"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SendStream is the streaming form of Send. The user turn is stored before it
// returns. Text received from the stream is appended to the session as one
// assistant message when the stream finishes, fails or is closed, whichever
// happens first, so a partial reply is kept. The session stays locked until
// then, so callers must drain or Close the stream.
func (m *Manager) SendStream(ctx context.Context, sessionID, userText string, opts Options) (vibeproxy.Stream, error) {
	ctx, span := m.tracer.Start(ctx, "conversation.send_stream")
	span.SetAttributes(attribute.String("conversation.session_id", sessionID))

	release, err := m.locks.acquire(ctx, sessionID)
	if err != nil {
		span.End()
		return nil, waitError(err)
	}

	history, err := m.appendUserTurn(ctx, sessionID, userText, opts.SystemPrompt)
	if err != nil {
		release()
		span.RecordError(err)
		span.End()
		m.metrics.ObserveTurn(modeStream, turnStatus(err))
		return nil, err
	}

	inner, err := m.completer.CompleteStream(ctx, history, opts.Options)
	if err != nil {
		release()
		span.RecordError(err)
		span.End()
		m.metrics.ObserveTurn(modeStream, turnStatus(err))
		m.logger.Warn("conversation: stream open failed",
			"session_id", sessionID,
			"error", err,
		)
		return nil, err
	}

	return &sessionStream{
		inner:     inner,
		manager:   m,
		saveCtx:   context.WithoutCancel(ctx),
		span:      span,
		sessionID: sessionID,
		history:   history,
		release:   release,
	}, nil
}

// sessionStream forwards chunks from inner and commits the accumulated reply
// exactly once.
type sessionStream struct {
	inner     vibeproxy.Stream
	manager   *Manager
	saveCtx   context.Context
	span      trace.Span
	sessionID string
	history   []vibeproxy.Message
	release   func()

	mu        sync.Mutex
	reply     strings.Builder
	committed bool
	endErr    error // returned by Recv once committed
	once      sync.Once
	commitErr error
}

func (s *sessionStream) Recv() (vibeproxy.Chunk, error) {
	ch, err := s.inner.Recv()
	if err != nil {
		s.commit(err)
		return ch, err
	}

	// A chunk that arrives after Close committed the reply is dropped so the
	// caller never sees text missing from history.
	s.mu.Lock()
	if s.committed {
		endErr := s.endErr
		s.mu.Unlock()
		return vibeproxy.Chunk{}, endErr
	}
	if ch.Type == vibeproxy.ChunkText {
		s.reply.WriteString(ch.Content)
	}
	s.mu.Unlock()

	if ch.Type == vibeproxy.ChunkDone {
		s.commit(nil)
	}
	return ch, nil
}

func (s *sessionStream) Close() error {
	closeErr := s.inner.Close()
	s.commit(&vibeproxy.Error{Kind: vibeproxy.KindCancelled, Message: "stream closed before completion"})
	return errors.Join(closeErr, s.commitErr)
}

// commit stores the assistant turn and releases the session. cause is the
// reason the stream ended; io.EOF and nil are clean ends.
func (s *sessionStream) commit(cause error) {
	s.once.Do(func() {
		defer s.release()
		defer s.span.End()

		m := s.manager
		s.mu.Lock()
		content := s.reply.String()
		s.committed = true
		s.endErr = io.EOF
		if cause != nil && !errors.Is(cause, io.EOF) {
			s.endErr = cause
		}
		s.mu.Unlock()
		history := append(s.history, vibeproxy.AssistantMessage(content))
		if err := m.store.Save(s.saveCtx, s.sessionID, history); err != nil {
			s.commitErr = err
			s.span.RecordError(err)
			m.logger.Error("conversation: failed to commit streamed reply",
				"session_id", s.sessionID,
				"error", err,
			)
		}

		status := "ok"
		if cause != nil && !errors.Is(cause, io.EOF) {
			status = turnStatus(cause)
			s.span.RecordError(cause)
			m.logger.Warn("conversation: stream ended early",
				"session_id", s.sessionID,
				"partial_length", len(content),
				"error", cause,
			)
		}
		m.metrics.ObserveTurn(modeStream, status)
		s.span.SetAttributes(
			attribute.Int("conversation.messages", len(history)),
			attribute.String("conversation.status", status),
		)
	})
}
