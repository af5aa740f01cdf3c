package vibeproxy

import (
	"context"
	"errors"
	"io"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ChunkType tags a streamed Chunk.
type ChunkType string

const (
	ChunkText ChunkType = "text"
	ChunkDone ChunkType = "done"
)

// Chunk is one unit of streamed output: partial text, or the terminal marker
// carrying the finish reason.
type Chunk struct {
	Type         ChunkType `json:"type"`
	Content      string    `json:"content,omitempty"`
	FinishReason string    `json:"finishReason,omitempty"`
}

// Stream yields chunks until io.EOF. A stream that completes normally yields
// exactly one ChunkDone before io.EOF; a cancelled or failed stream returns a
// *Error instead and never yields ChunkDone. Streams are single use and must
// be closed.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

// CompleteStream opens a streaming completion. The returned Stream checks ctx
// before every read.
func (c *Client) CompleteStream(ctx context.Context, messages []Message, opts Options) (Stream, error) {
	req := c.buildRequest(messages, opts)
	req.Stream = true

	ctx, span := c.tracer.Start(ctx, "vibeproxy.complete_stream")
	span.SetAttributes(
		attribute.String("vibeproxy.model", req.Model),
		attribute.Int("vibeproxy.messages", len(messages)),
	)

	start := c.now()
	sdk, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		cerr := classify(ctx, err)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, string(cerr.Kind))
		span.End()
		c.metrics.ObserveRequest(req.Model, modeStream, status(cerr), c.since(start))
		c.logger.Warn("vibeproxy: stream open failed",
			"model", req.Model,
			"kind", string(cerr.Kind),
			"error", cerr.Error(),
		)
		return nil, cerr
	}

	c.metrics.StreamOpened()
	s := &sdkStream{
		ctx:   ctx,
		recv:  sdk.Recv,
		close: func() { sdk.Close() },
	}
	s.onFinish = func(cerr *Error) {
		c.metrics.StreamClosed()
		c.metrics.ObserveRequest(req.Model, modeStream, status(cerr), c.since(start))
		finishSpan(span, cerr, s.chunks)
	}
	return s, nil
}

func finishSpan(span trace.Span, cerr *Error, chunks int) {
	span.SetAttributes(attribute.Int("vibeproxy.chunks", chunks))
	if cerr != nil {
		span.RecordError(cerr)
		span.SetStatus(codes.Error, string(cerr.Kind))
	}
	span.End()
}

// sdkStream adapts go-openai stream frames to Chunks.
type sdkStream struct {
	ctx      context.Context
	recv     func() (openai.ChatCompletionStreamResponse, error)
	close    func()
	onFinish func(*Error)

	mu      sync.Mutex
	pending []Chunk
	err     error // sticky terminal error, io.EOF once drained
	chunks  int
	once    sync.Once
}

func (s *sdkStream) Recv() (Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if len(s.pending) > 0 {
			ch := s.pending[0]
			s.pending = s.pending[1:]
			s.chunks++
			if ch.Type == ChunkDone {
				s.pending = nil
				s.err = io.EOF
				s.finish(nil)
			}
			return ch, nil
		}
		if s.err != nil {
			return Chunk{}, s.err
		}
		if err := s.ctx.Err(); err != nil {
			return Chunk{}, s.fail(err)
		}

		// Close may run while the read blocks; it closes the body to unblock it.
		s.mu.Unlock()
		frame, err := s.recv()
		s.mu.Lock()
		if s.err != nil {
			return Chunk{}, s.err
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Backend ended without a finish reason.
				s.err = io.EOF
				s.finish(nil)
				return Chunk{}, io.EOF
			}
			return Chunk{}, s.fail(err)
		}
		if len(frame.Choices) == 0 {
			continue
		}
		choice := frame.Choices[0]
		if choice.Delta.Content != "" {
			s.pending = append(s.pending, Chunk{Type: ChunkText, Content: choice.Delta.Content})
		}
		if choice.FinishReason != "" {
			s.pending = append(s.pending, Chunk{Type: ChunkDone, FinishReason: string(choice.FinishReason)})
		}
	}
}

func (s *sdkStream) fail(err error) error {
	cerr := classify(s.ctx, err)
	s.pending = nil
	s.err = cerr
	s.finish(cerr)
	return cerr
}

func (s *sdkStream) finish(cerr *Error) {
	s.once.Do(func() {
		if s.onFinish != nil {
			s.onFinish(cerr)
		}
	})
}

// Close releases the HTTP body. Closing before the stream finished counts as
// a cancellation.
func (s *sdkStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err == nil {
		cerr := &Error{Kind: KindCancelled, Message: "stream closed before completion"}
		s.err = cerr
		s.finish(cerr)
	}
	if s.close != nil {
		s.close()
		s.close = nil
	}
	return nil
}
