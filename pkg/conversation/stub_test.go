package conversation

import (
	"context"
	"io"
	"sync"

	"github.com/vibeproxy/vibeproxy-go/pkg/vibeproxy"
)

// stubCompleter records the messages it was called with and answers from
// canned data.
type stubCompleter struct {
	mu       sync.Mutex
	calls    [][]vibeproxy.Message
	reply    string
	err      error
	chunks   []vibeproxy.Chunk
	endErr   error
	openErr  error
	stream   vibeproxy.Stream // returned as is when set
	lastOpts vibeproxy.Options
}

func (s *stubCompleter) record(messages []vibeproxy.Message, opts vibeproxy.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, vibeproxy.CloneMessages(messages))
	s.lastOpts = opts
}

func (s *stubCompleter) Complete(_ context.Context, messages []vibeproxy.Message, opts vibeproxy.Options) (*vibeproxy.Result, error) {
	s.record(messages, opts)
	if s.err != nil {
		return nil, s.err
	}
	return &vibeproxy.Result{Content: s.reply, FinishReason: vibeproxy.FinishReasonStop, Model: "stub"}, nil
}

func (s *stubCompleter) CompleteStream(_ context.Context, messages []vibeproxy.Message, opts vibeproxy.Options) (vibeproxy.Stream, error) {
	s.record(messages, opts)
	if s.openErr != nil {
		return nil, s.openErr
	}
	if s.stream != nil {
		return s.stream, nil
	}
	end := s.endErr
	if end == nil {
		end = io.EOF
	}
	return &stubStream{chunks: append([]vibeproxy.Chunk(nil), s.chunks...), end: end}, nil
}

func (s *stubCompleter) lastCall() []vibeproxy.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

type stubStream struct {
	chunks []vibeproxy.Chunk
	end    error
	closed bool
}

func (s *stubStream) Recv() (vibeproxy.Chunk, error) {
	if len(s.chunks) == 0 {
		return vibeproxy.Chunk{}, s.end
	}
	ch := s.chunks[0]
	s.chunks = s.chunks[1:]
	return ch, nil
}

func (s *stubStream) Close() error {
	s.closed = true
	return nil
}

func textChunks(parts ...string) []vibeproxy.Chunk {
	out := make([]vibeproxy.Chunk, 0, len(parts))
	for _, p := range parts {
		out = append(out, vibeproxy.Chunk{Type: vibeproxy.ChunkText, Content: p})
	}
	return out
}

// gatedStream hands out one chunk per value sent on next, so a test can
// interleave Close with a Recv that is still waiting on the backend.
type gatedStream struct {
	next    chan vibeproxy.Chunk
	waiting chan struct{}
}

func newGatedStream() *gatedStream {
	return &gatedStream{next: make(chan vibeproxy.Chunk), waiting: make(chan struct{}, 1)}
}

func (s *gatedStream) Recv() (vibeproxy.Chunk, error) {
	s.waiting <- struct{}{}
	ch, ok := <-s.next
	if !ok {
		return vibeproxy.Chunk{}, io.EOF
	}
	return ch, nil
}

func (s *gatedStream) Close() error { return nil }
