package vibeproxy

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type streamFrame struct {
	content      string
	finishReason string
}

// fakeBackend is an OpenAI-compatible server covering the endpoints the
// client calls.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	requests []map[string]any

	modelHits atomic.Int32

	models     []map[string]any
	reply      string
	finish     string
	usage      map[string]int
	noChoices  bool
	frames     []streamFrame
	failStatus int
	failMsg    string
	// block, when set, holds the response open after the last frame until
	// the request is cancelled or block is closed.
	block chan struct{}
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{t: t, reply: "Hello", finish: "stop"}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", fb.handleChat)
	mux.HandleFunc("/v1/models", fb.handleModels)
	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) baseURL() string { return fb.srv.URL + "/v1" }

func (fb *fakeBackend) client(opts ...Option) *Client {
	return New(Config{BaseURL: fb.baseURL(), Model: "claude-sonnet-4-5-20250929"}, opts...)
}

func (fb *fakeBackend) lastRequest() map[string]any {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	require.NotEmpty(fb.t, fb.requests, "no request reached the backend")
	return fb.requests[len(fb.requests)-1]
}

func (fb *fakeBackend) handleChat(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fb.mu.Lock()
	fb.requests = append(fb.requests, body)
	fb.mu.Unlock()

	if fb.failStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fb.failStatus)
		fmt.Fprintf(w, `{"error":{"message":%q,"type":"server_error"}}`, fb.failMsg)
		return
	}

	if stream, _ := body["stream"].(bool); stream {
		fb.writeStream(w, r)
		return
	}

	resp := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"model":   body["model"],
		"choices": []any{},
	}
	if !fb.noChoices {
		resp["choices"] = []any{map[string]any{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": fb.reply},
			"finish_reason": fb.finish,
		}}
	}
	if fb.usage != nil {
		resp["usage"] = fb.usage
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (fb *fakeBackend) writeStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, f := range fb.frames {
		delta := map[string]any{}
		if f.content != "" {
			delta["content"] = f.content
		}
		var finish any
		if f.finishReason != "" {
			finish = f.finishReason
		}
		frame, _ := json.Marshal(map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion.chunk",
			"choices": []any{map[string]any{
				"index":         0,
				"delta":         delta,
				"finish_reason": finish,
			}},
		})
		fmt.Fprintf(w, "data: %s\n\n", frame)
		if flusher != nil {
			flusher.Flush()
		}
	}
	if fb.block != nil {
		select {
		case <-r.Context().Done():
		case <-fb.block:
		}
		return
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func (fb *fakeBackend) handleModels(w http.ResponseWriter, _ *http.Request) {
	fb.modelHits.Add(1)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": fb.models})
}

// refusedURL returns a base URL nothing is listening on.
func refusedURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr + "/v1"
}
