package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vibeproxy/vibeproxy-go/internal/http/middleware"
	"github.com/vibeproxy/vibeproxy-go/pkg/vibeproxy"
	"golang.org/x/net/websocket"
)

// Websocket frame types.
const (
	FrameMessage = "message"
	FramePing    = "ping"
	FramePong    = "pong"
	FrameCancel  = "cancel"
	FrameText    = "text"
	FrameDone    = "done"
	FrameError   = "error"
)

// InboundFrame is what a websocket client sends.
type InboundFrame struct {
	Type         string   `json:"type"`
	Text         string   `json:"text,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Model        string   `json:"model,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
	Temperature  *float32 `json:"temperature,omitempty"`
	RequestID    string   `json:"request_id,omitempty"`
}

// OutboundFrame is what the gateway sends back. Every message turn ends with
// exactly one done or error frame.
type OutboundFrame struct {
	Type         string `json:"type"`
	Text         string `json:"text,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	Kind         string `json:"kind,omitempty"`
}

// Stream upgrades to a websocket bound to one session. Each message frame
// starts a streamed turn; cancel frames or POST /requests/{id}/cancel stop it.
func (h *GatewayHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	websocket.Server{
		Handshake: h.checkOrigin,
		Handler: func(conn *websocket.Conn) {
			h.serveStream(conn, r.Context(), sessionID)
		},
	}.ServeHTTP(w, r)
}

// AllowOrigins restricts websocket upgrades to the same origins CORS allows.
// With no origins configured every upgrade is accepted.
func (h *GatewayHandler) AllowOrigins(origins []string) {
	if len(origins) == 0 {
		h.originAllowed = nil
		return
	}
	h.originAllowed = middleware.AllowedOrigin(origins)
}

// checkOrigin rejects browser upgrades from origins outside the allow-list.
// Requests without an Origin header come from non-browser clients and pass.
func (h *GatewayHandler) checkOrigin(_ *websocket.Config, r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if h.originAllowed == nil || origin == "" {
		return nil
	}
	if !h.originAllowed(origin) {
		h.logger.Warn("gateway: websocket origin rejected", "origin", origin)
		return fmt.Errorf("origin %q not allowed", origin)
	}
	return nil
}

func (h *GatewayHandler) serveStream(conn *websocket.Conn, parent context.Context, sessionID string) {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	h.logger.Info("gateway: stream connection opened", "session_id", sessionID)

	for {
		var msg InboundFrame
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("gateway: stream connection closed", "session_id", sessionID, "error", err)
			return
		}

		switch msg.Type {
		case FramePing:
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: FramePong})
		case FrameCancel:
			if msg.RequestID != "" {
				h.registry.Cancel(msg.RequestID)
			}
		case FrameMessage:
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			if msg.RequestID == "" {
				msg.RequestID = uuid.NewString()
			}
			wg.Add(1)
			go func(msg InboundFrame) {
				defer wg.Done()
				h.streamTurn(ctx, conn, sessionID, msg)
			}(msg)
		}
	}
}

func (h *GatewayHandler) streamTurn(parent context.Context, conn *websocket.Conn, sessionID string, msg InboundFrame) {
	ctx, release := h.registry.Create(parent, msg.RequestID)
	defer release()

	send := func(frame OutboundFrame) {
		frame.RequestID = msg.RequestID
		_ = websocket.JSON.Send(conn, frame)
	}
	sendErr := func(err error) {
		send(OutboundFrame{Type: FrameError, Text: err.Error(), Kind: string(vibeproxy.KindOf(err))})
	}

	stream, err := h.sessions.SendStream(ctx, sessionID, msg.Text, h.sessionOptions(msg.SystemPrompt, vibeproxy.Options{
		Model:       msg.Model,
		MaxTokens:   msg.MaxTokens,
		Temperature: msg.Temperature,
	}))
	if err != nil {
		sendErr(err)
		return
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Backend ended without a finish reason.
				send(OutboundFrame{Type: FrameDone})
				return
			}
			h.logger.Warn("gateway: stream turn failed",
				"session_id", sessionID,
				"request_id", msg.RequestID,
				"error", err,
			)
			sendErr(err)
			return
		}
		switch chunk.Type {
		case vibeproxy.ChunkText:
			send(OutboundFrame{Type: FrameText, Text: chunk.Content})
		case vibeproxy.ChunkDone:
			send(OutboundFrame{Type: FrameDone, FinishReason: chunk.FinishReason})
			return
		}
	}
}
