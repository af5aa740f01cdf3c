package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vibeproxy/vibeproxy-go/pkg/vibeproxy"
)

// StatusClientClosedRequest is reported when a request was cancelled.
const StatusClientClosedRequest = 499

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps err onto an HTTP status by its vibeproxy error kind.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{
		Error: err.Error(),
		Kind:  string(vibeproxy.KindOf(err)),
	})
}

func statusFor(err error) int {
	switch vibeproxy.KindOf(err) {
	case vibeproxy.KindCancelled:
		return StatusClientClosedRequest
	case vibeproxy.KindTimeout:
		return http.StatusGatewayTimeout
	case vibeproxy.KindConnectionRefused, vibeproxy.KindBackend:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
