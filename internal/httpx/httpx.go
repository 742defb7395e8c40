// Package httpx holds the small set of response helpers shared by every
// HTTP-facing package (stream, musicbrainz, router): the unified error
// envelope spec §7 requires at every boundary, and JSON/error writers
// built on it.
package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorEnvelope is the `{message, stack_trace}` shape that crosses every
// boundary on failure (HTTP 500 body, WS Err frame), per spec §7.
type ErrorEnvelope struct {
	Message    string `json:"message"`
	StackTrace string `json:"stack_trace"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as an ErrorEnvelope with the given status.
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, ErrorEnvelope{
		Message:    err.Error(),
		StackTrace: fmt.Sprintf("%+v", err),
	})
}
