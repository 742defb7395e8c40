package router

import (
	"encoding/json"
	"net/http"

	"github.com/covau-dev/covau/internal/httpx"
)

// FeCommand is the tagged union the UI can receive over `fec` or be
// poked with via POST /cli (spec §6). Content-bearing variants
// (Notify/NotifyError) carry a string; every other variant is a bare
// tag.
type FeCommand struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

var validFeCommands = map[string]bool{
	"Like": true, "Dislike": true, "Next": true, "Prev": true,
	"Pause": true, "Play": true, "Repeat": true, "ToggleMute": true,
	"TogglePlay": true, "BlacklistArtists": true, "RemoveAndNext": true,
	"SeekFwd": true, "SeekBkwd": true, "Notify": true, "NotifyError": true,
}

// serveCLI decodes a FeCommand and forwards it to the UI as an
// unsolicited fec notification (spec §6: "`/cli` ... poked by via
// /cli"), the HTTP-side twin of pushing the same command over the fec
// WS directly.
func (rt *Router) serveCLI(w http.ResponseWriter, r *http.Request) {
	var cmd FeCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if !validFeCommands[cmd.Type] {
		httpx.WriteError(w, http.StatusBadRequest, errUnknownFeCommand(cmd.Type))
		return
	}
	if err := rt.fec.Notify(r.Context(), cmd); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errUnknownFeCommand string

func (e errUnknownFeCommand) Error() string { return "router: unknown FeCommand type " + string(e) }
