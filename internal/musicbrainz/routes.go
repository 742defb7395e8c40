package musicbrainz

import (
	"encoding/json"
	"net/http"

	"github.com/covau-dev/covau/internal/httpx"
)

// Routes mounts the /mbz/* search/id query surface (spec §6's
// `/mbz/*` POST row), grounded on original_source/src/server/db.rs's
// id_search/paged_search route builders: every route here takes a
// JSON body and replies with JSON, CORS-open, errors folded into the
// shared httpx envelope.
func (a *Adapter) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /mbz/artists/search", a.serveSearchArtists)
	mux.HandleFunc("POST /mbz/artists/id", a.serveGetArtist)
	mux.HandleFunc("POST /mbz/release_groups", a.serveReleaseGroups)
	mux.HandleFunc("POST /mbz/recordings", a.serveRecordings)
}

func (a *Adapter) statusFor(err error) int {
	switch err.(type) {
	case *ErrNotFound:
		return http.StatusNotFound
	case *ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *Adapter) serveSearchArtists(w http.ResponseWriter, r *http.Request) {
	var name string
	if err := json.NewDecoder(r.Body).Decode(&name); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	results, err := a.SearchArtist(r.Context(), name)
	if err != nil {
		httpx.WriteError(w, a.statusFor(err), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, results)
}

func (a *Adapter) serveGetArtist(w http.ResponseWriter, r *http.Request) {
	var mbid string
	if err := json.NewDecoder(r.Body).Decode(&mbid); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	artist, err := a.GetArtist(r.Context(), mbid)
	if err != nil {
		httpx.WriteError(w, a.statusFor(err), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, artist)
}

func (a *Adapter) serveReleaseGroups(w http.ResponseWriter, r *http.Request) {
	var mbid string
	if err := json.NewDecoder(r.Body).Decode(&mbid); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	groups, err := a.GetReleaseGroups(r.Context(), mbid)
	if err != nil {
		httpx.WriteError(w, a.statusFor(err), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, groups)
}

func (a *Adapter) serveRecordings(w http.ResponseWriter, r *http.Request) {
	var releaseID string
	if err := json.NewDecoder(r.Body).Decode(&releaseID); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	recordings, err := a.GetRecordings(r.Context(), releaseID)
	if err != nil {
		httpx.WriteError(w, a.statusFor(err), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, recordings)
}
