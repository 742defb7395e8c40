package musicbrainz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestServeSearchArtists(t *testing.T) {
	upstream := newTestServer(t)
	defer upstream.Close()
	a := newTestAdapter(t, upstream.URL)

	mux := http.NewServeMux()
	a.Routes(mux)

	body, _ := json.Marshal("Radiohead")
	req := httptest.NewRequest(http.MethodPost, "/mbz/artists/search", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d", w.Result().StatusCode)
	}
	var results []ArtistSearchResult
	if err := json.NewDecoder(w.Result().Body).Decode(&results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestServeGetArtistNotFound(t *testing.T) {
	upstream := newTestServer(t)
	defer upstream.Close()
	a := newTestAdapter(t, upstream.URL)

	mux := http.NewServeMux()
	a.Routes(mux)

	body, _ := json.Marshal("not-found-id")
	req := httptest.NewRequest(http.MethodPost, "/mbz/artists/id", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Result().StatusCode)
	}
}
