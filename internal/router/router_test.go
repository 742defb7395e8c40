package router

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/covau-dev/covau/internal/config"
	"github.com/covau-dev/covau/internal/database"
	"github.com/covau-dev/covau/internal/dispatch"
	"github.com/covau-dev/covau/internal/lifecycle"
	"github.com/covau-dev/covau/internal/musicbrainz"
	"github.com/covau-dev/covau/internal/rpc"
	"github.com/covau-dev/covau/internal/store"
	"github.com/covau-dev/covau/internal/stream"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared&_foreign_keys=ON")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}

	logger := testLogger()
	yti := rpc.NewFrontendClient(logger)
	fec := rpc.NewFrontendClient(logger)
	d := dispatch.New(store.New(db))
	cfg := config.Default()

	deps := Deps{
		ServerPort:  47429,
		Yti:         yti,
		Fec:         fec,
		Dispatcher:  d,
		Stream:      stream.New(cfg, yti, logger),
		Musicbrainz: musicbrainz.New(logger),
		Lifecycle:   lifecycle.New(),
		Logger:      logger,
	}
	return New(deps)
}

func TestServesIndexAsset(t *testing.T) {
	rt := newTestRouter(t)
	h := rt.Handler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d", w.Result().StatusCode)
	}
	body := w.Body.String()
	if strings.Contains(body, "%SERVER_PORT%") {
		t.Fatal("expected %SERVER_PORT% to be substituted")
	}
	if !strings.Contains(body, "47429") {
		t.Fatalf("expected substituted port in body, got %q", body)
	}
}

func TestServeAppNoContent(t *testing.T) {
	rt := newTestRouter(t)
	h := rt.Handler()

	req := httptest.NewRequest(http.MethodPost, "/app", strings.NewReader(`"Offline"`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", w.Result().StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	rt := newTestRouter(t)
	h := rt.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/serve/db/new_id", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", w.Result().StatusCode)
	}
	if w.Header().Get("Access-Control-Allow-Methods") != "GET,POST" {
		t.Fatalf("missing CORS methods header: %+v", w.Header())
	}
}

func TestServeDBNewID(t *testing.T) {
	rt := newTestRouter(t)
	h := rt.Handler()

	req := httptest.NewRequest(http.MethodGet, "/serve/db/new_id", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d", w.Result().StatusCode)
	}
	var id uint32
	if err := json.NewDecoder(w.Body).Decode(&id); err != nil {
		t.Fatal(err)
	}
}

func TestCLIRejectsUnknownCommand(t *testing.T) {
	rt := newTestRouter(t)
	h := rt.Handler()

	body, _ := json.Marshal(FeCommand{Type: "Frobnicate"})
	req := httptest.NewRequest(http.MethodPost, "/cli", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Result().StatusCode)
	}
}
