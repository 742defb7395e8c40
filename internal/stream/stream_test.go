package stream

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/covau-dev/covau/internal/config"
	"github.com/covau-dev/covau/internal/rpc"
	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestParseRangeAbsent(t *testing.T) {
	s, e, err := parseRange("", 1000)
	if err != nil || s != 0 || e != 999 {
		t.Fatalf("s=%d e=%d err=%v", s, e, err)
	}
}

func TestParseRangeOpenEnded(t *testing.T) {
	s, e, err := parseRange("bytes=500-", 1000)
	if err != nil || s != 500 || e != 999 {
		t.Fatalf("s=%d e=%d err=%v", s, e, err)
	}
}

func TestParseRangeExplicit(t *testing.T) {
	s, e, err := parseRange("bytes=100-199", 1000)
	if err != nil || s != 100 || e != 199 {
		t.Fatalf("s=%d e=%d err=%v", s, e, err)
	}
}

func TestParseRangeUnsatisfiable(t *testing.T) {
	_, _, err := parseRange("bytes=900-100", 1000)
	if !errors.Is(err, ErrRangeUnsatisfiable) {
		t.Fatalf("err = %v, want ErrRangeUnsatisfiable", err)
	}
}

// TestChunkBoundsMatchesSpecExample reproduces spec §8's range-request
// scenario: a 3_200_000-byte stream requested with bytes=500000-2500000
// splits into chunks of size 500000, 1000000, 500001.
func TestChunkBoundsMatchesSpecExample(t *testing.T) {
	bounds := chunkBounds(500000, 2500000)
	wantSizes := []uint64{500000, 1000000, 500001}
	if len(bounds) != len(wantSizes) {
		t.Fatalf("got %d chunks, want %d: %v", len(bounds), len(wantSizes), bounds)
	}
	for i, b := range bounds {
		size := b[1] + 1 - b[0]
		if size != wantSizes[i] {
			t.Fatalf("chunk %d size = %d, want %d", i, size, wantSizes[i])
		}
	}
	if bounds[0][0] != 500000 || bounds[len(bounds)-1][1] != 2500000 {
		t.Fatalf("bounds do not cover the requested range: %v", bounds)
	}
}

func TestChunkBoundsExactMultiple(t *testing.T) {
	bounds := chunkBounds(0, 1999999)
	if len(bounds) != 2 {
		t.Fatalf("got %d chunks, want 2: %v", bounds, len(bounds))
	}
}

func TestServeStreamFileRange(t *testing.T) {
	dir := t.TempDir()
	content := []byte(strings.Repeat("a", 1000))
	if err := os.WriteFile(filepath.Join(dir, "song.m4a"), content, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{MusicPath: dir}
	p := New(cfg, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/stream/file?typ=CovauMusic&path=song.m4a", nil)
	req.Header.Set("Range", "bytes=10-19")
	w := httptest.NewRecorder()
	p.ServeStreamFile(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "audio/aac" {
		t.Fatalf("content-type = %q, want audio/aac", got)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes 10-19/1000" {
		t.Fatalf("content-range = %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != strings.Repeat("a", 10) {
		t.Fatalf("body = %q", body)
	}
}

func TestServeToPath(t *testing.T) {
	cfg := &config.Config{MusicPath: "/music"}
	p := New(cfg, nil, testLogger())

	body, _ := json.Marshal(config.SourcePath{Typ: config.SourcePathCovauMusic, Path: "abc.webm"})
	req := httptest.NewRequest(http.MethodPost, "/to_path", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	p.ServeToPath(w, req)

	var got string
	if err := json.NewDecoder(w.Result().Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join("/music", "abc.webm") {
		t.Fatalf("got %q", got)
	}
}

func TestServeSaveSongRejectsExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "abc.webm"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{MusicPath: dir}
	p := New(cfg, nil, testLogger())

	body, _ := json.Marshal(map[string]string{"id": "abc"})
	req := httptest.NewRequest(http.MethodPost, "/save_song", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	p.ServeSaveSong(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Result().StatusCode)
	}
}

// fakeYTIBrowser answers FetchChunk requests with deterministic bytes,
// driving the far end of a FrontendClient connection like rpc's own
// tests do.
func fakeYTIBrowser(t *testing.T, fc *rpc.FrontendClient, total int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(fc.ServeWS))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		for {
			var env rpc.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			var req struct {
				Start uint64 `json:"start"`
				End   uint64 `json:"end"`
			}
			_ = json.Unmarshal(env.Content, &req)

			size := int(req.End+1-req.Start)
			chunk := make([]byte, size)
			for i := range chunk {
				chunk[i] = 'x'
			}
			data, _ := json.Marshal(chunk)
			many := struct {
				Data json.RawMessage `json:"data"`
				Done bool            `json:"done"`
				Index uint32         `json:"index"`
			}{Data: data, Done: true, Index: 0}
			content, _ := json.Marshal(many)
			_ = conn.WriteJSON(rpc.Envelope{ID: env.ID, Type: rpc.TypeOkMany, Content: content})
		}
	}()
}

func TestServeStreamYT(t *testing.T) {
	fc := rpc.NewFrontendClient(testLogger())
	fakeYTIBrowser(t, fc, 100)

	cfg := &config.Config{}
	p := New(cfg, fc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/stream/yt?id=abc&size=100", nil)
	req.Header.Set("Range", "bytes=0-99")
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		p.ServeStreamYT(w, req)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}

	resp := w.Result()
	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 100 {
		t.Fatalf("len(body) = %d, want 100", len(body))
	}
}
