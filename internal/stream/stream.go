// Package stream implements StreamProxy (spec §4.4): the CORS-bypassing
// fetch proxy, range-serving YouTube and local-file audio streams, the
// image proxy, and the save-song/to-path endpoints. Grounded on
// original_source/src/server/routes.rs's cors_proxy_route/stream_yt/
// stream_file/image_route/save_song_route/source_path_route.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/covau-dev/covau/internal/config"
	"github.com/covau-dev/covau/internal/filesystem"
	"github.com/covau-dev/covau/internal/httpx"
	"github.com/covau-dev/covau/internal/rpc"
	"github.com/covau-dev/covau/internal/songsource"
)

// ErrRangeUnsatisfiable is returned by parseRange when the requested
// start exceeds the content's end, per spec §7's Streaming error class.
var ErrRangeUnsatisfiable = errors.New("range unsatisfiable")

// chunkSize is the fixed byte size /stream/yt splits a requested range
// into before asking the browser to fetch each piece (spec §4.4).
const chunkSize = 1_000_000

// outboundTimeout bounds the /fetch proxy's outgoing HTTP call (spec
// §5: "outbound HTTP client uses a 5-minute request timeout").
const outboundTimeout = 5 * time.Minute

// Proxy serves every StreamProxy route. yti is the Pattern B
// FrontendClient used to pull YouTube audio bytes from the browser.
type Proxy struct {
	client *http.Client
	cfg    *config.Config
	yti    *rpc.FrontendClient
	logger *slog.Logger
}

func New(cfg *config.Config, yti *rpc.FrontendClient, logger *slog.Logger) *Proxy {
	return &Proxy{
		client: &http.Client{Timeout: outboundTimeout},
		cfg:    cfg,
		yti:    yti,
		logger: logger,
	}
}

// fetchRequest is the /fetch proxy envelope.
type fetchRequest struct {
	URL     string  `json:"url"`
	Body    *string `json:"body,omitempty"`
	Headers string  `json:"headers"` // JSON-encoded []headerPair
	Method  string  `json:"method"`
}

type headerPair [2]string

// ServeFetch proxies an arbitrary HTTP request for the browser so it
// can sidestep CORS; an empty POST body is treated as a preflight.
func (p *Proxy) ServeFetch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if len(raw) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req fetchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, fmt.Errorf("decoding fetch request: %w", err))
		return
	}
	var pairs []headerPair
	if err := json.Unmarshal([]byte(req.Headers), &pairs); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, fmt.Errorf("decoding fetch headers: %w", err))
		return
	}

	var body io.Reader
	if req.Body != nil {
		body = strings.NewReader(*req.Body)
	}
	outReq, err := http.NewRequestWithContext(r.Context(), req.Method, req.URL, body)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, fmt.Errorf("building proxied request: %w", err))
		return
	}
	for _, kv := range pairs {
		outReq.Header.Add(kv[0], kv[1])
	}

	resp, err := p.client.Do(outReq)
	if err != nil {
		httpx.WriteError(w, http.StatusBadGateway, fmt.Errorf("proxied request failed: %w", err))
		return
	}
	defer resp.Body.Close() //nolint:errcheck

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// parseRange decodes a `Range: bytes=S-E?` header against a resource of
// the given size, defaulting to the full resource when absent and to
// size-1 when E is omitted.
func parseRange(header string, size uint64) (start, end uint64, err error) {
	if header == "" {
		return 0, size - 1, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range unit in %q", header)
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed range %q", header)
	}
	start, err = strconv.ParseUint(startStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed range start in %q: %w", header, err)
	}
	end = size - 1
	if endStr != "" {
		end, err = strconv.ParseUint(endStr, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("malformed range end in %q: %w", header, err)
		}
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w: start %d > end %d", ErrRangeUnsatisfiable, start, end)
	}
	return start, end, nil
}

// chunkBounds splits the inclusive range [s, e] into pieces aligned to
// absolute chunkSize boundaries (0, 1_000_000, 2_000_000, ...), not to s
// itself — spec §8's worked example for Range: bytes=500000-2500000
// fetches chunks of size 500000, 1000000, 500001, which only falls out
// of boundaries fixed at multiples of chunkSize. The first and last
// pieces may be shorter than chunkSize; interior pieces are exactly
// chunkSize.
func chunkBounds(s, e uint64) [][2]uint64 {
	var bounds [][2]uint64
	for cur := s; cur <= e; {
		next := (cur/chunkSize + 1) * chunkSize
		if next > e+1 {
			next = e + 1
		}
		bounds = append(bounds, [2]uint64{cur, next - 1})
		cur = next
	}
	return bounds
}

// ServeStreamYT serves a 206 range response for a remote YouTube track,
// fetching each fixed-size chunk from the browser over the yti
// FrontendClient and streaming the concatenation back.
func (p *Proxy) ServeStreamYT(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	id := r.URL.Query().Get("id")
	sizeStr := r.URL.Query().Get("size")
	size, err := strconv.ParseUint(sizeStr, 10, 64)
	if err != nil || id == "" {
		httpx.WriteError(w, http.StatusBadRequest, fmt.Errorf("missing or invalid id/size"))
		return
	}

	s, e, err := parseRange(r.Header.Get("Range"), size)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrRangeUnsatisfiable) {
			status = http.StatusRequestedRangeNotSatisfiable
		}
		httpx.WriteError(w, status, err)
		return
	}

	var body bytes.Buffer
	for _, bounds := range chunkBounds(s, e) {
		data, err := songsource.FetchChunk(r.Context(), p.yti, id, bounds[0], bounds[1])
		if err != nil {
			httpx.WriteError(w, http.StatusBadGateway, err)
			return
		}
		body.Write(data)
	}

	w.Header().Set("Content-Type", "video/webm")
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", s, e, size))
	w.Header().Set("Content-Length", strconv.FormatUint(e+1-s, 10))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "max-age=0")
	w.WriteHeader(http.StatusPartialContent)
	_, _ = w.Write(body.Bytes())
}

// ServeStreamFile serves a 206 range response for a locally stored
// audio file, resolved from the query's SourcePath.
func (p *Proxy) ServeStreamFile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sp := config.SourcePath{
		Typ:  config.SourcePathType(r.URL.Query().Get("typ")),
		Path: r.URL.Query().Get("path"),
	}
	abs, err := p.cfg.ToPath(sp)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}

	data, err := os.ReadFile(abs) //nolint:gosec // G304: path resolved through the configured source-path table
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err)
		return
	}
	total := uint64(len(data))

	s, e, err := parseRange(r.Header.Get("Range"), total)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrRangeUnsatisfiable) {
			status = http.StatusRequestedRangeNotSatisfiable
		}
		httpx.WriteError(w, status, err)
		return
	}

	mimeType := mime.TypeByExtension(filepath.Ext(abs))
	if mimeType == "" {
		httpx.WriteError(w, http.StatusInternalServerError, fmt.Errorf("could not figure out mime type of %s", abs))
		return
	}
	if mimeType == "audio/m4a" {
		mimeType = "audio/aac"
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", s, e, total))
	w.Header().Set("Content-Length", strconv.FormatUint(e+1-s, 10))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "max-age=0")
	w.WriteHeader(http.StatusPartialContent)
	_, _ = w.Write(data[s : e+1])
}

// imageRequestHeaders is the whitelist of request headers forwarded to
// the upstream image host.
var imageRequestHeaders = []string{"Accept", "Accept-Encoding", "Accept-Language", "Connection", "DNT", "User-Agent"}

// imageResponseHeaders is the whitelist of response headers copied back.
var imageResponseHeaders = []string{"Accept-Ranges", "Age", "Cache-Control", "Alt-Svc", "Content-Length", "Content-Type", "Server"}

// ServeImage proxies a GET for src so the browser can load
// cross-origin images without a CORS violation.
func (p *Proxy) ServeImage(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	if src == "" {
		httpx.WriteError(w, http.StatusBadRequest, fmt.Errorf("missing src"))
		return
	}

	outReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, src, nil)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	for _, h := range imageRequestHeaders {
		if v := r.Header.Get(h); v != "" {
			outReq.Header.Set(h, v)
		}
	}

	resp, err := p.client.Do(outReq)
	if err != nil {
		httpx.WriteError(w, http.StatusBadGateway, err)
		return
	}
	defer resp.Body.Close() //nolint:errcheck

	for _, h := range imageResponseHeaders {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// fetchFullSong uses chunkSize independently of a known total length: it
// requests successive chunkSize-sized ranges starting at 0 until the
// browser returns one shorter than requested, signaling end of stream. This is
// a necessary departure from /stream/yt's bounds-known chunking, since
// /save_song is never given a size up front.
func (p *Proxy) fetchFullSong(ctx context.Context, id string) ([]byte, error) {
	var out bytes.Buffer
	cur := uint64(0)
	for {
		data, err := songsource.FetchChunk(ctx, p.yti, id, cur, cur+chunkSize-1)
		if err != nil {
			return nil, err
		}
		out.Write(data)
		if uint64(len(data)) < chunkSize {
			return out.Bytes(), nil
		}
		cur += chunkSize
	}
}

// ServeSaveSong downloads a track's full audio and writes it to
// music_path/<id>.webm, failing if the file already exists.
func (p *Proxy) ServeSaveSong(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}

	name := req.ID + ".webm"
	dest := filepath.Join(p.cfg.MusicPath, name)
	if _, err := os.Stat(dest); err == nil {
		httpx.WriteError(w, http.StatusConflict, fmt.Errorf("%s already exists", dest))
		return
	} else if !os.IsNotExist(err) {
		httpx.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	data, err := p.fetchFullSong(r.Context(), req.ID)
	if err != nil {
		httpx.WriteError(w, http.StatusBadGateway, err)
		return
	}
	if err := filesystem.WriteReaderAtomic(dest, bytes.NewReader(data), 0o644); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, config.SourcePath{Typ: config.SourcePathCovauMusic, Path: name})
}

// ServeToPath resolves a SourcePath to its absolute filesystem path.
func (p *Proxy) ServeToPath(w http.ResponseWriter, r *http.Request) {
	var sp config.SourcePath
	if err := json.NewDecoder(r.Body).Decode(&sp); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	abs, err := p.cfg.ToPath(sp)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, abs)
}
