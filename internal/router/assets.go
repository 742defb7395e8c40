package router

import (
	"bytes"
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
)

// dist holds the built UI, embedded into the binary at compile time
// (spec §4.7: "embedded assets are served from an in-binary archive").
// No pack library does in-binary asset embedding differently from
// stdlib's embed.FS — it is the idiomatic mechanism for this and has no
// third-party substitute, so this is the one place the router reaches
// for stdlib by necessity rather than preference.
//
//go:embed dist
var dist embed.FS

const distRoot = "dist"

// assetHost serves the embedded UI, substituting the `%SERVER_PORT%`
// placeholder in text assets at serve time (spec §9: "same binary runs
// on a configured port") and serving `.wasm` verbatim.
type assetHost struct {
	port int
}

func newAssetHost(port int) *assetHost {
	return &assetHost{port: port}
}

// ServeHTTP answers GET /* with the matching embedded asset, falling
// back to index.html for client-side routing (spec §6's
// "embedded asset or index.html").
func (h *assetHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if p == "" || p == "." {
		p = "index.html"
	}

	data, err := fs.ReadFile(dist, path.Join(distRoot, p))
	if err != nil {
		p = "index.html"
		data, err = fs.ReadFile(dist, path.Join(distRoot, p))
		if err != nil {
			http.NotFound(w, r)
			return
		}
	}

	if strings.HasSuffix(p, ".wasm") {
		w.Header().Set("Content-Type", "application/wasm")
		_, _ = w.Write(data)
		return
	}

	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	data = bytes.ReplaceAll(data, []byte("%SERVER_PORT%"), []byte(strconv.Itoa(h.port)))
	w.Write(data) //nolint:errcheck
}
