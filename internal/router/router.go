// Package router assembles the single route tree spec §4.7 describes:
// the RPC fabric's WS/new_id routes, the stream proxy, the musicbrainz
// adapter, the optional player WS, AppLifecycle's /app, /cli, and the
// embedded-asset fallback — wrapped in one middleware chain. Grounded
// on the teacher's internal/api.Router/RouterDeps (mux-per-route,
// deps-struct-holds-everything, middleware chain applied innermost to
// outermost).
package router

import (
	"log/slog"
	"net/http"

	"github.com/covau-dev/covau/internal/dispatch"
	"github.com/covau-dev/covau/internal/lifecycle"
	"github.com/covau-dev/covau/internal/musicbrainz"
	"github.com/covau-dev/covau/internal/player"
	"github.com/covau-dev/covau/internal/rpc"
	"github.com/covau-dev/covau/internal/stream"
)

// Deps bundles everything Router needs to mount its routes, mirroring
// the teacher's RouterDeps struct-of-everything pattern.
type Deps struct {
	ServerPort int

	Yti        *rpc.FrontendClient
	Fec        *rpc.FrontendClient
	Dispatcher *dispatch.Dispatcher

	Stream      *stream.Proxy
	Musicbrainz *musicbrainz.Adapter
	Lifecycle   *lifecycle.State

	// Player is optional (spec §6: "Player collaborator (optional)").
	// Nil disables the /player route entirely.
	Player *player.Server

	Logger *slog.Logger
}

// Router holds the constructed deps and builds the final http.Handler.
type Router struct {
	yti        *rpc.FrontendClient
	fec        *rpc.FrontendClient
	dbServer   *rpc.MessageServer
	stream     *stream.Proxy
	mbz        *musicbrainz.Adapter
	lifecycle  *lifecycle.State
	player     *player.Server
	logger     *slog.Logger
	serverPort int
}

// New builds a Router from deps, wiring the DB dispatcher into its own
// rpc.MessageServer (spec §4.2's "db" Pattern A route).
func New(deps Deps) *Router {
	return &Router{
		yti:        deps.Yti,
		fec:        deps.Fec,
		dbServer:   rpc.NewMessageServer(deps.Dispatcher.Handler(), deps.Logger),
		stream:     deps.Stream,
		mbz:        deps.Musicbrainz,
		lifecycle:  deps.Lifecycle,
		player:     deps.Player,
		logger:     deps.Logger,
		serverPort: deps.ServerPort,
	}
}

// Handler builds the full *http.ServeMux with every route registered
// and the middleware chain applied, matching the teacher's
// Router.Handler(ctx) shape (minus auth/CSRF, which spec's
// no-authentication non-goal excludes).
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /serve/yti", rt.yti.ServeWS)
	mux.HandleFunc("GET /serve/yti/new_id", rt.yti.ServeNewID)
	mux.HandleFunc("GET /serve/fec", rt.fec.ServeWS)
	mux.HandleFunc("GET /serve/fec/new_id", rt.fec.ServeNewID)
	mux.HandleFunc("GET /serve/db", rt.dbServer.ServeWS)
	mux.HandleFunc("GET /serve/db/new_id", rt.dbServer.ServeNewID)

	mux.HandleFunc("POST /cli", rt.serveCLI)
	mux.HandleFunc("POST /app", rt.lifecycle.ServeApp)

	mux.HandleFunc("POST /fetch", rt.stream.ServeFetch)
	mux.HandleFunc("GET /image", rt.stream.ServeImage)
	mux.HandleFunc("GET /stream/yt", rt.stream.ServeStreamYT)
	mux.HandleFunc("GET /stream/file", rt.stream.ServeStreamFile)
	mux.HandleFunc("POST /save_song", rt.stream.ServeSaveSong)
	mux.HandleFunc("POST /to_path", rt.stream.ServeToPath)

	rt.mbz.Routes(mux)

	if rt.player != nil {
		mux.HandleFunc("GET /player", rt.player.ServeWS)
	}

	assets := newAssetHost(rt.serverPort)
	mux.Handle("GET /", assets)

	var h http.Handler = mux
	h = logging(rt.logger)(h)
	h = securityHeaders(h)
	h = cors(h)
	return h
}
