// Package lifecycle implements AppLifecycle (spec §4.6): three
// browser-reported atomic booleans and a wait() that unblocks once the
// app has been hidden and unloaded continuously for 5 seconds. Grounded
// on original_source/src/server/routes.rs's AppState/InternalAppState.
package lifecycle

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/covau-dev/covau/internal/httpx"
)

// settleDelay is how long the app must stay hidden and unloaded before
// wait() returns, per spec §4.6.
const settleDelay = 5 * time.Second

// Message is the body POSTed to /app.
type Message string

const (
	Online     Message = "Online"
	Offline    Message = "Offline"
	Load       Message = "Load"
	Unload     Message = "Unload"
	Visible    Message = "Visible"
	NotVisible Message = "NotVisible"
)

// State is the process-global AppLifecycle singleton. It is
// deliberately a leaf (spec §9): every route holds a handle to one
// shared instance, constructed once at startup.
type State struct {
	online  atomic.Bool
	visible atomic.Bool
	loaded  atomic.Bool

	notify chan struct{}
}

// New returns a State with all three flags true, matching
// InternalAppState::new's defaults.
func New() *State {
	s := &State{notify: make(chan struct{}, 1)}
	s.online.Store(true)
	s.visible.Store(true)
	s.loaded.Store(true)
	return s
}

func (s *State) IsOnline() bool  { return s.online.Load() }
func (s *State) IsVisible() bool { return s.visible.Load() }
func (s *State) IsLoaded() bool  { return s.loaded.Load() }

func (s *State) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Apply records one browser-reported transition.
func (s *State) Apply(msg Message) {
	switch msg {
	case Online:
		s.online.Store(true)
	case Offline:
		s.online.Store(false)
	case Load:
		s.loaded.Store(true)
	case Unload:
		s.loaded.Store(false)
	case Visible:
		s.visible.Store(true)
	case NotVisible:
		s.visible.Store(false)
	}
	s.wake()
}

// Wait blocks until the app has been simultaneously !visible and
// !loaded for settleDelay continuously; a transition reported during that
// window restarts it. Used by main() to race a graceful shutdown when
// run_in_background is false.
func (s *State) Wait() {
	for {
		<-s.notify
		for !s.IsLoaded() && !s.IsVisible() {
			select {
			case <-s.notify:
			case <-time.After(settleDelay):
				return
			}
		}
	}
}

// ServeApp handles POST /app.
func (s *State) ServeApp(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	s.Apply(msg)
	w.WriteHeader(http.StatusNoContent)
}
