package player

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Command is the tagged union the browser sends over /player, mirroring
// covau/src/server/player.rs's PlayerCommand.
type Command struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Message is the tagged union the server emits over /player, mirroring
// PlayerMessage.
type Message struct {
	Type    string `json:"type"`
	Content any    `json:"content,omitempty"`
}

const sendTimeout = 500 * time.Millisecond
const pollInterval = 300 * time.Millisecond

// backend is the subset of *Player the WS command loop depends on,
// broken out so tests can drive it with a fake instead of a real mpv
// subprocess.
type backend interface {
	Play(url string) error
	Pause() error
	Unpause() error
	SeekBy(t float64) error
	SeekToPerc(perc float64) error
	GetVolume() (float64, error)
	SetVolume(v float64) error
	Mute() error
	Unmute() error
	IsMuted() (bool, error)
	Duration() (float64, error)
	Progress() (float64, error)
	Close() error
}

// Server answers WS upgrades at /player, driving a single Player
// instance per connection.
type Server struct {
	newPlayer func() (backend, error)
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// NewServer builds a player Server; newPlayer is called once per WS
// connection to start a fresh mpv subprocess.
func NewServer(newPlayer func() (backend, error), logger *slog.Logger) *Server {
	return &Server{
		newPlayer: newPlayer,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// NewMpvServer builds a Server backed by real mpv subprocesses, one per
// WS connection, rooted at cacheDir for IPC socket files. This is the
// constructor callers outside this package use, since backend is
// unexported and New's *Player doesn't satisfy it covariantly at the
// call site.
func NewMpvServer(cacheDir string, logger *slog.Logger) *Server {
	return NewServer(func() (backend, error) {
		return New(context.Background(), cacheDir)
	}, logger)
}

// ServeWS upgrades the connection and runs the command loop and the
// progress-polling loop until the browser disconnects.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("player upgrade failed", "error", err)
		return
	}
	defer conn.Close() //nolint:errcheck

	p, err := s.newPlayer()
	if err != nil {
		s.logger.Error("starting player", "error", err)
		return
	}
	defer p.Close() //nolint:errcheck

	out := make(chan Message, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for msg := range out {
			conn.SetWriteDeadline(time.Now().Add(sendTimeout)) //nolint:errcheck
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}()

	stopPolling := make(chan struct{})
	go s.pollProgress(p, out, stopPolling)

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		s.handleCommand(p, cmd, out)
	}

	close(stopPolling)
	_ = p.Pause()
	close(out)
	<-done
}

// pollProgress implements the 300 ms progress loop (spec §6), with
// hysteresis so a resumed stream re-arms Finished instead of firing it
// once and going silent forever.
func (s *Server) pollProgress(p backend, out chan<- Message, stop <-chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	finished := false
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		prog, err := p.Progress()
		if err != nil {
			send(out, Message{Type: "Error", Content: err.Error()})
			continue
		}

		if 1.0-prog < 0.0001 {
			if !finished {
				finished = true
				send(out, Message{Type: "ProgressPerc", Content: 1.0})
				send(out, Message{Type: "Finished"})
			}
			continue
		}
		finished = false
		send(out, Message{Type: "ProgressPerc", Content: prog})
	}
}

func send(out chan<- Message, msg Message) {
	select {
	case out <- msg:
	case <-time.After(sendTimeout):
	}
}

func (s *Server) handleCommand(p backend, cmd Command, out chan<- Message) {
	var err error
	switch cmd.Type {
	case "Play":
		var url string
		if err = json.Unmarshal(cmd.Content, &url); err == nil {
			if err = p.Play(url); err == nil {
				send(out, Message{Type: "Playing", Content: url})
			}
		}
	case "Pause":
		if err = p.Pause(); err == nil {
			send(out, Message{Type: "Paused"})
		}
	case "Unpause":
		if err = p.Unpause(); err == nil {
			send(out, Message{Type: "Unpaused"})
		}
	case "SeekBy":
		var t float64
		if err = json.Unmarshal(cmd.Content, &t); err == nil {
			err = p.SeekBy(t)
		}
	case "SeekToPerc":
		var perc float64
		if err = json.Unmarshal(cmd.Content, &perc); err == nil {
			err = p.SeekToPerc(perc)
		}
	case "GetVolume":
		var v float64
		if v, err = p.GetVolume(); err == nil {
			send(out, Message{Type: "Volume", Content: v})
		}
	case "SetVolume":
		var v float64
		if err = json.Unmarshal(cmd.Content, &v); err == nil {
			if err = p.SetVolume(v); err == nil {
				send(out, Message{Type: "Volume", Content: v})
			}
		}
	case "Mute":
		if err = p.Mute(); err == nil {
			send(out, Message{Type: "Mute", Content: true})
		}
	case "Unmute":
		if err = p.Unmute(); err == nil {
			send(out, Message{Type: "Mute", Content: false})
		}
	case "IsMuted":
		var m bool
		if m, err = p.IsMuted(); err == nil {
			send(out, Message{Type: "Mute", Content: m})
		}
	case "GetDuration":
		var d float64
		if d, err = p.Duration(); err == nil {
			send(out, Message{Type: "Duration", Content: d})
		}
	default:
		return
	}
	if err != nil {
		send(out, Message{Type: "Error", Content: err.Error()})
	}
}
