// Package updater hosts the background task for stored Updater objects
// (musimanager-search / song-tube-search / musicbrainz sources). It is
// spawned once at startup and runs until the context is canceled; it
// does not read Updater objects or refresh the songs, albums, and
// artists they describe.
package updater

import (
	"context"
	"log/slog"

	"github.com/covau-dev/covau/internal/dispatch"
	"github.com/covau-dev/covau/internal/musicbrainz"
	"github.com/covau-dev/covau/internal/songsource"
)

// Manager owns the collaborators a refresh cycle needs to pull fresh
// metadata and persist it back through the dispatcher.
type Manager struct {
	songs      *songsource.Fac
	mbz        *musicbrainz.Adapter
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// New builds a Manager. Run must be called to start the background
// task.
func New(songs *songsource.Fac, mbz *musicbrainz.Adapter, d *dispatch.Dispatcher, logger *slog.Logger) *Manager {
	return &Manager{songs: songs, mbz: mbz, dispatcher: d, logger: logger}
}

// Run logs its start, blocks until ctx is canceled, and logs its stop.
//
// TODO: walk kind.Updater rows and re-run each one's UpdateSource
// against songsource/musicbrainz, writing results back through the
// dispatcher. Not yet implemented — no refresh cadence or per-source
// cursor design has been settled, so this currently just blocks on
// shutdown rather than spinning on an empty loop.
func (m *Manager) Run(ctx context.Context) {
	m.logger.Info("updater started")
	<-ctx.Done()
	m.logger.Info("updater stopped")
}
