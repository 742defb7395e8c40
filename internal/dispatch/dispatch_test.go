package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/covau-dev/covau/internal/database"
	"github.com/covau-dev/covau/internal/kind"
	"github.com/covau-dev/covau/internal/store"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
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
	return New(store.New(db))
}

func TestInsertRequiresTransaction(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	payload, _ := json.Marshal(&kind.SongData{Title: "x"})
	if _, err := d.Insert(ctx, 0, kind.Song, payload); err == nil {
		t.Fatal("expected error inserting without a transaction")
	}

	tid, err := d.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	id, err := d.Insert(ctx, tid, kind.Song, payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Commit(tid); err != nil {
		t.Fatal(err)
	}

	got, err := d.GetByID(ctx, 0, kind.Song, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Item.(*kind.SongData).Title != "x" {
		t.Fatalf("unexpected item: %+v", got.Item)
	}
}

func TestLocalStateRejectsInsertAndDelete(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()
	tid, err := d.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Rollback(tid) //nolint:errcheck

	payload, _ := json.Marshal(&kind.LocalStateData{})
	if _, err := d.Insert(ctx, tid, kind.LocalState, payload); err != ErrOperationNotAllowed {
		t.Fatalf("err = %v, want ErrOperationNotAllowed", err)
	}
	if err := d.Delete(ctx, tid, 1, kind.LocalState); err != ErrOperationNotAllowed {
		t.Fatalf("err = %v, want ErrOperationNotAllowed", err)
	}
}

func TestNoRefidKindsRejectRefidLookup(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	for _, k := range []kind.Kind{kind.Playlist, kind.Queue, kind.MmPlaylist, kind.MmQueue, kind.MmArtist, kind.ArtistBlacklist, kind.SongBlacklist} {
		if _, err := d.GetByRefid(ctx, 0, k, "whatever"); err != ErrItemDoesNotSupportRefids {
			t.Fatalf("kind %v: err = %v, want ErrItemDoesNotSupportRefids", k, err)
		}
		if _, err := d.GetManyByRefid(ctx, 0, k, []string{"whatever"}); err != ErrItemDoesNotSupportRefids {
			t.Fatalf("kind %v: err = %v, want ErrItemDoesNotSupportRefids", k, err)
		}
	}
}

func TestRefidCapableKindAllowsLookup(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	tid, err := d.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	payload, _ := json.Marshal(&kind.StSongData{ID: "yt1", Title: "Idioteque"})
	if _, err := d.Insert(ctx, tid, kind.StSong, payload); err != nil {
		t.Fatal(err)
	}
	if err := d.Commit(tid); err != nil {
		t.Fatal(err)
	}

	got, err := d.GetByRefid(ctx, 0, kind.StSong, "yt1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Item.(*kind.StSongData).Title != "Idioteque" {
		t.Fatalf("unexpected item: %+v", got.Item)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()
	bogus := kind.Kind(999)
	if _, err := d.GetByID(ctx, 0, bogus, 1); err != ErrUnknownKind {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

func TestCommitUnknownTransaction(t *testing.T) {
	d := newTestDispatcher(t)
	if err := d.Commit(12345); err == nil {
		t.Fatal("expected error committing an unopened transaction")
	}
}
