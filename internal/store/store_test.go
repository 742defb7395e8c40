package store

import (
	"context"
	"testing"

	"github.com/covau-dev/covau/internal/kind"
)

func newTestStore(t *testing.T) *ObjectStore {
	t.Helper()
	db := openMemoryDB(t)
	return New(db)
}

func TestInsertAndGetByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	song := &kind.SongData{Title: "Airbag", Artists: []string{"Radiohead"}}
	id, err := s.Insert(ctx, 0, kind.Song, song)
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.GetByID(ctx, 0, kind.Song, id)
	if err != nil {
		t.Fatal(err)
	}
	gotSong, ok := got.Item.(*kind.SongData)
	if !ok {
		t.Fatalf("item type = %T", got.Item)
	}
	if gotSong.Title != "Airbag" {
		t.Fatalf("Title = %q", gotSong.Title)
	}
}

func TestGetByIDWrongKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, 0, kind.Song, &kind.SongData{Title: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetByID(ctx, 0, kind.Playlist, id); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInsertOrGetIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	artist := &kind.MmArtistData{ChannelID: "chan1", Name: "Thom Yorke"}
	id1, created1, err := s.InsertOrGet(ctx, 0, kind.MmArtist, artist)
	if err != nil {
		t.Fatal(err)
	}
	if !created1 {
		t.Fatal("expected first InsertOrGet to create")
	}

	id2, created2, err := s.InsertOrGet(ctx, 0, kind.MmArtist, artist)
	if err != nil {
		t.Fatal(err)
	}
	if created2 {
		t.Fatal("expected second InsertOrGet to find existing row")
	}
	if id1 != id2 {
		t.Fatalf("ids differ: %d vs %d", id1, id2)
	}
}

func TestUpdateReplacesPayloadAndLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	album := &kind.MmAlbumData{ID: "alb1", Name: "OK Computer", ArtistKeys: []string{"chan1"}}
	id, err := s.Insert(ctx, 0, kind.MmAlbum, album)
	if err != nil {
		t.Fatal(err)
	}

	album.Name = "OK Computer (remaster)"
	album.ArtistKeys = []string{"chan2"}
	if err := s.Update(ctx, 0, id, kind.MmAlbum, album, 0); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetByID(ctx, 0, kind.MmAlbum, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Item.(*kind.MmAlbumData).Name != "OK Computer (remaster)" {
		t.Fatalf("name not updated: %+v", got.Item)
	}

	linked, err := s.LinksTo(ctx, 0, kind.MmArtist, "chan1")
	if err != nil {
		t.Fatal(err)
	}
	if len(linked) != 0 {
		t.Fatalf("old link chan1 should be gone, got %v", linked)
	}

	linked, err = s.LinksTo(ctx, 0, kind.MmArtist, "chan2")
	if err != nil {
		t.Fatal(err)
	}
	if len(linked) != 1 || linked[0].ID != id {
		t.Fatalf("expected new link from %d, got %v", id, linked)
	}
}

func TestUpdateRejectsStaleCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	song := &kind.SongData{Title: "Airbag"}
	id, err := s.Insert(ctx, 0, kind.Song, song)
	if err != nil {
		t.Fatal(err)
	}

	// first update carries the counter Insert left (0), and succeeds.
	song.Title = "Airbag (v2)"
	if err := s.Update(ctx, 0, id, kind.Song, song, 0); err != nil {
		t.Fatal(err)
	}

	// a second update still carrying the stale counter 0 must be
	// rejected, not silently overwrite the first update's write.
	song.Title = "Airbag (stale write)"
	if err := s.Update(ctx, 0, id, kind.Song, song, 0); err != ErrConflict {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	got, err := s.GetByID(ctx, 0, kind.Song, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Item.(*kind.SongData).Title != "Airbag (v2)" {
		t.Fatalf("stale update must not have applied: %+v", got.Item)
	}
	if got.Metadata.UpdateCounter != 1 {
		t.Fatalf("UpdateCounter = %d, want 1", got.Metadata.UpdateCounter)
	}

	// update with the current counter (1) succeeds and bumps it again.
	song.Title = "Airbag (v3)"
	if err := s.Update(ctx, 0, id, kind.Song, song, 1); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetByID(ctx, 0, kind.Song, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Item.(*kind.SongData).Title != "Airbag (v3)" {
		t.Fatalf("current-counter update should have applied: %+v", got.Item)
	}
	if got.Metadata.UpdateCounter != 2 {
		t.Fatalf("UpdateCounter = %d, want 2", got.Metadata.UpdateCounter)
	}
}

func TestDeleteRemovesRefidsAndLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	album := &kind.MmAlbumData{ID: "alb1", Name: "OK Computer", ArtistKeys: []string{"chan1"}}
	id, err := s.Insert(ctx, 0, kind.MmAlbum, album)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, 0, id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetByID(ctx, 0, kind.MmAlbum, id); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	linked, err := s.LinksTo(ctx, 0, kind.MmArtist, "chan1")
	if err != nil {
		t.Fatal(err)
	}
	if len(linked) != 0 {
		t.Fatalf("expected no links after delete, got %v", linked)
	}
}

func TestLinksFromResolvesThroughRefids(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, 0, kind.MmArtist, &kind.MmArtistData{ChannelID: "chan1", Name: "Thom Yorke"})
	if err != nil {
		t.Fatal(err)
	}
	albumID, err := s.Insert(ctx, 0, kind.MmAlbum, &kind.MmAlbumData{
		ID: "alb1", Name: "OK Computer", ArtistKeys: []string{"chan1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	linked, err := s.LinksFrom(ctx, 0, albumID)
	if err != nil {
		t.Fatal(err)
	}
	if len(linked) != 1 {
		t.Fatalf("expected 1 linked object, got %d", len(linked))
	}
	artist, ok := linked[0].Item.(*kind.MmArtistData)
	if !ok || artist.Name != "Thom Yorke" {
		t.Fatalf("unexpected linked item: %+v", linked[0].Item)
	}
}

func TestGetByRefidAndMany(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, 0, kind.StSong, &kind.StSongData{ID: "yt1", Title: "Idioteque"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Insert(ctx, 0, kind.StSong, &kind.StSongData{ID: "yt2", Title: "Everything In Its Right Place"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.GetByRefid(ctx, 0, kind.StSong, "yt1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Item.(*kind.StSongData).Title != "Idioteque" {
		t.Fatalf("unexpected item: %+v", got.Item)
	}

	many, err := s.GetManyByRefid(ctx, 0, kind.StSong, []string{"yt1", "yt2", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(many) != 2 {
		t.Fatalf("expected 2 results, got %d", len(many))
	}
}

func TestTransactionCommitAndRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tid, err := s.BeginTx(ctx)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.Insert(ctx, tid, kind.Song, &kind.SongData{Title: "In Rainbows"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Rollback(tid); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetByID(ctx, 0, kind.Song, id); err != ErrNotFound {
		t.Fatalf("rolled-back insert should not be visible, err = %v", err)
	}

	tid2, err := s.BeginTx(ctx)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.Insert(ctx, tid2, kind.Song, &kind.SongData{Title: "Kid A"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(tid2); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetByID(ctx, 0, kind.Song, id2); err != nil {
		t.Fatalf("committed insert should be visible: %v", err)
	}

	if err := s.Commit(tid2); err != ErrNoSuchTransaction {
		t.Fatalf("double commit should fail with ErrNoSuchTransaction, got %v", err)
	}
}

func TestSearchRanksByFuzzyScore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"Airbag", "Paranoid Android", "Subterranean Homesick Alien"} {
		if _, err := s.Insert(ctx, 0, kind.Song, &kind.SongData{Title: title}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.Search(ctx, 0, kind.Song, "arian", 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) == 0 {
		t.Fatal("expected at least one match")
	}
	top := page.Items[0].Item.(*kind.SongData).Title
	if top != "Paranoid Android" {
		t.Fatalf("top match = %q, want %q", top, "Paranoid Android")
	}
}

func TestSearchPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Insert(ctx, 0, kind.Song, &kind.SongData{Title: "Everything"}); err != nil {
			t.Fatal(err)
		}
	}

	page1, err := s.Search(ctx, 0, kind.Song, "", 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page1.Items) != 2 || page1.Continuation == "" {
		t.Fatalf("page1 = %+v", page1)
	}

	page2, err := s.Search(ctx, 0, kind.Song, "", 2, page1.Continuation)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2.Items) != 2 {
		t.Fatalf("page2 = %+v", page2)
	}
	if page1.Items[0].ID == page2.Items[0].ID {
		t.Fatal("page2 should not repeat page1's results")
	}
}
