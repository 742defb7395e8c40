package kind

import (
	"encoding/json"
	"testing"
)

func TestKindJSONRoundTrip(t *testing.T) {
	for k := Kind(0); k < numKinds; k++ {
		data, err := json.Marshal(k)
		if err != nil {
			t.Fatalf("marshal %v: %v", k, err)
		}
		var got Kind
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %v: %v", k, err)
		}
		if got != k {
			t.Fatalf("round trip mismatch: got %v want %v", got, k)
		}
	}
}

func TestKindUnmarshalUnknownName(t *testing.T) {
	var k Kind
	if err := json.Unmarshal([]byte(`"NotAKind"`), &k); err == nil {
		t.Fatal("expected error for unknown kind name")
	}
}

func TestNewCoversEveryKind(t *testing.T) {
	for k := Kind(0); k < numKinds; k++ {
		item, err := New(k)
		if err != nil {
			t.Fatalf("New(%v): %v", k, err)
		}
		if item == nil {
			t.Fatalf("New(%v) returned nil item", k)
		}
	}
}

func TestNewRejectsOutOfRange(t *testing.T) {
	if _, err := New(numKinds); err == nil {
		t.Fatal("expected error for out-of-range kind")
	}
}

func TestSongRefidsDedupeAndHaystack(t *testing.T) {
	s := &SongData{
		Title:   "Airbag",
		Artists: []string{"Radiohead"},
		InfoSources: []InfoSource{
			{Type: "YtId", Value: "abc123"},
			{Type: "MbzId", Value: "abc123"},
		},
		PlaySources: []PlaySource{
			{Type: "File", Value: "airbag.webm"},
			{Type: "YtId", Value: ""},
		},
	}
	refids := s.Refids()
	want := []string{"abc123", "airbag.webm"}
	if len(refids) != len(want) {
		t.Fatalf("Refids() = %v, want %v", refids, want)
	}
	for i := range want {
		if refids[i] != want[i] {
			t.Fatalf("Refids() = %v, want %v", refids, want)
		}
	}

	hs := s.Haystack()
	if len(hs) != 2 || hs[0] != "Airbag" || hs[1] != "Radiohead" {
		t.Fatalf("Haystack() = %v", hs)
	}
}

func TestMmAlbumLinks(t *testing.T) {
	a := &MmAlbumData{
		ID:         "alb1",
		Name:       "OK Computer",
		ArtistName: "Radiohead",
		ArtistKeys: []string{"artist1", ""},
		SongIDs:    []string{"song1", "song2"},
	}
	links := a.Links()
	if len(links) != 3 {
		t.Fatalf("Links() = %v, want 3 entries", links)
	}
	if links[0] != (Link{ToRefid: "artist1", ToKind: MmArtist}) {
		t.Fatalf("unexpected first link: %v", links[0])
	}
	if links[1] != (Link{ToRefid: "song1", ToKind: MmSong}) {
		t.Fatalf("unexpected second link: %v", links[1])
	}
}

func TestUpdaterLinksByVariant(t *testing.T) {
	mbz := &UpdaterData{Source: UpdateSource{Type: "Mbz", ArtistID: "mbz-artist-1"}}
	links := mbz.Links()
	if len(links) != 1 || links[0].ToKind != MbzArtist {
		t.Fatalf("Mbz variant Links() = %v", links)
	}

	search := &UpdaterData{Source: UpdateSource{
		Type:       "MusimanagerSearch",
		ArtistKeys: []string{"k1", "k2"},
	}}
	links = search.Links()
	if len(links) != 2 || links[0].ToKind != MmArtist {
		t.Fatalf("MusimanagerSearch variant Links() = %v", links)
	}
}

func TestBlacklistSharedPayload(t *testing.T) {
	artistKind, err := New(ArtistBlacklist)
	if err != nil {
		t.Fatal(err)
	}
	songKind, err := New(SongBlacklist)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := artistKind.(*BlacklistData); !ok {
		t.Fatalf("ArtistBlacklist payload type = %T, want *BlacklistData", artistKind)
	}
	if _, ok := songKind.(*BlacklistData); !ok {
		t.Fatalf("SongBlacklist payload type = %T, want *BlacklistData", songKind)
	}
}

func TestUnmarshalRoundTrip(t *testing.T) {
	payload := []byte(`{"channel_id":"chan1","name":"Thom Yorke"}`)
	item, err := Unmarshal(MmArtist, payload)
	if err != nil {
		t.Fatal(err)
	}
	artist, ok := item.(*MmArtistData)
	if !ok {
		t.Fatalf("Unmarshal returned %T, want *MmArtistData", item)
	}
	if artist.ChannelID != "chan1" || artist.Name != "Thom Yorke" {
		t.Fatalf("unexpected decode: %+v", artist)
	}
}

func TestDedupePreservesOrder(t *testing.T) {
	got := dedupe([]string{"b", "a", "", "b", "c", "a"})
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("dedupe() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dedupe() = %v, want %v", got, want)
		}
	}
}
