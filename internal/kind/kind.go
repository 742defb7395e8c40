// Package kind defines the closed set of entity kinds stored by
// internal/store's ObjectStore, and the single extractor capability
// (Haystack/Refids/Links) every kind's payload type implements. This
// replaces the per-entity trait/inheritance hierarchy of the original
// implementation with a tagged union plus one interface.
package kind

import (
	"encoding/json"
	"fmt"
)

// Kind is the stable small integer code identifying a stored object's
// shape. The enumeration is closed: every value here has exactly one
// corresponding payload Go type registered in this package.
type Kind int

// The closed set of kinds (spec §3), grouped by origin.
const (
	LocalState Kind = iota
	Song
	Playlist
	Queue
	Updater
	ArtistBlacklist
	SongBlacklist
	MmSong
	MmAlbum
	MmArtist
	MmPlaylist
	MmQueue
	StSong
	StVideo
	StAlbum
	StPlaylist
	StArtist
	MbzRecording
	MbzArtist

	numKinds
)

var names = [numKinds]string{
	"LocalState", "Song", "Playlist", "Queue", "Updater",
	"ArtistBlacklist", "SongBlacklist",
	"MmSong", "MmAlbum", "MmArtist", "MmPlaylist", "MmQueue",
	"StSong", "StVideo", "StAlbum", "StPlaylist", "StArtist",
	"MbzRecording", "MbzArtist",
}

// String returns the kind's stable name, used in error messages and logs.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(names) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return names[k]
}

// Valid reports whether k is a member of the closed enumeration.
func (k Kind) Valid() bool {
	return k >= 0 && k < numKinds
}

// MarshalJSON encodes a Kind as its string name, matching the tagged JSON
// shapes used on the wire (spec §2's "stable small integer code" is the
// storage-layer representation; RPC payloads use the name for readability
// and forward-compatibility with the browser client).
func (k Kind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("kind: invalid value %d", int(k))
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a Kind from its string name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, n := range names {
		if n == s {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("kind: unknown name %q", s)
}

// Parse looks up a Kind by its stable name, for callers decoding a kind
// from a field that isn't itself a Kind-typed JSON value (e.g. the `typ`
// field of a db_request envelope).
func Parse(name string) (Kind, error) {
	for i, n := range names {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("kind: unknown name %q", name)
}

// Link is one directed, dually-kinded edge produced by an object: "this
// object's refid links to toRefid of kind toKind" (spec §4.1's Links()
// extractor, §GLOSSARY's "Link").
type Link struct {
	ToRefid string
	ToKind  Kind
}

// Item is the capability every kind's payload type implements. It is the
// store's only per-kind touch point (spec §4.1): everything else in
// internal/store is generic over Item.
type Item interface {
	// Haystack returns the strings fuzzy-matched against during Search.
	Haystack() []string
	// Refids returns every externally meaningful id this object should be
	// findable by (spec: "a Song yields its info-source ids and
	// play-source ids").
	Refids() []string
	// Links returns every directed cross-refid edge this object produces.
	Links() []Link
}

// New returns a zero-valued Item for k, suitable as an UnmarshalJSON
// target. Returns an error for kinds outside the closed enumeration.
func New(k Kind) (Item, error) {
	switch k {
	case LocalState:
		return &LocalStateData{}, nil
	case Song:
		return &SongData{}, nil
	case Playlist:
		return &PlaylistData{}, nil
	case Queue:
		return &QueueData{}, nil
	case Updater:
		return &UpdaterData{}, nil
	case ArtistBlacklist, SongBlacklist:
		return &BlacklistData{}, nil
	case MmSong:
		return &MmSongData{}, nil
	case MmAlbum:
		return &MmAlbumData{}, nil
	case MmArtist:
		return &MmArtistData{}, nil
	case MmPlaylist:
		return &MmPlaylistData{}, nil
	case MmQueue:
		return &MmQueueData{}, nil
	case StSong:
		return &StSongData{}, nil
	case StVideo:
		return &StVideoData{}, nil
	case StAlbum:
		return &StAlbumData{}, nil
	case StPlaylist:
		return &StPlaylistData{}, nil
	case StArtist:
		return &StArtistData{}, nil
	case MbzRecording:
		return &MbzRecordingData{}, nil
	case MbzArtist:
		return &MbzArtistData{}, nil
	default:
		return nil, fmt.Errorf("kind: unknown kind %v", k)
	}
}

// Unmarshal decodes a raw JSON payload into the Go type registered for k.
func Unmarshal(k Kind, payload []byte) (Item, error) {
	item, err := New(k)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, item); err != nil {
		return nil, fmt.Errorf("kind %v: %w", k, err)
	}
	return item, nil
}

// dedupe returns ss with empty strings and duplicates removed, preserving
// order of first occurrence.
func dedupe(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
