// Package musimanager imports the legacy musimanager tracker JSON dump
// into the object store as MmSong/MmAlbum/MmArtist/MmPlaylist/MmQueue
// objects plus one Updater per artist, grounded on
// original_source/src/musimanager.rs's Tracker/EntityTracker shapes and
// Tracker::clean.
package musimanager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/covau-dev/covau/internal/dispatch"
	"github.com/covau-dev/covau/internal/kind"
)

// SongInfo mirrors musimanager.rs's SongInfo.
type SongInfo struct {
	Titles       []string `json:"titles"`
	VideoID      string   `json:"video_id"`
	Duration     *float64 `json:"duration,omitempty"`
	Tags         []string `json:"tags"`
	ThumbnailURL string   `json:"thumbnail_url"`
	Album        string   `json:"album,omitempty"`
	ArtistNames  []string `json:"artist_names"`
	ChannelID    string   `json:"channel_id,omitempty"`
	UploaderID   string   `json:"uploader_id,omitempty"`
}

// Song mirrors musimanager.rs's Song<SongInfo>.
type Song struct {
	Title         string   `json:"title"`
	Key           string   `json:"key"`
	ArtistName    string   `json:"artist_name"`
	Info          SongInfo `json:"info"`
	LastKnownPath string   `json:"last_known_path,omitempty"`
}

// placeholder reports whether title is one of the tracker's three
// stub-title markers, which Tracker::clean treats as "no real song
// here" rather than merging by key.
func placeholder(title string) bool {
	return strings.Contains(title, "---") || strings.Contains(title, "___") || strings.Contains(title, "===")
}

// take merges b's non-empty fields into a wherever a's are empty,
// mirroring Tracker::clean's take_from helper.
func (a *Song) take(b Song) {
	if a.Title == "" {
		a.Title = b.Title
	}
	if a.ArtistName == "" {
		a.ArtistName = b.ArtistName
	}
	if a.LastKnownPath == "" {
		a.LastKnownPath = b.LastKnownPath
	}
	if len(a.Info.Titles) == 0 {
		a.Info.Titles = b.Info.Titles
	}
	if a.Info.VideoID == "" {
		a.Info.VideoID = b.Info.VideoID
	}
	if a.Info.Duration == nil {
		a.Info.Duration = b.Info.Duration
	}
	if len(a.Info.Tags) == 0 {
		a.Info.Tags = b.Info.Tags
	}
	if a.Info.ThumbnailURL == "" {
		a.Info.ThumbnailURL = b.Info.ThumbnailURL
	}
	if a.Info.Album == "" {
		a.Info.Album = b.Info.Album
	}
	if len(a.Info.ArtistNames) == 0 {
		a.Info.ArtistNames = b.Info.ArtistNames
	}
	if a.Info.ChannelID == "" {
		a.Info.ChannelID = b.Info.ChannelID
	}
	if a.Info.UploaderID == "" {
		a.Info.UploaderID = b.Info.UploaderID
	}
}

// Album mirrors musimanager.rs's Album<Song>.
type Album struct {
	Name        string   `json:"name"`
	BrowseID    string   `json:"browse_id"`
	PlaylistID  string   `json:"playlist_id,omitempty"`
	Songs       []Song   `json:"songs"`
	ArtistName  string   `json:"artist_name"`
	ArtistKeys  []string `json:"artist_keys"`
}

// SongProvider mirrors musimanager.rs's SongProvider<Song>, the shared
// backbone of both Playlist and Queue.
type SongProvider struct {
	Name         string `json:"name"`
	DataList     []Song `json:"data_list"`
	CurrentIndex *int64 `json:"current_index,omitempty"`
}

// Playlist mirrors musimanager.rs's Playlist<Song>(SongProvider<Song>).
type Playlist struct {
	SongProvider
}

// Queue mirrors musimanager.rs's Queue<Song>(SongProvider<Song>).
type Queue struct {
	SongProvider
}

// Artist mirrors musimanager.rs's Artist<Song, Album<Song>>.
type Artist struct {
	Name                   string   `json:"name"`
	Keys                   []string `json:"keys"`
	CheckStat              bool     `json:"check_stat"`
	IgnoreNoSongs          bool     `json:"ignore_no_songs"`
	NameConfirmationStatus string   `json:"name_confirmation_status"`
	Songs                  []Song   `json:"songs"`
	KnownAlbums            []Album  `json:"known_albums"`
	Keywords               []string `json:"keywords"`
	NonKeywords            []string `json:"non_keywords"`
	SearchKeywords         []string `json:"search_keywords"`
	LastAutoSearch         *float64 `json:"last_auto_search,omitempty"`
	UnexploredSongs        []Song   `json:"unexplored_songs"`
}

// Tracker mirrors musimanager.rs's Tracker<Song, Album<Song>>, the top
// level shape of the tracker JSON dump.
type Tracker struct {
	Artists             []Artist   `json:"artists"`
	AutoSearchArtists    []Artist   `json:"auto_search_artists"`
	Playlists           []Playlist `json:"playlists"`
	Queues              []Queue    `json:"queues"`
}

// EntityTracker is Tracker::clean's output shape: every song, album,
// artist, playlist and queue deduplicated by key/browse_id/name.
type EntityTracker struct {
	Songs     []Song
	Albums    []Album
	Artists   []Artist
	Playlists []Playlist
	Queues    []Queue
}

// Load reads and decodes the tracker JSON dump at path.
func Load(path string) (Tracker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tracker{}, fmt.Errorf("reading tracker dump: %w", err)
	}
	var t Tracker
	if err := json.Unmarshal(data, &t); err != nil {
		return Tracker{}, fmt.Errorf("decoding tracker dump: %w", err)
	}
	return t, nil
}

// Clean ports Tracker::clean's merge/dedup pass: songs are merged by
// key across every artist, auto-search-artist, playlist and queue
// (placeholder-titled stub songs are dropped rather than merged),
// albums are merged by browse_id, and artists by name.
func (t Tracker) Clean() EntityTracker {
	songsByKey := make(map[string]*Song)
	var songOrder []string
	mergeSong := func(s Song) {
		if placeholder(s.Title) {
			return
		}
		if existing, ok := songsByKey[s.Key]; ok {
			existing.take(s)
			return
		}
		cp := s
		songsByKey[s.Key] = &cp
		songOrder = append(songOrder, s.Key)
	}

	allArtists := make([]Artist, 0, len(t.Artists)+len(t.AutoSearchArtists))
	allArtists = append(allArtists, t.Artists...)
	allArtists = append(allArtists, t.AutoSearchArtists...)

	for _, a := range allArtists {
		for _, s := range a.Songs {
			mergeSong(s)
		}
		for _, s := range a.UnexploredSongs {
			mergeSong(s)
		}
		for _, al := range a.KnownAlbums {
			for _, s := range al.Songs {
				mergeSong(s)
			}
		}
	}
	for _, p := range t.Playlists {
		for _, s := range p.DataList {
			mergeSong(s)
		}
	}
	for _, q := range t.Queues {
		for _, s := range q.DataList {
			mergeSong(s)
		}
	}

	songs := make([]Song, 0, len(songOrder))
	for _, k := range songOrder {
		songs = append(songs, *songsByKey[k])
	}

	albumsByID := make(map[string]*Album)
	var albumOrder []string
	for _, a := range allArtists {
		for _, al := range a.KnownAlbums {
			if existing, ok := albumsByID[al.BrowseID]; ok {
				if existing.Name == "" {
					existing.Name = al.Name
				}
				if existing.PlaylistID == "" {
					existing.PlaylistID = al.PlaylistID
				}
				existing.ArtistKeys = dedupeStrings(append(existing.ArtistKeys, al.ArtistKeys...))
				continue
			}
			cp := al
			albumsByID[al.BrowseID] = &cp
			albumOrder = append(albumOrder, al.BrowseID)
		}
	}
	albums := make([]Album, 0, len(albumOrder))
	for _, id := range albumOrder {
		albums = append(albums, *albumsByID[id])
	}

	artistsByName := make(map[string]*Artist)
	var artistOrder []string
	for _, a := range allArtists {
		if existing, ok := artistsByName[a.Name]; ok {
			existing.Keys = dedupeStrings(append(existing.Keys, a.Keys...))
			existing.SearchKeywords = dedupeStrings(append(existing.SearchKeywords, a.SearchKeywords...))
			continue
		}
		cp := a
		artistsByName[a.Name] = &cp
		artistOrder = append(artistOrder, a.Name)
	}
	artists := make([]Artist, 0, len(artistOrder))
	for _, name := range artistOrder {
		artists = append(artists, *artistsByName[name])
	}

	return EntityTracker{
		Songs:     songs,
		Albums:    albums,
		Artists:   artists,
		Playlists: t.Playlists,
		Queues:    t.Queues,
	}
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
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

func channelID(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

func marshal(v kind.Item) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

// Import runs the entire legacy tracker dump through one transaction:
// every song, album, artist, playlist and queue it carries, plus one
// Updater per artist driving the musimanager search walk (spec §9's
// single-transaction legacy import decision).
func Import(ctx context.Context, d *dispatch.Dispatcher, path string) error {
	tracker, err := Load(path)
	if err != nil {
		return err
	}
	entities := tracker.Clean()

	tid, err := d.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning import transaction: %w", err)
	}
	if err := importInto(ctx, d, tid, entities); err != nil {
		_ = d.Rollback(tid)
		return err
	}
	if err := d.Commit(tid); err != nil {
		return fmt.Errorf("committing import transaction: %w", err)
	}
	return nil
}

func importInto(ctx context.Context, d *dispatch.Dispatcher, tid uint32, e EntityTracker) error {
	songIDByKey := make(map[string]string) // song key -> refid (== key, passthrough)

	albumIDBySongKey := make(map[string]string)
	for _, al := range e.Albums {
		for _, s := range al.Songs {
			albumIDBySongKey[s.Key] = al.BrowseID
		}
	}

	for _, s := range e.Songs {
		payload := &kind.MmSongData{
			ID:          s.Key,
			Title:       s.Title,
			Titles:      s.Info.Titles,
			ThumbnailURL: s.Info.ThumbnailURL,
			AlbumID:     albumIDBySongKey[s.Key],
			AlbumName:   s.Info.Album,
			ArtistNames: s.Info.ArtistNames,
			ChannelID:   s.Info.ChannelID,
		}
		if _, _, err := d.InsertOrGet(ctx, tid, kind.MmSong, marshal(payload)); err != nil {
			return fmt.Errorf("inserting song %q: %w", s.Key, err)
		}
		songIDByKey[s.Key] = s.Key
	}

	for _, al := range e.Albums {
		songIDs := make([]string, 0, len(al.Songs))
		for _, s := range al.Songs {
			songIDs = append(songIDs, s.Key)
		}
		payload := &kind.MmAlbumData{
			ID:         al.BrowseID,
			Name:       al.Name,
			ArtistName: al.ArtistName,
			ArtistKeys: al.ArtistKeys,
			SongIDs:    songIDs,
		}
		if _, _, err := d.InsertOrGet(ctx, tid, kind.MmAlbum, marshal(payload)); err != nil {
			return fmt.Errorf("inserting album %q: %w", al.BrowseID, err)
		}
	}

	for _, a := range e.Artists {
		cid := channelID(a.Keys)
		payload := &kind.MmArtistData{
			ChannelID: cid,
			Name:      a.Name,
		}
		if _, _, err := d.InsertOrGet(ctx, tid, kind.MmArtist, marshal(payload)); err != nil {
			return fmt.Errorf("inserting artist %q: %w", a.Name, err)
		}

		lastUpdate := "0"
		if a.LastAutoSearch != nil {
			lastUpdate = strconv.FormatInt(int64(*a.LastAutoSearch), 10)
		}
		updater := &kind.UpdaterData{
			Title: a.Name,
			Source: kind.UpdateSource{
				Type:           "MusimanagerSearch",
				ArtistID:       cid,
				SearchWords:    a.SearchKeywords,
				ArtistKeys:     a.Keys,
				NonSearchWords: a.NonKeywords,
			},
			LastUpdateTs: lastUpdate,
			Enabled:      a.CheckStat,
		}
		if _, err := d.Insert(ctx, tid, kind.Updater, marshal(updater)); err != nil {
			return fmt.Errorf("inserting updater for artist %q: %w", a.Name, err)
		}
	}

	for _, p := range e.Playlists {
		songIDs := make([]string, 0, len(p.DataList))
		for _, s := range p.DataList {
			songIDs = append(songIDs, s.Key)
		}
		payload := &kind.MmPlaylistData{Title: p.Name, SongIDs: songIDs}
		if _, err := d.Insert(ctx, tid, kind.MmPlaylist, marshal(payload)); err != nil {
			return fmt.Errorf("inserting playlist %q: %w", p.Name, err)
		}
	}

	for _, q := range e.Queues {
		songIDs := make([]string, 0, len(q.DataList))
		for _, s := range q.DataList {
			songIDs = append(songIDs, s.Key)
		}
		payload := &kind.MmQueueData{
			ListenQueue: kind.ListenQueue[kind.MmPlaylistData]{
				Queue:        kind.MmPlaylistData{Title: q.Name, SongIDs: songIDs},
				CurrentIndex: q.CurrentIndex,
			},
		}
		if _, err := d.Insert(ctx, tid, kind.MmQueue, marshal(payload)); err != nil {
			return fmt.Errorf("inserting queue %q: %w", q.Name, err)
		}
	}

	return nil
}
