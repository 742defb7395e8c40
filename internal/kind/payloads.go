package kind

// This file holds the concrete payload type for every member of the
// closed Kind enumeration, grounded on original_source/src/covau_types.rs
// (Song, Playlist, Queue, Updater, LocalState, UpdateSource), yt.rs
// (song_tube::{Song,Video,Album,Playlist,Artist} for the St* kinds, and
// the legacy Video/VideoWithInfo/Album/AlbumWithInfo shapes for the Mm*
// kinds), and mbz.rs (MbzRecording/MbzArtist DTOs).

// --- local kinds ---

// InfoSource identifies an external metadata source for a Song.
type InfoSource struct {
	Type  string `json:"type"` // "YtId" | "MbzId"
	Value string `json:"content"`
}

// PlaySource identifies a playable source for a Song.
type PlaySource struct {
	Type  string `json:"type"` // "File" | "YtId"
	Value string `json:"content"`
}

// SongData is the Song kind's payload.
type SongData struct {
	Title       string       `json:"title"`
	Artists     []string     `json:"artists"`
	Thumbnails  []string     `json:"thumbnails"`
	InfoSources []InfoSource `json:"info_sources"`
	PlaySources []PlaySource `json:"play_sources"`
}

func (s *SongData) Haystack() []string {
	return append([]string{s.Title}, s.Artists...)
}

func (s *SongData) Refids() []string {
	ids := make([]string, 0, len(s.InfoSources)+len(s.PlaySources))
	for _, is := range s.InfoSources {
		ids = append(ids, is.Value)
	}
	for _, ps := range s.PlaySources {
		ids = append(ids, ps.Value)
	}
	return dedupe(ids)
}

func (s *SongData) Links() []Link { return nil }

// ListenQueue wraps a queue value with a current-position cursor.
type ListenQueue[T any] struct {
	Queue        T      `json:"queue"`
	CurrentIndex *int64 `json:"current_index,omitempty"`
}

// PlaylistData is the Playlist kind's payload: a named, ordered list of
// Song object ids. Playlists have no stable external refid (spec §4.3).
type PlaylistData struct {
	Title string  `json:"title"`
	Songs []int64 `json:"songs"`
}

func (p *PlaylistData) Haystack() []string { return []string{p.Title} }
func (p *PlaylistData) Refids() []string   { return nil }
func (p *PlaylistData) Links() []Link      { return nil }

// QueueData is the Queue kind's payload: the currently-playing listen
// queue, one of the LocalState singletons.
type QueueData struct {
	ListenQueue[PlaylistData] `json:",inline"`
}

func (q *QueueData) Haystack() []string { return q.Queue.Haystack() }
func (q *QueueData) Refids() []string   { return nil }
func (q *QueueData) Links() []Link      { return nil }

// LocalStateData is the LocalState kind's payload: the singleton
// player/queue state. No LocalState row is created by the store or its
// migrations, and internal/dispatch rejects Insert for this kind.
type LocalStateData struct {
	Queue QueueData `json:"queue"`
}

func (l *LocalStateData) Haystack() []string { return nil }
func (l *LocalStateData) Refids() []string   { return nil }
func (l *LocalStateData) Links() []Link      { return nil }

// UpdateItem wraps a tracked item with bookkeeping used by the background
// updater walk (spec §9's cyclic-ownership note; original_source
// covau_types.rs UpdateItem<T>).
type UpdateItem[T any] struct {
	Done   bool   `json:"done"`
	Points uint32 `json:"points"`
	Item   T      `json:"item"`
}

// UpdateSource names which external walk an Updater drives and carries its
// progress. Exactly one of the three embedded shapes is populated,
// discriminated by Type.
type UpdateSource struct {
	Type string `json:"type"` // "Mbz" | "MusimanagerSearch" | "SongTubeSearch"

	// Mbz
	ArtistID string `json:"artist_id,omitempty"`

	// MusimanagerSearch / SongTubeSearch
	SearchWords    []string `json:"search_words,omitempty"`
	ArtistKeys     []string `json:"artist_keys,omitempty"`
	NonSearchWords []string `json:"non_search_words,omitempty"`
}

// UpdaterData is the Updater kind's payload: a scheduled background
// metadata-refresh task.
type UpdaterData struct {
	Title        string       `json:"title"`
	Source       UpdateSource `json:"source"`
	LastUpdateTs string       `json:"last_update_ts"` // decimal string, seconds since epoch
	Enabled      bool         `json:"enabled"`
}

func (u *UpdaterData) Haystack() []string { return []string{u.Title} }
func (u *UpdaterData) Refids() []string   { return nil }

func (u *UpdaterData) Links() []Link {
	switch u.Source.Type {
	case "Mbz":
		if u.Source.ArtistID == "" {
			return nil
		}
		return []Link{{ToRefid: u.Source.ArtistID, ToKind: MbzArtist}}
	case "MusimanagerSearch", "SongTubeSearch":
		links := make([]Link, 0, len(u.Source.ArtistKeys))
		for _, key := range u.Source.ArtistKeys {
			if key == "" {
				continue
			}
			links = append(links, Link{ToRefid: key, ToKind: MmArtist})
		}
		return links
	default:
		return nil
	}
}

// BlacklistData is the ArtistBlacklist/SongBlacklist kinds' shared
// payload: a single blacklisted external id. Blacklists have no stable
// external refid of their own (spec §4.3's kind-group rule).
type BlacklistData struct {
	ID string `json:"id"`
}

func (b *BlacklistData) Haystack() []string { return []string{b.ID} }
func (b *BlacklistData) Refids() []string   { return nil }
func (b *BlacklistData) Links() []Link      { return nil }

// --- legacy-import (musimanager) kinds ---

// MmArtistData is the MmArtist kind's payload: a legacy tracker artist
// keyed by its source channel id.
type MmArtistData struct {
	ChannelID string `json:"channel_id"`
	Name      string `json:"name"`
}

func (a *MmArtistData) Haystack() []string { return []string{a.Name} }
func (a *MmArtistData) Refids() []string   { return dedupe([]string{a.ChannelID}) }
func (a *MmArtistData) Links() []Link      { return nil }

// MmSongData is the MmSong kind's payload: a legacy tracker song.
type MmSongData struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Titles      []string `json:"titles"`
	ThumbnailURL string  `json:"thumbnail_url"`
	AlbumID     string   `json:"album_id,omitempty"`
	AlbumName   string   `json:"album_name,omitempty"`
	ArtistNames []string `json:"artist_names"`
	ChannelID   string   `json:"channel_id"`
}

func (s *MmSongData) Haystack() []string {
	hs := append([]string{s.Title}, s.Titles...)
	return append(hs, s.ArtistNames...)
}
func (s *MmSongData) Refids() []string { return dedupe([]string{s.ID}) }
func (s *MmSongData) Links() []Link {
	var links []Link
	if s.ChannelID != "" {
		links = append(links, Link{ToRefid: s.ChannelID, ToKind: MmArtist})
	}
	if s.AlbumID != "" {
		links = append(links, Link{ToRefid: s.AlbumID, ToKind: MmAlbum})
	}
	return links
}

// MmAlbumData is the MmAlbum kind's payload: a legacy tracker album.
type MmAlbumData struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ArtistName string   `json:"artist_name"`
	ArtistKeys []string `json:"artist_keys"`
	SongIDs    []string `json:"song_ids"`
}

func (a *MmAlbumData) Haystack() []string { return []string{a.Name, a.ArtistName} }
func (a *MmAlbumData) Refids() []string   { return dedupe([]string{a.ID}) }
func (a *MmAlbumData) Links() []Link {
	links := make([]Link, 0, len(a.ArtistKeys)+len(a.SongIDs))
	for _, k := range a.ArtistKeys {
		if k == "" {
			continue
		}
		links = append(links, Link{ToRefid: k, ToKind: MmArtist})
	}
	for _, id := range a.SongIDs {
		if id == "" {
			continue
		}
		links = append(links, Link{ToRefid: id, ToKind: MmSong})
	}
	return links
}

// MmPlaylistData is the MmPlaylist kind's payload.
type MmPlaylistData struct {
	Title   string   `json:"title"`
	SongIDs []string `json:"song_ids"`
}

func (p *MmPlaylistData) Haystack() []string { return []string{p.Title} }
func (p *MmPlaylistData) Refids() []string   { return nil }
func (p *MmPlaylistData) Links() []Link {
	links := make([]Link, 0, len(p.SongIDs))
	for _, id := range p.SongIDs {
		if id == "" {
			continue
		}
		links = append(links, Link{ToRefid: id, ToKind: MmSong})
	}
	return links
}

// MmQueueData is the MmQueue kind's payload.
type MmQueueData struct {
	ListenQueue[MmPlaylistData] `json:",inline"`
}

func (q *MmQueueData) Haystack() []string { return q.Queue.Haystack() }
func (q *MmQueueData) Refids() []string   { return nil }
func (q *MmQueueData) Links() []Link      { return q.Queue.Links() }

// --- external-metadata (browser-hosted source) kinds ---

// Thumbnail is an image reference at a known size.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Author identifies a content's uploader/artist on the external source.
type Author struct {
	Name      string  `json:"name"`
	ChannelID *string `json:"channel_id,omitempty"`
}

func (a Author) channelID() string {
	if a.ChannelID == nil {
		return ""
	}
	return *a.ChannelID
}

// SmolAlbum is the minimal album reference embedded in an StSong.
type SmolAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// StSongData is the StSong kind's payload (song_tube::Song).
type StSongData struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Thumbnails []Thumbnail `json:"thumbnails"`
	Authors    []Author    `json:"authors"`
	Album      *SmolAlbum  `json:"album,omitempty"`
}

func (s *StSongData) Haystack() []string {
	hs := []string{s.Title}
	for _, a := range s.Authors {
		hs = append(hs, a.Name)
	}
	return hs
}
func (s *StSongData) Refids() []string { return dedupe([]string{s.ID}) }
func (s *StSongData) Links() []Link {
	var links []Link
	for _, a := range s.Authors {
		if id := a.channelID(); id != "" {
			links = append(links, Link{ToRefid: id, ToKind: StArtist})
		}
	}
	if s.Album != nil && s.Album.ID != "" {
		links = append(links, Link{ToRefid: s.Album.ID, ToKind: StAlbum})
	}
	return links
}

// StVideoData is the StVideo kind's payload (song_tube::Video).
type StVideoData struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Thumbnails []Thumbnail `json:"thumbnails"`
	Authors    []Author    `json:"authors"`
}

func (v *StVideoData) Haystack() []string {
	hs := []string{v.Title}
	for _, a := range v.Authors {
		hs = append(hs, a.Name)
	}
	return hs
}
func (v *StVideoData) Refids() []string { return dedupe([]string{v.ID}) }
func (v *StVideoData) Links() []Link {
	var links []Link
	for _, a := range v.Authors {
		if id := a.channelID(); id != "" {
			links = append(links, Link{ToRefid: id, ToKind: StArtist})
		}
	}
	return links
}

// StAlbumData is the StAlbum kind's payload (song_tube::Album).
type StAlbumData struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Thumbnails []Thumbnail `json:"thumbnails"`
	Author     *Author     `json:"author,omitempty"`
}

func (a *StAlbumData) Haystack() []string {
	if a.Author != nil {
		return []string{a.Title, a.Author.Name}
	}
	return []string{a.Title}
}
func (a *StAlbumData) Refids() []string { return dedupe([]string{a.ID}) }
func (a *StAlbumData) Links() []Link {
	if a.Author == nil {
		return nil
	}
	if id := a.Author.channelID(); id != "" {
		return []Link{{ToRefid: id, ToKind: StArtist}}
	}
	return nil
}

// StPlaylistData is the StPlaylist kind's payload (song_tube::Playlist).
type StPlaylistData struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Thumbnails []Thumbnail `json:"thumbnails"`
	Author     *Author     `json:"author,omitempty"`
}

func (p *StPlaylistData) Haystack() []string {
	if p.Author != nil {
		return []string{p.Title, p.Author.Name}
	}
	return []string{p.Title}
}
func (p *StPlaylistData) Refids() []string { return dedupe([]string{p.ID}) }
func (p *StPlaylistData) Links() []Link {
	if p.Author == nil {
		return nil
	}
	if id := p.Author.channelID(); id != "" {
		return []Link{{ToRefid: id, ToKind: StArtist}}
	}
	return nil
}

// StArtistData is the StArtist kind's payload (song_tube::Artist).
type StArtistData struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Subscribers string      `json:"subscribers,omitempty"`
	Thumbnails  []Thumbnail `json:"thumbnails"`
}

func (a *StArtistData) Haystack() []string { return []string{a.Name} }
func (a *StArtistData) Refids() []string   { return dedupe([]string{a.ID}) }
func (a *StArtistData) Links() []Link      { return nil }

// --- MusicBrainz kinds ---

// MbzRecordingData is the MbzRecording kind's payload.
type MbzRecordingData struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	LengthMs      int      `json:"length_ms,omitempty"`
	ReleaseID     string   `json:"release_id,omitempty"`
	ReleaseTitle  string   `json:"release_title,omitempty"`
	ArtistCredits []string `json:"artist_credits"`
	ArtistIDs     []string `json:"artist_ids"`
}

func (r *MbzRecordingData) Haystack() []string {
	return append([]string{r.Title}, r.ArtistCredits...)
}
func (r *MbzRecordingData) Refids() []string { return dedupe([]string{r.ID}) }
func (r *MbzRecordingData) Links() []Link {
	links := make([]Link, 0, len(r.ArtistIDs))
	for _, id := range r.ArtistIDs {
		if id == "" {
			continue
		}
		links = append(links, Link{ToRefid: id, ToKind: MbzArtist})
	}
	return links
}

// MbzArtistData is the MbzArtist kind's payload.
type MbzArtistData struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	SortName string   `json:"sort_name,omitempty"`
	Type     string   `json:"type,omitempty"`
	Country  string   `json:"country,omitempty"`
	Genres   []string `json:"genres,omitempty"`
}

func (a *MbzArtistData) Haystack() []string {
	hs := []string{a.Name, a.SortName}
	return append(hs, a.Genres...)
}
func (a *MbzArtistData) Refids() []string { return dedupe([]string{a.ID}) }
func (a *MbzArtistData) Links() []Link    { return nil }
