// Package musicbrainz is an HTTP client adapter for the MusicBrainz web
// service, used to populate MbzArtist and MbzRecording kind objects and to
// serve the /mbz/* routes.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://musicbrainz.org/ws/2"

// Adapter is a rate-limited MusicBrainz API client.
type Adapter struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	baseURL string
}

// New creates a MusicBrainz adapter with the default base URL. MusicBrainz's
// anonymous API tier allows at most one request per second.
func New(logger *slog.Logger) *Adapter {
	return NewWithBaseURL(rate.NewLimiter(1, 1), logger, defaultBaseURL)
}

// NewWithBaseURL creates a MusicBrainz adapter with a custom limiter and
// base URL (for testing).
func NewWithBaseURL(limiter *rate.Limiter, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: limiter,
		logger:  logger.With(slog.String("component", "musicbrainz")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// SearchArtist searches MusicBrainz for artists matching the given name.
func (a *Adapter) SearchArtist(ctx context.Context, name string) ([]ArtistSearchResult, error) {
	params := url.Values{
		"query": {normalizeHyphens(name)},
		"fmt":   {"json"},
		"limit": {"25"},
	}
	reqURL := a.baseURL + "/artist?" + params.Encode()

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	results := make([]ArtistSearchResult, 0, len(resp.Artists))
	for _, ar := range resp.Artists {
		results = append(results, ArtistSearchResult{
			MusicBrainzID:  ar.ID,
			Name:           ar.Name,
			SortName:       ar.SortName,
			Type:           ar.Type,
			Disambiguation: ar.Disambiguation,
			Country:        ar.Country,
			Score:          ar.Score,
			Source:         "musicbrainz",
		})
	}
	return results, nil
}

// GetArtist fetches full metadata for an artist by their MusicBrainz ID.
func (a *Adapter) GetArtist(ctx context.Context, mbid string) (*ArtistMetadata, error) {
	params := url.Values{
		"inc": {"aliases+genres+tags+ratings+url-rels+artist-rels"},
		"fmt": {"json"},
	}
	reqURL := a.baseURL + "/artist/" + url.PathEscape(mbid) + "?" + params.Encode()

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var artist MBArtist
	if err := json.Unmarshal(body, &artist); err != nil {
		return nil, fmt.Errorf("parsing artist response: %w", err)
	}

	return mapArtist(&artist), nil
}

// GetReleaseGroups fetches the release groups attributed to an artist;
// these feed the MbzRecording "artist -> release groups -> releases ->
// recordings" update walk described by the Updater kind.
func (a *Adapter) GetReleaseGroups(ctx context.Context, mbid string) ([]MBReleaseGroup, error) {
	params := url.Values{
		"artist": {mbid},
		"fmt":    {"json"},
		"limit":  {"100"},
	}
	reqURL := a.baseURL + "/release-group?" + params.Encode()

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp MBReleaseGroupSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing release-group response: %w", err)
	}
	return resp.ReleaseGroups, nil
}

// GetRecordings fetches the recordings belonging to a release.
func (a *Adapter) GetRecordings(ctx context.Context, releaseID string) ([]MBRecording, error) {
	params := url.Values{
		"release": {releaseID},
		"fmt":     {"json"},
		"limit":   {"100"},
	}
	reqURL := a.baseURL + "/recording?" + params.Encode()

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp MBRecordingSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing recording response: %w", err)
	}
	return resp.Recordings, nil
}

// TestConnection verifies connectivity to the MusicBrainz API.
func (a *Adapter) TestConnection(ctx context.Context) error {
	params := url.Values{
		"query": {"test"},
		"fmt":   {"json"},
		"limit": {"1"},
	}
	reqURL := a.baseURL + "/artist?" + params.Encode()
	_, err := a.doRequest(ctx, reqURL)
	return err
}

// doRequest executes an HTTP GET with rate limiting and standard headers.
func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, &ErrUnavailable{Cause: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent())
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &ErrUnavailable{Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &ErrNotFound{ID: reqURL}
	}

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &ErrUnavailable{Cause: fmt.Errorf("HTTP %d", resp.StatusCode), RetryAfter: 2 * time.Second}
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &ErrUnavailable{Cause: fmt.Errorf("unexpected HTTP %d", resp.StatusCode)}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}

// mapArtist converts a MusicBrainz artist to the normalized ArtistMetadata
// shape this adapter returns.
func mapArtist(mb *MBArtist) *ArtistMetadata {
	meta := &ArtistMetadata{
		ProviderID:     mb.ID,
		MusicBrainzID:  mb.ID,
		Name:           mb.Name,
		SortName:       mb.SortName,
		Type:           mapArtistType(mb.Type),
		Gender:         strings.ToLower(mb.Gender),
		Disambiguation: mb.Disambiguation,
		Country:        mb.Country,
		URLs:           make(map[string]string),
	}

	if mb.LifeSpan.Begin != "" {
		if mb.Type == "Group" || mb.Type == "Orchestra" || mb.Type == "Choir" {
			meta.Formed = mb.LifeSpan.Begin
		} else {
			meta.Born = mb.LifeSpan.Begin
		}
	}
	if mb.LifeSpan.End != "" {
		if mb.Type == "Group" || mb.Type == "Orchestra" || mb.Type == "Choir" {
			meta.Disbanded = mb.LifeSpan.End
		} else {
			meta.Died = mb.LifeSpan.End
		}
	}

	for _, g := range mb.Genres {
		if g.Name != "" {
			meta.Genres = append(meta.Genres, g.Name)
		}
	}
	if len(meta.Genres) == 0 {
		for _, t := range mb.Tags {
			if t.Name != "" && t.Count > 0 {
				meta.Genres = append(meta.Genres, t.Name)
			}
		}
	}

	for _, alias := range mb.Aliases {
		if alias.Name != "" && alias.Name != mb.Name {
			meta.Aliases = append(meta.Aliases, alias.Name)
		}
	}

	for _, rel := range mb.Relations {
		switch {
		case rel.Type == "member of band" && rel.Artist != nil && rel.Direction == "backward":
			member := MemberInfo{
				Name:       rel.Artist.Name,
				MBID:       rel.Artist.ID,
				IsActive:   !rel.Ended,
				DateJoined: rel.Begin,
				DateLeft:   rel.End,
			}
			member.Instruments = append(member.Instruments, rel.Attributes...)
			meta.Members = append(meta.Members, member)
		case rel.URL != nil && rel.URL.Resource != "":
			if urlType := mapURLType(rel.Type); urlType != "" {
				meta.URLs[urlType] = rel.URL.Resource
			}
		}
	}

	return meta
}

func mapArtistType(mbType string) string {
	switch mbType {
	case "Person":
		return "solo"
	case "Group":
		return "group"
	case "Orchestra":
		return "orchestra"
	case "Choir":
		return "choir"
	case "Character":
		return "character"
	default:
		return strings.ToLower(mbType)
	}
}

func mapURLType(relType string) string {
	switch relType {
	case "official homepage":
		return "official"
	case "wikipedia":
		return "wikipedia"
	case "wikidata":
		return "wikidata"
	case "bandcamp":
		return "bandcamp"
	case "discogs":
		return "discogs"
	case "last.fm":
		return "lastfm"
	case "allmusic":
		return "allmusic"
	case "social network":
		return "social"
	case "streaming":
		return "streaming"
	default:
		return relType
	}
}

// normalizeHyphens replaces Unicode hyphen variants (U+2010, U+2011) that
// MusicBrainz's own data uses inconsistently with plain ASCII hyphens, so
// artist names like "a‐ha" match user queries for "a-ha".
func normalizeHyphens(s string) string {
	r := strings.NewReplacer("‐", "-", "‑", "-")
	return r.Replace(s)
}

func userAgent() string {
	return fmt.Sprintf("Covau/%s (https://github.com/covau-dev/covau)", version)
}

const version = "0.1.0"
