// Package spotify implements the authenticated Spotify Web API client used
// to resolve the deny-list, including the OAuth token lifecycle and the
// authorization bootstrap.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/trackwarden/trackwarden/internal/domain/song"
)

const (
	defaultAPIBaseURL = "https://api.spotify.com"
	accountsBaseURL   = "https://accounts.spotify.com"

	playlistsMaxPerPage = 50

	// playlistFields trims the single-playlist response to what the
	// deny-list needs, to keep the payload small.
	playlistFields = "id,uri,name,description,href,snapshot_id," +
		"tracks(next,offset,limit,total)," +
		"tracks.items(is_local,track(uri,external_urls,is_local,type))"
)

// ErrRateLimitExceeded indicates the API kept answering 429 until the
// backoff policy was exhausted.
var ErrRateLimitExceeded = errors.New("spotify rate limit exceeded")

// SnapshotCache caches resolved per-playlist deny-list entries keyed by the
// playlist's snapshot id, so unchanged playlists are not re-fetched.
type SnapshotCache interface {
	LoadPlaylist(playlistURI, snapshotID string) ([]song.BlockedSong, bool, error)
	StorePlaylist(playlistURI, snapshotID string, songs []song.BlockedSong) error
}

// Client performs authenticated Spotify Web API calls with automatic
// 401-refresh-retry and 429-backoff-retry handling.
type Client struct {
	tokens        *TokenHandle
	cache         SnapshotCache
	httpClient    *http.Client
	baseURL       string
	markerKeyword string
	backoff       Backoff
	sleep         func(ctx context.Context, d time.Duration) error
}

// Config represents client configuration.
type Config struct {
	// MarkerKeyword selects deny-list playlists by description.
	MarkerKeyword string
}

// New creates a Spotify API client. cache may be nil, in which case every
// deny-list refresh re-fetches all relevant playlists.
func New(cfg Config, tokens *TokenHandle, cache SnapshotCache) *Client {
	return &Client{
		tokens:        tokens,
		cache:         cache,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       defaultAPIBaseURL,
		markerKeyword: cfg.MarkerKeyword,
		backoff:       DefaultBackoff(),
		sleep:         sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// callWithAuth executes a GET against the given URL with the current bearer
// token and decodes the JSON response into T.
//
// A 401 triggers one token refresh followed by one retry; a 401 on the
// retried call fails without a second refresh. A 429 sleeps per the backoff
// policy and retries until the policy is exhausted (the sleep is the one
// intentional blocking point of the client). Anything else fails immediately.
func callWithAuth[T any](ctx context.Context, c *Client, requestURL string) (T, error) {
	var zero T

	retriedAfter401 := false
	backoff := c.backoff

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return zero, errors.Wrap(err, "failed to create request")
		}
		c.tokens.Authorize(req)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return zero, errors.Wrap(err, "request failed")
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			if retriedAfter401 {
				// The refreshed token was rejected too; retrying
				// further cannot help.
				return zero, errors.New("spotify rejected the request with 401 after token refresh")
			}
			zlog.Info().Msg("Spotify returned 401, token refresh may be required.")
			if err := c.tokens.Refresh(ctx); err != nil {
				if errors.Is(err, ErrRefreshFailed) {
					zlog.Error().Msg("Unable to refresh spotify token. The user must login again.")
				}
				return zero, err
			}
			zlog.Info().Msg("Token refreshed successfully.")
			retriedAfter401 = true
			continue

		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			delay, next, ok := backoff.Next()
			if !ok {
				return zero, ErrRateLimitExceeded
			}
			zlog.Warn().Msgf("Spotify returned 429, retrying in %v", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return zero, err
			}
			backoff = next
			continue

		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			resp.Body.Close()
			return zero, errors.Newf("spotify returned unexpected status %d for %s", resp.StatusCode, requestURL)
		}

		var out T
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			return zero, errors.Wrap(err, "failed to decode spotify response")
		}
		return out, nil
	}
}

// relevantPlaylists lists all of the user's playlists and keeps those whose
// description contains the marker keyword.
func (c *Client) relevantPlaylists(ctx context.Context) ([]playlistSummary, error) {
	initial := fmt.Sprintf("%s/v1/me/playlists?limit=%d", c.baseURL, playlistsMaxPerPage)

	pages, err := fetchAllPages(initial, func(url string) (pagingObject[playlistSummary], error) {
		return callWithAuth[pagingObject[playlistSummary]](ctx, c, url)
	})
	if err != nil {
		return nil, err
	}

	var relevant []playlistSummary
	for _, p := range flattenPages(pages) {
		if c.markerKeyword != "" && strings.Contains(p.Description, c.markerKeyword) {
			relevant = append(relevant, p)
		}
	}

	zlog.Debug().Msgf("%d of the user's playlists carry the marker keyword", len(relevant))
	return relevant, nil
}

// playlistByID fetches a single playlist with the field projection applied.
func (c *Client) playlistByID(ctx context.Context, id string) (playlistDetail, error) {
	url := fmt.Sprintf("%s/v1/playlists/%s?fields=%s", c.baseURL, id, playlistFields)
	return callWithAuth[playlistDetail](ctx, c, url)
}

// playlistTracks returns the canonical URLs of all proper tracks in the
// playlist: podcast episodes and locally hosted tracks are skipped, and the
// tracking query param is stripped from each URL.
func (c *Client) playlistTracks(ctx context.Context, playlist playlistDetail) ([]string, error) {
	urls := trackURLsFromPage(playlist.Tracks.Items)

	if playlist.Tracks.Next != "" {
		pages, err := fetchAllPages(playlist.Tracks.Next, func(url string) (pagingObject[playlistTrackItem], error) {
			return callWithAuth[pagingObject[playlistTrackItem]](ctx, c, url)
		})
		if err != nil {
			return nil, err
		}
		for _, page := range pages {
			urls = append(urls, trackURLsFromPage(page.Items)...)
		}
	}

	return urls, nil
}

func trackURLsFromPage(items []playlistTrackItem) []string {
	var urls []string
	for _, item := range items {
		if item.Track.Type == "episode" {
			// Podcast episodes are ignored, only music tracks are
			// supported.
			continue
		}
		if item.IsLocal || item.Track.IsLocal {
			// Local tracks carry no external URL and cannot be
			// matched against player events.
			continue
		}
		raw := item.Track.ExternalURLs.Spotify
		if raw == "" {
			continue
		}
		u, err := song.CanonicalURL(raw)
		if err != nil {
			zlog.Warn().Msgf("Skipping track with unparsable URL %q: %v", raw, err)
			continue
		}
		urls = append(urls, u)
	}
	return urls
}

// BlockedSongs resolves the full deny-list from all marker playlists.
// A playlist that cannot be fetched is logged and contributes zero entries;
// it never aborts the whole refresh. When a snapshot cache is configured and
// a playlist's snapshot id is unchanged, its cached entries are reused
// without re-fetching the track listing.
func (c *Client) BlockedSongs(ctx context.Context) ([]song.BlockedSong, error) {
	playlists, err := c.relevantPlaylists(ctx)
	if err != nil {
		return nil, err
	}

	var blocked []song.BlockedSong
	for _, summary := range playlists {
		blocked = append(blocked, c.blockedSongsFromPlaylist(ctx, summary)...)
	}
	return blocked, nil
}

func (c *Client) blockedSongsFromPlaylist(ctx context.Context, summary playlistSummary) []song.BlockedSong {
	if c.cache != nil && summary.SnapshotID != "" {
		cached, ok, err := c.cache.LoadPlaylist(summary.URI, summary.SnapshotID)
		if err != nil {
			zlog.Warn().Msgf("Unable to read playlist cache for %s: %v", summary.Name, err)
		} else if ok {
			zlog.Debug().Msgf("Playlist %q unchanged (snapshot %s), using %d cached entries",
				summary.Name, summary.SnapshotID, len(cached))
			return cached
		}
	}

	playlist, err := c.playlistByID(ctx, summary.ID)
	if err != nil {
		zlog.Error().Msgf("Cannot fetch playlist %s: %v", summary.Name, err)
		return nil
	}

	urls, err := c.playlistTracks(ctx, playlist)
	if err != nil {
		zlog.Error().Msgf("Cannot fetch tracks of playlist %s: %v", playlist.Name, err)
		return nil
	}

	songs := make([]song.BlockedSong, 0, len(urls))
	for _, u := range urls {
		songs = append(songs, song.BlockedSong{
			SpotifyURL:   u,
			PlaylistName: playlist.Name,
		})
	}

	if c.cache != nil && playlist.SnapshotID != "" {
		if err := c.cache.StorePlaylist(playlist.URI, playlist.SnapshotID, songs); err != nil {
			zlog.Warn().Msgf("Unable to cache playlist %s: %v", playlist.Name, err)
		}
	}

	return songs
}
