// Package song provides the blocked-song domain entities.
package song

import (
	"fmt"
	"net/url"
	"strings"
)

// BlockedSong represents a track the user never wants to hear again.
// Identity is the canonical Spotify URL; the playlist name is kept for
// log attribution only.
type BlockedSong struct {
	SpotifyURL   string // Canonical track URL (tracking query params stripped)
	PlaylistName string // Playlist the song was found in
}

// Snapshot is a full deny-list produced by one refresh. It is always
// replaced wholesale, never mutated in place.
type Snapshot struct {
	Songs []BlockedSong
}

// Lookup returns the blocked song matching the given URL, if any.
func (s *Snapshot) Lookup(spotifyURL string) (BlockedSong, bool) {
	for _, b := range s.Songs {
		if b.SpotifyURL == spotifyURL {
			return b, true
		}
	}
	return BlockedSong{}, false
}

// Len returns the number of blocked songs in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Songs)
}

// NowPlayingEvent represents a single "now playing" notification from the
// media player. Artist and title are best-effort and may be empty.
type NowPlayingEvent struct {
	URL    string
	Artist string
	Title  string
}

// String renders the event's attributes for logging.
func (e NowPlayingEvent) String() string {
	artist := e.Artist
	if artist == "" {
		artist = "Unknown"
	}
	title := e.Title
	if title == "" {
		title = "Unknown"
	}
	return fmt.Sprintf("Artist: %s, Title: %s, URL: %s", artist, title, e.URL)
}

// CanonicalURL strips the query component from a Spotify share link.
// Links copied via "share" in the Spotify client carry a tracking param
// ('?si=...') that the player's own notifications do not, so the query
// must be dropped for matching to work.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
