// Package denylist assembles the set of blocked songs from its configured
// sources and keeps the current snapshot available to the enforcement loop.
package denylist

import (
	"context"

	"github.com/trackwarden/trackwarden/internal/domain/song"
)

// Source supplies blocked songs from one origin (local file, Spotify
// playlists, ...).
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Fetch returns every blocked song this source currently knows.
	Fetch(ctx context.Context) ([]song.BlockedSong, error)
}
