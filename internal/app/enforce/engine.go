// Package enforce decides for each track change whether the track must be
// skipped and issues the skip command.
package enforce

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/trackwarden/trackwarden/internal/domain/song"
)

// Player issues playback commands to the watched media player.
type Player interface {
	Next() error
}

// DenyList provides the current deny-list snapshot and can refresh it.
type DenyList interface {
	Current() song.Snapshot
	Refresh(ctx context.Context) error
}

// Engine matches incoming track changes against the deny-list. Matching
// runs in two phases: the first pass evaluates against the in-memory
// snapshot with no I/O at all, so a blocked song is skipped immediately. A
// miss triggers at most one deny-list refresh before the final verdict;
// after a refreshed snapshot the verdict stands, which keeps one event from
// ever causing more than one round trip.
type Engine struct {
	denylist DenyList
	player   Player
}

// NewEngine creates an enforcement engine.
func NewEngine(denylist DenyList, player Player) *Engine {
	return &Engine{denylist: denylist, player: player}
}

// HandleSongChange evaluates one track change event end to end.
func (e *Engine) HandleSongChange(ctx context.Context, ev song.NowPlayingEvent) {
	zlog.Info().Msgf("new song: %s", ev)

	refreshed := false
	for {
		snapshot := e.denylist.Current()
		if blocked, ok := snapshot.Lookup(ev.URL); ok {
			e.skip(ev, blocked)
			return
		}
		if refreshed {
			break
		}
		refreshed = true

		if err := e.denylist.Refresh(ctx); err != nil {
			zlog.Warn().Err(err).Msg("deny-list refresh failed, verdict based on cached snapshot")
			break
		}
	}

	zlog.Info().Msgf("[NOT BLOCKED] %s", ev)
}

func (e *Engine) skip(ev song.NowPlayingEvent, blocked song.BlockedSong) {
	zlog.Info().Msgf("[BLOCKED] via playlist %s: %s", blocked.PlaylistName, ev)
	if err := e.player.Next(); err != nil {
		zlog.Error().Err(err).Msg("failed to skip blocked song")
	}
}

// Run consumes track change events until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, events <-chan song.NowPlayingEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.HandleSongChange(ctx, ev)
		}
	}
}
