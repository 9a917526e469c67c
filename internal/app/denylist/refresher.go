package denylist

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/trackwarden/trackwarden/internal/domain/song"
)

// SnapshotStore persists assembled snapshots across daemon restarts.
type SnapshotStore interface {
	SaveSnapshot(snapshot song.Snapshot) error
	LoadSnapshot() song.Snapshot
}

// Refresher assembles the deny-list snapshot from all sources and hands the
// current snapshot to the enforcement loop. Snapshots are replaced
// wholesale: a refresh either swaps in a complete new snapshot or leaves
// the previous one untouched.
type Refresher struct {
	sources []Source
	store   SnapshotStore

	mu      sync.RWMutex
	current song.Snapshot
}

// NewRefresher creates a refresher that starts out with the last snapshot
// persisted by a previous run, so enforcement works before the first
// network refresh completes.
func NewRefresher(sources []Source, store SnapshotStore) *Refresher {
	r := &Refresher{sources: sources, store: store, current: store.LoadSnapshot()}
	if n := r.current.Len(); n > 0 {
		zlog.Info().Msgf("loaded %d blocked songs from cache", n)
	}
	return r
}

// Current returns the snapshot enforcement should match against right now.
func (r *Refresher) Current() song.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Refresh fetches every source and swaps in the combined result. If any
// source fails the previous snapshot stays in effect; a half-assembled
// snapshot would silently unblock songs of the failed source.
func (r *Refresher) Refresh(ctx context.Context) error {
	var songs []song.BlockedSong
	for _, source := range r.sources {
		fetched, err := source.Fetch(ctx)
		if err != nil {
			return errors.Wrapf(err, "failed to fetch blocked songs from source %s", source.Name())
		}
		zlog.Debug().Msgf("source %s contributed %d blocked songs", source.Name(), len(fetched))
		songs = append(songs, fetched...)
	}

	snapshot := song.Snapshot{Songs: songs}

	r.mu.Lock()
	r.current = snapshot
	r.mu.Unlock()

	if err := r.store.SaveSnapshot(snapshot); err != nil {
		zlog.Warn().Err(err).Msg("failed to persist deny-list snapshot")
	}

	zlog.Info().Msgf("deny-list refreshed: %d blocked songs", snapshot.Len())
	return nil
}
