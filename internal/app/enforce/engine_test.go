package enforce

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trackwarden/trackwarden/internal/domain/song"
)

type fakeDenyList struct {
	snapshot     song.Snapshot
	afterRefresh *song.Snapshot
	refreshErr   error
	refreshCalls int
}

func (f *fakeDenyList) Current() song.Snapshot {
	return f.snapshot
}

func (f *fakeDenyList) Refresh(_ context.Context) error {
	f.refreshCalls++
	if f.refreshErr != nil {
		return f.refreshErr
	}
	if f.afterRefresh != nil {
		f.snapshot = *f.afterRefresh
	}
	return nil
}

type fakePlayer struct {
	nextCalls int
	nextErr   error
}

func (f *fakePlayer) Next() error {
	f.nextCalls++
	return f.nextErr
}

func snapshotOf(songs ...song.BlockedSong) song.Snapshot {
	return song.Snapshot{Songs: songs}
}

func TestBlockedSongSkippedWithoutRefresh(t *testing.T) {
	denylist := &fakeDenyList{snapshot: snapshotOf(
		song.BlockedSong{SpotifyURL: "https://open.spotify.com/track/A", PlaylistName: "Chill"},
	)}
	player := &fakePlayer{}
	engine := NewEngine(denylist, player)

	engine.HandleSongChange(context.Background(), song.NowPlayingEvent{URL: "https://open.spotify.com/track/A"})

	assert.Equal(t, 1, player.nextCalls)
	assert.Equal(t, 0, denylist.refreshCalls, "a hit in the current snapshot must not trigger any network call")
}

func TestMissTriggersOneRefreshThenSkips(t *testing.T) {
	fresh := snapshotOf(
		song.BlockedSong{SpotifyURL: "https://open.spotify.com/track/B", PlaylistName: "Gym"},
	)
	denylist := &fakeDenyList{snapshot: snapshotOf(), afterRefresh: &fresh}
	player := &fakePlayer{}
	engine := NewEngine(denylist, player)

	engine.HandleSongChange(context.Background(), song.NowPlayingEvent{URL: "https://open.spotify.com/track/B"})

	assert.Equal(t, 1, denylist.refreshCalls)
	assert.Equal(t, 1, player.nextCalls)
}

func TestMissAfterRefreshNeverRefreshesAgain(t *testing.T) {
	denylist := &fakeDenyList{snapshot: snapshotOf()}
	player := &fakePlayer{}
	engine := NewEngine(denylist, player)

	engine.HandleSongChange(context.Background(), song.NowPlayingEvent{URL: "https://open.spotify.com/track/C"})

	assert.Equal(t, 1, denylist.refreshCalls, "exactly one reconciliation refresh per event")
	assert.Equal(t, 0, player.nextCalls)
}

func TestRefreshFailureFallsBackToCachedVerdict(t *testing.T) {
	denylist := &fakeDenyList{snapshot: snapshotOf(), refreshErr: errors.New("no token")}
	player := &fakePlayer{}
	engine := NewEngine(denylist, player)

	engine.HandleSongChange(context.Background(), song.NowPlayingEvent{URL: "https://open.spotify.com/track/D"})

	assert.Equal(t, 1, denylist.refreshCalls)
	assert.Equal(t, 0, player.nextCalls)
}

func TestSkipFailureDoesNotPanic(t *testing.T) {
	denylist := &fakeDenyList{snapshot: snapshotOf(
		song.BlockedSong{SpotifyURL: "https://open.spotify.com/track/A", PlaylistName: "Chill"},
	)}
	player := &fakePlayer{nextErr: errors.New("player gone")}
	engine := NewEngine(denylist, player)

	engine.HandleSongChange(context.Background(), song.NowPlayingEvent{URL: "https://open.spotify.com/track/A"})

	assert.Equal(t, 1, player.nextCalls)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	denylist := &fakeDenyList{snapshot: snapshotOf()}
	engine := NewEngine(denylist, &fakePlayer{})

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan song.NowPlayingEvent)

	done := make(chan struct{})
	go func() {
		engine.Run(ctx, events)
		close(done)
	}()

	cancel()
	<-done
}

func TestRunProcessesEvents(t *testing.T) {
	denylist := &fakeDenyList{snapshot: snapshotOf(
		song.BlockedSong{SpotifyURL: "https://open.spotify.com/track/A", PlaylistName: "Chill"},
	)}
	player := &fakePlayer{}
	engine := NewEngine(denylist, player)

	events := make(chan song.NowPlayingEvent, 1)
	events <- song.NowPlayingEvent{URL: "https://open.spotify.com/track/A"}
	close(events)

	engine.Run(context.Background(), events)

	assert.Equal(t, 1, player.nextCalls)
}
