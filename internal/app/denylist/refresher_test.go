package denylist

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackwarden/trackwarden/internal/domain/song"
)

type stubSource struct {
	name  string
	songs []song.BlockedSong
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(_ context.Context) ([]song.BlockedSong, error) {
	s.calls++
	return s.songs, s.err
}

type memoryStore struct {
	snapshot song.Snapshot
	saves    int
	saveErr  error
}

func (m *memoryStore) SaveSnapshot(snapshot song.Snapshot) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snapshot = snapshot
	m.saves++
	return nil
}

func (m *memoryStore) LoadSnapshot() song.Snapshot {
	return m.snapshot
}

func TestRefresherStartsWithPersistedSnapshot(t *testing.T) {
	store := &memoryStore{snapshot: song.Snapshot{Songs: []song.BlockedSong{
		{SpotifyURL: "https://open.spotify.com/track/aaa", PlaylistName: "blocked"},
	}}}

	r := NewRefresher(nil, store)

	snapshot := r.Current()
	_, found := snapshot.Lookup("https://open.spotify.com/track/aaa")
	assert.True(t, found)
}

func TestRefreshCombinesAllSources(t *testing.T) {
	store := &memoryStore{}
	file := &stubSource{name: "file", songs: []song.BlockedSong{
		{SpotifyURL: "https://open.spotify.com/track/aaa", PlaylistName: "blocked_songs.conf"},
	}}
	spotify := &stubSource{name: "spotify", songs: []song.BlockedSong{
		{SpotifyURL: "https://open.spotify.com/track/bbb", PlaylistName: "blocked"},
	}}

	r := NewRefresher([]Source{file, spotify}, store)
	require.NoError(t, r.Refresh(context.Background()))

	snapshot := r.Current()
	assert.Equal(t, 2, snapshot.Len())

	_, found := snapshot.Lookup("https://open.spotify.com/track/aaa")
	assert.True(t, found)
	_, found = snapshot.Lookup("https://open.spotify.com/track/bbb")
	assert.True(t, found)

	assert.Equal(t, 1, store.saves)
}

func TestRefreshKeepsPreviousSnapshotOnSourceFailure(t *testing.T) {
	store := &memoryStore{snapshot: song.Snapshot{Songs: []song.BlockedSong{
		{SpotifyURL: "https://open.spotify.com/track/old", PlaylistName: "blocked"},
	}}}
	failing := &stubSource{name: "spotify", err: errors.New("api unavailable")}

	r := NewRefresher([]Source{failing}, store)
	err := r.Refresh(context.Background())

	require.Error(t, err)
	snapshot := r.Current()
	_, found := snapshot.Lookup("https://open.spotify.com/track/old")
	assert.True(t, found)
	assert.Equal(t, 0, store.saves)
}

func TestRefreshSurvivesPersistFailure(t *testing.T) {
	store := &memoryStore{saveErr: errors.New("disk full")}
	source := &stubSource{name: "file", songs: []song.BlockedSong{
		{SpotifyURL: "https://open.spotify.com/track/aaa", PlaylistName: "blocked_songs.conf"},
	}}

	r := NewRefresher([]Source{source}, store)
	require.NoError(t, r.Refresh(context.Background()))

	snapshot := r.Current()
	assert.Equal(t, 1, snapshot.Len())
}

func TestRefreshReplacesSnapshotWholesale(t *testing.T) {
	store := &memoryStore{}
	source := &stubSource{name: "file", songs: []song.BlockedSong{
		{SpotifyURL: "https://open.spotify.com/track/aaa", PlaylistName: "blocked_songs.conf"},
	}}

	r := NewRefresher([]Source{source}, store)
	require.NoError(t, r.Refresh(context.Background()))

	source.songs = []song.BlockedSong{
		{SpotifyURL: "https://open.spotify.com/track/bbb", PlaylistName: "blocked_songs.conf"},
	}
	require.NoError(t, r.Refresh(context.Background()))

	snapshot := r.Current()
	_, found := snapshot.Lookup("https://open.spotify.com/track/aaa")
	assert.False(t, found)
	_, found = snapshot.Lookup("https://open.spotify.com/track/bbb")
	assert.True(t, found)
}
