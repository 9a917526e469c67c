package socket

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackwarden/trackwarden/internal/domain/song"
)

type fakePlayer struct {
	current    song.NowPlayingEvent
	currentErr error
	nextCalls  int
}

func (f *fakePlayer) CurrentSong() (song.NowPlayingEvent, error) {
	return f.current, f.currentErr
}

func (f *fakePlayer) Next() error {
	f.nextCalls++
	return nil
}

type fakeBlockFile struct {
	appended []song.NowPlayingEvent
	err      error
}

func (f *fakeBlockFile) Append(ev song.NowPlayingEvent) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, ev)
	return nil
}

type fakeLogin struct {
	url string
	err error
}

func (f *fakeLogin) LoginStart() (string, error) {
	return f.url, f.err
}

func startServer(t *testing.T, player *fakePlayer, blockFile *fakeBlockFile, login *fakeLogin) *Server {
	t.Helper()

	srv := NewServer(t.TempDir(), player, blockFile, login)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	require.Eventually(t, func() bool {
		_, err := os.Stat(srv.Path())
		return err == nil
	}, time.Second, 5*time.Millisecond)

	return srv
}

func sendCommand(t *testing.T, path, command string) string {
	t.Helper()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(command + "\n"))
	require.NoError(t, err)

	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	return reply
}

func TestBlockCurrentSong(t *testing.T) {
	player := &fakePlayer{current: song.NowPlayingEvent{
		URL:    "https://open.spotify.com/track/abc",
		Artist: "Some Artist",
		Title:  "Some Title",
	}}
	blockFile := &fakeBlockFile{}
	srv := startServer(t, player, blockFile, &fakeLogin{})

	reply := sendCommand(t, srv.Path(), CommandBlockCurrentSong)

	assert.Equal(t, "OK\n", reply)
	require.Len(t, blockFile.appended, 1)
	assert.Equal(t, player.current, blockFile.appended[0])
	assert.Equal(t, 1, player.nextCalls)
}

func TestBlockCurrentSongNoTrackPlaying(t *testing.T) {
	player := &fakePlayer{currentErr: errors.New("player reported no current track")}
	blockFile := &fakeBlockFile{}
	srv := startServer(t, player, blockFile, &fakeLogin{})

	reply := sendCommand(t, srv.Path(), CommandBlockCurrentSong)

	assert.Contains(t, reply, "ERROR:")
	assert.Empty(t, blockFile.appended)
	assert.Equal(t, 0, player.nextCalls)
}

func TestBlockCurrentSongAppendFailureDoesNotSkip(t *testing.T) {
	player := &fakePlayer{current: song.NowPlayingEvent{URL: "https://open.spotify.com/track/abc"}}
	blockFile := &fakeBlockFile{err: errors.New("disk full")}
	srv := startServer(t, player, blockFile, &fakeLogin{})

	reply := sendCommand(t, srv.Path(), CommandBlockCurrentSong)

	assert.Contains(t, reply, "ERROR:")
	assert.Equal(t, 0, player.nextCalls)
}

func TestLoginRepliesWithAuthorizationURL(t *testing.T) {
	login := &fakeLogin{url: "https://accounts.spotify.com/authorize?client_id=abc"}
	srv := startServer(t, &fakePlayer{}, &fakeBlockFile{}, login)

	reply := sendCommand(t, srv.Path(), CommandLogin)

	assert.Equal(t, login.url+"\n", reply)
}

func TestUnknownCommand(t *testing.T) {
	srv := startServer(t, &fakePlayer{}, &fakeBlockFile{}, &fakeLogin{})

	reply := sendCommand(t, srv.Path(), "make_coffee")

	assert.Contains(t, reply, "ERROR: unknown command")
}

func TestServeRemovesStaleSocketFile(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, SocketFileName)
	require.NoError(t, os.WriteFile(stale, nil, 0600))

	srv := NewServer(dir, &fakePlayer{}, &fakeBlockFile{}, &fakeLogin{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", srv.Path())
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
