// Package socket exposes the daemon's command interface on a unix socket.
// A client sends a single newline-terminated command per connection and
// reads the reply lines until the daemon closes the connection.
package socket

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/trackwarden/trackwarden/internal/domain/song"
)

const SocketFileName = "trackwarden.sock"

const (
	// CommandBlockCurrentSong appends the currently playing track to the
	// block file and skips it.
	CommandBlockCurrentSong = "block_current_song"
	// CommandLogin starts the OAuth login flow and replies with the URL
	// the user must open in a browser.
	CommandLogin = "login_to_spotify"
)

// Player reports and controls the currently playing track.
type Player interface {
	CurrentSong() (song.NowPlayingEvent, error)
	Next() error
}

// BlockFile appends songs to the local block file.
type BlockFile interface {
	Append(ev song.NowPlayingEvent) error
}

// Login starts an interactive login and returns the authorization URL.
type Login interface {
	LoginStart() (string, error)
}

// Server accepts daemon commands on a unix socket in the runtime directory.
type Server struct {
	path      string
	player    Player
	blockFile BlockFile
	login     Login
}

// NewServer creates a command server listening at dir/trackwarden.sock.
func NewServer(dir string, player Player, blockFile BlockFile, login Login) *Server {
	return &Server{
		path:      filepath.Join(dir, SocketFileName),
		player:    player,
		blockFile: blockFile,
		login:     login,
	}
}

// Path returns the socket path clients connect to.
func (s *Server) Path() string {
	return s.path
}

// Serve listens on the socket until ctx is cancelled. A socket file left
// over from a previous run is removed first; the daemon runs as a single
// instance per user, so a pre-existing file is always stale.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove stale socket file")
	}

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return errors.Wrap(err, "failed to listen on unix socket")
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	zlog.Info().Msgf("command socket listening at %s", s.path)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to accept connection")
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	logger := zlog.With().Str("conn_id", connID).Logger()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read command")
		return
	}

	command := strings.TrimSpace(line)
	logger.Info().Msgf("received command: %s", command)

	reply, err := s.dispatch(command)
	if err != nil {
		logger.Error().Err(err).Msgf("command failed: %s", command)
		fmt.Fprintf(conn, "ERROR: %v\n", err)
		return
	}
	fmt.Fprintln(conn, reply)
}

func (s *Server) dispatch(command string) (string, error) {
	switch command {
	case CommandBlockCurrentSong:
		return s.blockCurrentSong()

	case CommandLogin:
		return s.login.LoginStart()

	default:
		return "", errors.Newf("unknown command: %s", command)
	}
}

func (s *Server) blockCurrentSong() (string, error) {
	ev, err := s.player.CurrentSong()
	if err != nil {
		return "", errors.Wrap(err, "failed to determine current song")
	}

	if err := s.blockFile.Append(ev); err != nil {
		return "", errors.Wrap(err, "failed to append song to block file")
	}

	zlog.Info().Msgf("blocked current song: %s", ev)

	if err := s.player.Next(); err != nil {
		return "", errors.Wrap(err, "failed to skip blocked song")
	}
	return "OK", nil
}
