// Package main provides the control CLI that talks to a running daemon.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/trackwarden/trackwarden/internal/infra/paths"
	"github.com/trackwarden/trackwarden/internal/infra/socket"
)

var (
	app        = kingpin.New("trackwardenctl", "Control client for the trackwarden daemon")
	socketPath = app.Flag("socket", "Path to the daemon socket (default: <runtime dir>/"+socket.SocketFileName+")").String()

	// block command
	blockCmd = app.Command("block", "Block the currently playing song and skip it")

	// login command
	loginCmd = app.Command("login", "Start the Spotify login flow and print the URL to open")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	path := *socketPath
	if path == "" {
		runtimeDir, err := paths.RuntimeDir()
		if err != nil {
			fail("Failed to resolve runtime directory: %v", err)
		}
		path = socket.NewServer(runtimeDir, nil, nil, nil).Path()
	}

	switch command {
	case blockCmd.FullCommand():
		reply := send(path, socket.CommandBlockCurrentSong)
		fmt.Println(reply)

	case loginCmd.FullCommand():
		reply := send(path, socket.CommandLogin)
		fmt.Printf("Open this URL in a browser to log in:\n%s\n", reply)
	}
}

// send delivers one command to the daemon and returns its reply line.
func send(path, command string) string {
	conn, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		fail("Failed to connect to daemon at %s: %v (is the daemon running?)", path, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintln(conn, command); err != nil {
		fail("Failed to send command: %v", err)
	}

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		fail("Failed to read reply: %v", err)
	}
	return reply[:len(reply)-1]
}

func fail(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}
