// Package main provides the daemon entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/trackwarden/trackwarden/internal/app/denylist"
	"github.com/trackwarden/trackwarden/internal/app/enforce"
	"github.com/trackwarden/trackwarden/internal/domain/song"
	"github.com/trackwarden/trackwarden/internal/infra/blockfile"
	"github.com/trackwarden/trackwarden/internal/infra/config"
	"github.com/trackwarden/trackwarden/internal/infra/logger"
	"github.com/trackwarden/trackwarden/internal/infra/mpris"
	"github.com/trackwarden/trackwarden/internal/infra/paths"
	"github.com/trackwarden/trackwarden/internal/infra/socket"
	"github.com/trackwarden/trackwarden/internal/infra/spotify"
	"github.com/trackwarden/trackwarden/internal/infra/store"
)

var (
	app        = kingpin.New("trackwarden", "Spotify song blocker daemon")
	configPath = app.Flag("config", "Path to config file (default: <config dir>/config.yaml)").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-sources command
	listSourcesCmd = app.Command("list-sources", "List available deny-list source types and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the daemon (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listSourcesCmd.FullCommand() {
		printSources()
		return
	}

	configDir, err := paths.ConfigDir()
	if err != nil {
		panic(fmt.Sprintf("Failed to resolve config directory: %v", err))
	}

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, "config.yaml")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	loggerConfig := logger.Config{
		Output: cfg.Log.Output,
		Level:  cfg.Log.Level,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("loaded config from %s", cfgPath)

	if err := run(cfg, configDir); err != nil {
		zlog.Error().Msgf("Daemon error: %v", err)
		os.Exit(1)
	}
}

// run executes the daemon logic. Using a separate function ensures defer
// statements are executed even when returning with an error.
func run(cfg *config.Config, configDir string) error {
	cacheDir, err := paths.CacheDir()
	if err != nil {
		return err
	}
	stateDir, err := paths.StateDir()
	if err != nil {
		return err
	}
	runtimeDir, err := paths.RuntimeDir()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Token lifecycle
	tokenStore := store.NewTokenStore(stateDir)
	initialToken, err := tokenStore.LoadToken()
	if err != nil {
		return err
	}
	tokens := spotify.NewTokenHandle(cfg.Spotify.ClientID, tokenStore, initialToken)

	// Deny-list sources and refresher
	snapshotCache := store.NewSnapshotCache(cacheDir)
	spotifyClient := spotify.New(spotify.Config{
		MarkerKeyword: cfg.Spotify.MarkerKeyword,
	}, tokens, snapshotCache)

	sources, err := denylist.NewSourcesFromConfig(cfg, configDir, spotifyClient)
	if err != nil {
		return err
	}
	refresher := denylist.NewRefresher(sources, snapshotCache)

	backgroundRefresh := func() {
		go func() {
			if err := refresher.Refresh(ctx); err != nil {
				zlog.Warn().Err(err).Msg("deny-list refresh failed")
			}
		}()
	}

	// Authorization bootstrap
	authenticator := spotify.NewAuthenticator(spotify.AuthConfig{
		ClientID:     cfg.Spotify.ClientID,
		RedirectPort: cfg.Spotify.RedirectPort,
		Scope:        cfg.Spotify.Scope,
	}, tokens, backgroundRefresh)

	if tokens.HasToken() {
		backgroundRefresh()
	} else {
		url, err := authenticator.LoginStart()
		if err != nil {
			return err
		}
		zlog.Info().Msgf("no Spotify token found, open this URL to log in: %s", url)
	}

	// Player monitor
	monitor, err := mpris.NewMonitor(mpris.Config{
		BusName: cfg.Player.BusName,
		URLHost: cfg.Player.URLHost,
	})
	if err != nil {
		return err
	}
	defer monitor.Close()

	events := make(chan song.NowPlayingEvent, 16)
	go monitor.Events(ctx, events)

	// Enforcement
	engine := enforce.NewEngine(refresher, monitor)
	go engine.Run(ctx, events)

	// Command socket
	blockFile := blockfile.New(configDir)
	commandServer := socket.NewServer(runtimeDir, monitor, blockFile, authenticator)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := commandServer.Serve(ctx); err != nil {
			serverErrCh <- err
		}
	}()

	zlog.Info().Msgf("watching player %s", cfg.Player.BusName)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return err
	}

	cancel()
	zlog.Info().Msg("Daemon stopped")
	return nil
}

// printSources prints available deny-list source types.
func printSources() {
	fmt.Println("Available deny-list sources:")
	fmt.Printf("  %-10s - reads %s from the config directory\n", "file", blockfile.FileName)
	fmt.Printf("  %-10s - playlists whose description contains the marker keyword\n", "spotify")
}
