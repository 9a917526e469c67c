package denylist

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/trackwarden/trackwarden/internal/domain/song"
)

// SpotifyClient defines the Spotify operations the source needs.
type SpotifyClient interface {
	BlockedSongs(ctx context.Context) ([]song.BlockedSong, error)
}

type SpotifySourceConfig struct {
	// TimeoutSeconds bounds one full playlist fetch including retries.
	TimeoutSeconds int `yaml:"timeout_seconds" mapstructure:"timeout_seconds" default:"120" validate:"gte=1"`
}

// SpotifySource reads blocked songs from the user's marked Spotify
// playlists through the web API.
type SpotifySource struct {
	client  SpotifyClient
	timeout time.Duration
}

// NewSpotifySource creates a source backed by the Spotify web API client.
func NewSpotifySource(client SpotifyClient, settings map[string]any) (*SpotifySource, error) {
	if client == nil {
		return nil, errors.New("spotify client is required")
	}

	var config SpotifySourceConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &SpotifySource{
		client:  client,
		timeout: time.Duration(config.TimeoutSeconds) * time.Second,
	}, nil
}

func (s *SpotifySource) Name() string {
	return "spotify"
}

func (s *SpotifySource) Fetch(ctx context.Context) ([]song.BlockedSong, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.BlockedSongs(ctx)
}
