// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration.
type Config struct {
	Spotify SpotifyConfig  `yaml:"spotify"`
	Player  PlayerConfig   `yaml:"player"`
	Log     LogConfig      `yaml:"log"`
	Sources []SourceConfig `yaml:"sources" validate:"dive"`
}

// SpotifyConfig represents Spotify Web API configuration.
type SpotifyConfig struct {
	// ClientID is the OAuth client id of a public (PKCE) application.
	ClientID string `yaml:"client_id" default:"a9cc0c11a3944da8a4f97ecfc92a972d" validate:"required"`
	// RedirectPort is the loopback port the authorization callback binds to.
	// It must match the redirect URI registered for the client id.
	RedirectPort int    `yaml:"redirect_port" default:"7185" validate:"gte=1,lte=65535"`
	Scope        string `yaml:"scope" default:"playlist-read-private"`
	// MarkerKeyword selects which of the user's playlists feed the
	// deny-list: any playlist whose description contains it is used.
	MarkerKeyword string `yaml:"marker_keyword" default:"trackwarden:block_songs"`
}

// PlayerConfig identifies the media player to watch and command.
type PlayerConfig struct {
	// BusName is the player's well-known D-Bus name.
	BusName string `yaml:"bus_name" default:"org.mpris.MediaPlayer2.spotify"`
	// URLHost is the host a now-playing URL must carry to be considered
	// an event from the target player.
	URLHost string `yaml:"url_host" default:"open.spotify.com"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info"`
}

// SourceConfig represents a single deny-list source.
type SourceConfig struct {
	Type     string         `yaml:"type" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// Load loads configuration from a YAML file. A missing file is not an
// error: all fields have usable defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if len(cfg.Sources) == 0 {
		cfg.Sources = []SourceConfig{
			{Type: "file"},
			{Type: "spotify"},
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("TRACKWARDEN_SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("TRACKWARDEN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
