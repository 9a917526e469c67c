package denylist

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/trackwarden/trackwarden/internal/infra/config"
)

// NewSourcesFromConfig creates the deny-list sources from configuration.
func NewSourcesFromConfig(cfg *config.Config, configDir string, spotify SpotifyClient) ([]Source, error) {
	if len(cfg.Sources) == 0 {
		return nil, errors.New("no deny-list sources configured")
	}

	var sources []Source

	for i, scfg := range cfg.Sources {
		var source Source
		var err error
		zlog.Debug().Msgf("creating deny-list source: index=%d type=%s settings=%+v", i+1, scfg.Type, scfg.Settings)
		switch scfg.Type {
		case "file":
			source, err = NewFileSource(configDir, scfg.Settings)

		case "spotify":
			source, err = NewSpotifySource(spotify, scfg.Settings)

		default:
			return nil, errors.Newf("unsupported source type: %s (source index %d)", scfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create source (index %d, type %s)", i, scfg.Type)
		}

		sources = append(sources, source)
		zlog.Info().Msgf("registered deny-list source: index=%d type=%s", i+1, scfg.Type)
	}

	return sources, nil
}
