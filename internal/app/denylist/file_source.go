package denylist

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/trackwarden/trackwarden/internal/domain/song"
	"github.com/trackwarden/trackwarden/internal/infra/blockfile"
)

type FileSourceConfig struct {
	// Dir overrides the directory that holds the block file. Empty means
	// the application config directory.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// FileSource reads blocked songs from the local block file.
type FileSource struct {
	file *blockfile.File
}

// NewFileSource creates a source backed by the block file in configDir,
// unless the settings point somewhere else.
func NewFileSource(configDir string, settings map[string]any) (*FileSource, error) {
	var config FileSourceConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	dir := config.Dir
	if dir == "" {
		dir = configDir
	}
	return &FileSource{file: blockfile.New(dir)}, nil
}

func (s *FileSource) Name() string {
	return blockfile.FileName
}

// Fetch re-reads the block file on every call so edits made while the
// daemon runs are picked up by the next refresh.
func (s *FileSource) Fetch(_ context.Context) ([]song.BlockedSong, error) {
	urls, err := s.file.URLs()
	if err != nil {
		return nil, err
	}

	songs := make([]song.BlockedSong, 0, len(urls))
	for url := range urls {
		songs = append(songs, song.BlockedSong{SpotifyURL: url, PlaylistName: blockfile.FileName})
	}
	sort.Slice(songs, func(i, j int) bool { return songs[i].SpotifyURL < songs[j].SpotifyURL })
	return songs, nil
}
