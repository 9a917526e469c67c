package store

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	zlog "github.com/rs/zerolog/log"

	"github.com/trackwarden/trackwarden/internal/domain/song"
)

const (
	snapshotFileName = "blocked_songs.json.gz"
	playlistsDirName = "playlists"
	cacheFileSuffix  = ".json.gz"
)

// blockedSongV1 is the persisted form of a deny-listed song.
type blockedSongV1 struct {
	SpotifyURL   string `json:"spotify_url"`
	PlaylistName string `json:"playlist_name"`
}

// cacheRecordV1 is the common envelope for both the global snapshot file and
// the per-playlist cache files.
type cacheRecordV1 struct {
	Version int             `json:"version"`
	Songs   []blockedSongV1 `json:"songs"`
}

func songsToRecord(songs []song.BlockedSong) cacheRecordV1 {
	record := cacheRecordV1{Version: 1, Songs: make([]blockedSongV1, 0, len(songs))}
	for _, s := range songs {
		record.Songs = append(record.Songs, blockedSongV1{
			SpotifyURL:   s.SpotifyURL,
			PlaylistName: s.PlaylistName,
		})
	}
	return record
}

func (r cacheRecordV1) toSongs() []song.BlockedSong {
	songs := make([]song.BlockedSong, 0, len(r.Songs))
	for _, s := range r.Songs {
		songs = append(songs, song.BlockedSong{
			SpotifyURL:   s.SpotifyURL,
			PlaylistName: s.PlaylistName,
		})
	}
	return songs
}

// SnapshotCache stores the assembled deny-list snapshot plus one cache file
// per playlist version, all under the cache directory. Cache files are
// gzip-compressed JSON; losing any of them only costs a re-fetch.
type SnapshotCache struct {
	dir string
}

// NewSnapshotCache creates a cache rooted at the given cache directory.
func NewSnapshotCache(dir string) *SnapshotCache {
	return &SnapshotCache{dir: dir}
}

// SaveSnapshot replaces the global deny-list snapshot on disk.
func (c *SnapshotCache) SaveSnapshot(snapshot song.Snapshot) error {
	data, err := encodeRecord(songsToRecord(snapshot.Songs))
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(c.dir, snapshotFileName), data, 0644)
}

// LoadSnapshot reads the last persisted snapshot. A missing or unreadable
// file yields an empty snapshot so the daemon can start enforcing with
// whatever it has while a refresh runs.
func (c *SnapshotCache) LoadSnapshot() song.Snapshot {
	record, ok, err := readRecord(filepath.Join(c.dir, snapshotFileName))
	if err != nil {
		zlog.Warn().Err(err).Msg("discarding unreadable deny-list snapshot")
		return song.Snapshot{}
	}
	if !ok {
		return song.Snapshot{}
	}
	return song.Snapshot{Songs: record.toSongs()}
}

// LoadPlaylist returns the cached songs for the playlist if a cache file for
// exactly this snapshot id exists. Any other snapshot id means the playlist
// changed and the cache entry is stale.
func (c *SnapshotCache) LoadPlaylist(playlistURI, snapshotID string) ([]song.BlockedSong, bool, error) {
	record, ok, err := readRecord(c.playlistPath(playlistURI, snapshotID))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return record.toSongs(), true, nil
}

// StorePlaylist writes the cache file for this playlist version and removes
// cache files of earlier versions, keeping at most one file per playlist.
func (c *SnapshotCache) StorePlaylist(playlistURI, snapshotID string, songs []song.BlockedSong) error {
	data, err := encodeRecord(songsToRecord(songs))
	if err != nil {
		return err
	}

	path := c.playlistPath(playlistURI, snapshotID)
	if err := writeFileAtomic(path, data, 0644); err != nil {
		return err
	}

	c.removeStaleVersions(filepath.Dir(path), snapshotID)
	return nil
}

func (c *SnapshotCache) playlistPath(playlistURI, snapshotID string) string {
	return filepath.Join(c.dir, playlistsDirName, sanitizeName(playlistURI), sanitizeName(snapshotID)+cacheFileSuffix)
}

func (c *SnapshotCache) removeStaleVersions(dir, keepSnapshotID string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	keep := sanitizeName(keepSnapshotID) + cacheFileSuffix
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == keep {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			zlog.Warn().Err(err).Str("file", entry.Name()).Msg("failed to remove stale playlist cache file")
		}
	}
}

// sanitizeName makes an identifier safe to use as a file or directory name.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}

func encodeRecord(record cacheRecordV1) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(record); err != nil {
		gz.Close()
		return nil, errors.Wrap(err, "failed to encode cache record")
	}
	if err := gz.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to compress cache record")
	}
	return buf.Bytes(), nil
}

func readRecord(path string) (cacheRecordV1, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cacheRecordV1{}, false, nil
		}
		return cacheRecordV1{}, false, errors.Wrap(err, "failed to open cache file")
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return cacheRecordV1{}, false, errors.Wrap(err, "failed to decompress cache file")
	}
	defer gz.Close()

	var record cacheRecordV1
	if err := json.NewDecoder(gz).Decode(&record); err != nil && err != io.EOF {
		return cacheRecordV1{}, false, errors.Wrap(err, "failed to decode cache file")
	}
	return record, true, nil
}
