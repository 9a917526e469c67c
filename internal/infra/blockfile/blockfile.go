// Package blockfile reads and appends the user's blocked_songs.conf, a plain
// text file of Spotify track URLs, one per line, with '#' comments.
package blockfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/trackwarden/trackwarden/internal/domain/song"
)

// FileName is the deny-list file name inside the config directory.
const FileName = "blocked_songs.conf"

const initialContent = `# Enter all songs that you don't want to listen to anymore here.
# Make sure to enter valid Spotify URLs only: You can get them from the Spotify app
# via the 'share' functionality. For example, if you use the desktop version of
# Spotify, right-click a song, click share, and then 'Copy Song Link'.
# You can also select multiple songs and copy them with Ctrl + c to have multiple
# URLs in your clipboard.

# The following line is included for testing and demonstration purposes: Feel free
# to remove this line (and everything else in this file) to replace it by your
# own song URLs.
https://open.spotify.com/track/6CE6xXEI29e6X0noaNugIW
`

// File is a handle to the blocked songs file inside the given config
// directory. The file and its directory are created on first use.
type File struct {
	dir string
}

// New returns a handle for the blocked songs file in dir.
func New(dir string) *File {
	return &File{dir: dir}
}

// Path returns the full path of the blocked songs file.
func (f *File) Path() string {
	return filepath.Join(f.dir, FileName)
}

// URLs returns the set of canonical blocked URLs from the file. Lines that
// do not parse as URLs are logged with their line number and skipped.
// The file is created with an explanatory template if it does not exist.
func (f *File) URLs() (map[string]struct{}, error) {
	if err := f.ensure(); err != nil {
		return nil, err
	}

	file, err := os.Open(f.Path())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open blocked songs file")
	}
	defer file.Close()

	urls := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := song.CanonicalURL(line)
		if err != nil {
			zlog.Error().Msgf("Error in line %d: the following is not a valid URL: %s", lineNumber, line)
			continue
		}
		urls[u] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read blocked songs file")
	}

	return urls, nil
}

// Append adds the event's URL to the file, preceded by a comment carrying
// whatever artist/title attributes are known.
func (f *File) Append(ev song.NowPlayingEvent) error {
	if err := f.ensure(); err != nil {
		return err
	}

	var attrs []string
	if ev.Artist != "" {
		attrs = append(attrs, fmt.Sprintf("Artist: %s", ev.Artist))
	}
	if ev.Title != "" {
		attrs = append(attrs, fmt.Sprintf("Title: %s", ev.Title))
	}

	var b strings.Builder
	b.WriteString("\n")
	if len(attrs) > 0 {
		b.WriteString("# " + strings.Join(attrs, ", ") + "\n")
	}
	b.WriteString(ev.URL + "\n")

	file, err := os.OpenFile(f.Path(), os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to open blocked songs file for append")
	}
	defer file.Close()

	if _, err := file.WriteString(b.String()); err != nil {
		return errors.Wrap(err, "failed to append to blocked songs file")
	}
	return nil
}

// ensure creates the config directory and the initial file when absent.
func (f *File) ensure() error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	file, err := os.OpenFile(f.Path(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to create blocked songs file")
	}
	defer file.Close()

	if _, err := file.WriteString(initialContent); err != nil {
		return errors.Wrap(err, "failed to write initial blocked songs file")
	}
	return nil
}
