package blockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackwarden/trackwarden/internal/domain/song"
)

func TestURLsCreatesInitialFile(t *testing.T) {
	dir := t.TempDir()
	f := New(filepath.Join(dir, "trackwarden"))

	urls, err := f.URLs()
	require.NoError(t, err)

	// The template ships with one demonstration URL.
	assert.Len(t, urls, 1)
	_, ok := urls["https://open.spotify.com/track/6CE6xXEI29e6X0noaNugIW"]
	assert.True(t, ok)

	_, err = os.Stat(f.Path())
	assert.NoError(t, err)
}

func TestURLsParsing(t *testing.T) {
	dir := t.TempDir()
	f := New(dir)
	content := `# a comment

https://open.spotify.com/track/aaa?si=tracking
https://open.spotify.com/track/bbb
not a url at all
  https://open.spotify.com/track/ccc
`
	require.NoError(t, os.WriteFile(f.Path(), []byte(content), 0644))

	urls, err := f.URLs()
	require.NoError(t, err)

	assert.Len(t, urls, 3)
	_, ok := urls["https://open.spotify.com/track/aaa"]
	assert.True(t, ok, "tracking query param should be stripped")
	_, ok = urls["https://open.spotify.com/track/bbb"]
	assert.True(t, ok)
	_, ok = urls["https://open.spotify.com/track/ccc"]
	assert.True(t, ok)
}

func TestAppend(t *testing.T) {
	dir := t.TempDir()
	f := New(dir)
	require.NoError(t, os.WriteFile(f.Path(), []byte("# empty\n"), 0644))

	err := f.Append(song.NowPlayingEvent{
		URL:    "https://open.spotify.com/track/xyz",
		Artist: "Queen",
		Title:  "Bohemian Rhapsody",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Artist: Queen, Title: Bohemian Rhapsody\n")
	assert.Contains(t, string(data), "https://open.spotify.com/track/xyz\n")

	urls, err := f.URLs()
	require.NoError(t, err)
	_, ok := urls["https://open.spotify.com/track/xyz"]
	assert.True(t, ok)
}

func TestAppendWithoutAttributes(t *testing.T) {
	dir := t.TempDir()
	f := New(dir)
	require.NoError(t, os.WriteFile(f.Path(), []byte(""), 0644))

	err := f.Append(song.NowPlayingEvent{URL: "https://open.spotify.com/track/bare"})
	require.NoError(t, err)

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "# ")
	assert.Contains(t, string(data), "https://open.spotify.com/track/bare\n")
}
