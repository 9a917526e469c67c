// Package store persists the OAuth token and the deny-list cache on disk.
//
// Persisted structs are never the domain structs: every file format has its
// own version-suffixed record type with a version tag, and data is converted
// explicitly at the boundary. Renaming a domain field must never silently
// break deserialization of files written by an older build; instead a new
// record version is introduced and the old one keeps decoding.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/trackwarden/trackwarden/internal/infra/spotify"
)

const tokenFileName = "spotify_token.json"

// tokenRecordV1 is the persisted token format.
type tokenRecordV1 struct {
	Version      int    `json:"version"`
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

func tokenToRecord(t spotify.Token) tokenRecordV1 {
	return tokenRecordV1{
		Version:      1,
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		ExpiresIn:    t.ExpiresIn,
		RefreshToken: t.RefreshToken,
	}
}

func (r tokenRecordV1) toToken() spotify.Token {
	return spotify.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		ExpiresIn:    r.ExpiresIn,
		RefreshToken: r.RefreshToken,
	}
}

// TokenStore persists the current OAuth token in the state directory.
type TokenStore struct {
	dir string
}

// NewTokenStore creates a token store rooted at the given state directory.
func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

func (s *TokenStore) path() string {
	return filepath.Join(s.dir, tokenFileName)
}

// SaveToken writes the token atomically (write-then-rename), so a crash
// mid-write never leaves a truncated token file behind.
func (s *TokenStore) SaveToken(token spotify.Token) error {
	data, err := json.Marshal(tokenToRecord(token))
	if err != nil {
		return errors.Wrap(err, "failed to encode token")
	}
	return writeFileAtomic(s.path(), data, 0600)
}

// LoadToken reads the persisted token. A missing file is not an error: it
// simply means the user has never logged in on this machine.
func (s *TokenStore) LoadToken() (*spotify.Token, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read token file")
	}

	var record tokenRecordV1
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrap(err, "failed to decode token file")
	}

	token := record.toToken()
	return &token, nil
}

// writeFileAtomic writes data to a temp file in the target's directory and
// renames it into place. Readers either see the old file or the new one,
// never a partial write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to close temp file")
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to chmod temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to rename temp file")
	}
	return nil
}
