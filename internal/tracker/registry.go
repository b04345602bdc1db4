// Package tracker decides which sources need re-ingestion by comparing
// content hashes against registries persisted on disk.
package tracker

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// Entry is one tracked source: either a map of file name to hash (a
// directory) or a single hash (a config document).
type Entry struct {
	Files map[string]string
	Hash  string
}

func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Files != nil {
		return json.Marshal(e.Files)
	}
	return json.Marshal(e.Hash)
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		e.Hash = ""
		return json.Unmarshal(data, &e.Files)
	}
	e.Files = nil
	return json.Unmarshal(data, &e.Hash)
}

func (e Entry) Equal(other Entry) bool {
	if (e.Files == nil) != (other.Files == nil) {
		return false
	}
	if e.Files != nil {
		return maps.Equal(e.Files, other.Files)
	}
	return e.Hash == other.Hash
}

// Registry maps a tracking key to its last recorded entry.
type Registry map[string]Entry

// FileHash returns the hex sha256 of a file's contents.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func loadRegistry(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Registry{}, nil
	}
	if err != nil {
		return nil, err
	}
	reg := Registry{}
	if len(bytes.TrimSpace(data)) == 0 {
		return reg, nil
	}
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", path, err)
	}
	return reg, nil
}

// writeJSON replaces path wholesale so readers never see a partial file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return renameio.WriteFile(path, append(data, '\n'), 0o644)
}
