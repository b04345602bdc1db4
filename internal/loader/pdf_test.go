package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFLoader_Load(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"b-guide.pdf":   "guide",
		"a-corrupt.pdf": "corrupt",
		"c-empty.PDF":   "empty",
		"notes.txt":     "ignored",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	extract := func(path string) (string, int, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", 0, err
		}
		switch string(data) {
		case "corrupt":
			return "", 0, errors.New("malformed xref table")
		case "empty":
			return "  ", 2, nil
		}
		return "DexKit user guide text", 3, nil
	}

	files, failures := NewPDFLoader(dir, WithExtractor(extract)).Load(context.Background())

	require.Len(t, files, 1)
	assert.Equal(t, "b-guide.pdf", files[0].Name)
	assert.Equal(t, 3, files[0].Pages)
	assert.Equal(t, "DexKit user guide text", files[0].Text)
	assert.Len(t, files[0].Hash, 64)

	require.Len(t, failures, 2)
	assert.Equal(t, "a-corrupt.pdf", failures[0].Source)
	assert.Equal(t, StageExtract, failures[0].Stage)
	assert.Equal(t, "c-empty.PDF", failures[1].Source)
}

func TestPDFLoader_MissingDirectory(t *testing.T) {
	files, failures := NewPDFLoader(filepath.Join(t.TempDir(), "nope")).Load(context.Background())
	assert.Empty(t, files)
	assert.Empty(t, failures)
}

func TestExtractPDFText_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, _, err := ExtractPDFText(path)
	assert.Error(t, err)
}
