// Package loader turns the content sources (a PDF directory and the video,
// documentation and platform config trees) into raw text and SourceRecords.
// Loaders never fail as a whole: a missing or malformed source yields an
// empty result and a log entry, and a single bad item is skipped.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"dexfren/backend/internal/jsontree"
)

var ErrSourceUnavailable = errors.New("source unavailable")

// Stages reported with a Failure.
const (
	StageRead       = "read"
	StageExtract    = "extract"
	StageFetch      = "fetch"
	StageTranscript = "transcript"
)

// Failure is one skipped item. Callers record it and move on.
type Failure struct {
	Source string
	Stage  string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Stage, f.Source, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// ReadTree loads a JSON config document. A missing file or malformed JSON is
// logged and yields an empty object.
func ReadTree(ctx context.Context, path string) *jsontree.Value {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.WarnContext(ctx, "config file not found", "path", path)
		} else {
			slog.ErrorContext(ctx, "failed to read config file", "path", path, "error", err)
		}
		return jsontree.EmptyObject()
	}

	tree, err := jsontree.Parse(data)
	if err != nil {
		var se *jsontree.SyntaxError
		if errors.As(err, &se) {
			slog.ErrorContext(ctx, "malformed config file",
				"path", path, "line", se.Line, "column", se.Column, "context", se.Context, "error", se.Err)
		} else {
			slog.ErrorContext(ctx, "malformed config file", "path", path, "error", err)
		}
		return jsontree.EmptyObject()
	}
	return tree
}
