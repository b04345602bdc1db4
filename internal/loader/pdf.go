package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"dexfren/backend/internal/tracker"
)

type PDFFile struct {
	Name  string
	Path  string
	Text  string
	Pages int
	Hash  string
}

// ExtractFunc returns the text of a PDF and its page count.
type ExtractFunc func(path string) (string, int, error)

type PDFLoader struct {
	dir     string
	extract ExtractFunc
}

type PDFOption func(*PDFLoader)

// WithExtractor replaces the PDF text extractor.
func WithExtractor(fn ExtractFunc) PDFOption {
	return func(l *PDFLoader) { l.extract = fn }
}

func NewPDFLoader(dir string, opts ...PDFOption) *PDFLoader {
	l := &PDFLoader{dir: dir, extract: ExtractPDFText}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *PDFLoader) Dir() string { return l.dir }

// Load extracts every *.pdf directly under the directory, in name order.
func (l *PDFLoader) Load(ctx context.Context) ([]PDFFile, []Failure) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.WarnContext(ctx, "pdf directory not found", "dir", l.dir)
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to read pdf directory", "dir", l.dir, "error", err)
		return nil, []Failure{{Source: l.dir, Stage: StageRead, Err: err}}
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && tracker.IsPDF(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		files    []PDFFile
		failures []Failure
	)
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		f, err := l.LoadFile(ctx, filepath.Join(l.dir, name))
		if err != nil {
			slog.WarnContext(ctx, "skipping pdf", "file", name, "error", err)
			failures = append(failures, Failure{Source: name, Stage: StageExtract, Err: err})
			continue
		}
		files = append(files, f)
	}
	slog.InfoContext(ctx, "pdfs loaded", "dir", l.dir, "loaded", len(files), "failed", len(failures))
	return files, failures
}

func (l *PDFLoader) LoadFile(ctx context.Context, path string) (PDFFile, error) {
	hash, err := tracker.FileHash(path)
	if err != nil {
		return PDFFile{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	text, pages, err := l.extract(path)
	if err != nil {
		return PDFFile{}, err
	}
	if strings.TrimSpace(text) == "" {
		return PDFFile{}, errors.New("no extractable text")
	}
	return PDFFile{
		Name:  filepath.Base(path),
		Path:  path,
		Text:  text,
		Pages: pages,
		Hash:  hash,
	}, nil
}

// ExtractPDFText reads the plain text of every page. A page that fails to
// decode is skipped rather than failing the document.
func ExtractPDFText(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	var b strings.Builder
	for i := 1; i <= total; i++ {
		text, err := pageText(r, i)
		if err != nil {
			slog.Warn("skipping unreadable pdf page", "file", filepath.Base(path), "page", i, "error", err)
			continue
		}
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String(), total, nil
}

func pageText(r *pdf.Reader, i int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", i, rec)
		}
	}()
	p := r.Page(i)
	if p.V.IsNull() {
		return "", nil
	}
	text, err = p.GetPlainText(nil)
	return strings.TrimSpace(text), err
}
