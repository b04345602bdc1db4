package text

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// DefaultSeparators in priority order: paragraph break, line break, sentence
// end, space, and finally single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter cuts text into ordered, overlapping chunks of at most size runes.
//
// The text is first segmented into consecutive, non-overlapping pieces of at
// most size-overlap runes, preferring the highest-priority separator and only
// descending to the next one for pieces that are still too long. Each chunk
// is then a piece prefixed with up to overlap runes of the text that precedes
// it. Every chunk is an exact substring of the input.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidChunkConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunkConfig, overlap, size)
	}
	return &Splitter{size: size, overlap: overlap, separators: DefaultSeparators}, nil
}

func (s *Splitter) Size() int    { return s.size }
func (s *Splitter) Overlap() int { return s.overlap }

func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}

	pieces := s.segment(text, s.separators)

	chunks := make([]string, 0, len(pieces))
	start := 0    // byte offset of the current piece
	consumed := 0 // runes before the current piece
	for _, p := range pieces {
		lead := min(s.overlap, consumed)
		from := start - tailBytes(text[:start], lead)
		end := start + len(p)
		chunks = append(chunks, text[from:end])

		consumed += utf8.RuneCountInString(p)
		start = end
	}
	return chunks
}

func (s *Splitter) limit() int { return s.size - s.overlap }

func (s *Splitter) segment(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= s.limit() {
		return []string{text}
	}

	sep, rest := "", []string(nil)
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep, rest = candidate, separators[i+1:]
			break
		}
	}
	if sep == "" {
		return splitRunes(text, s.limit())
	}

	var pieces []string
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) > s.limit() {
			pieces = append(pieces, s.segment(part, rest)...)
			continue
		}
		pieces = append(pieces, part)
	}
	return s.merge(pieces)
}

// merge greedily joins adjacent pieces while they fit the limit.
func (s *Splitter) merge(pieces []string) []string {
	var (
		out     []string
		current strings.Builder
		runes   int
	)
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if runes > 0 && runes+n > s.limit() {
			out = append(out, current.String())
			current.Reset()
			runes = 0
		}
		current.WriteString(p)
		runes += n
	}
	if runes > 0 {
		out = append(out, current.String())
	}
	return out
}

func splitRunes(text string, n int) []string {
	var out []string
	for len(text) > 0 {
		cut, count := 0, 0
		for cut < len(text) && count < n {
			_, size := utf8.DecodeRuneInString(text[cut:])
			cut += size
			count++
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	return out
}

// tailBytes returns the byte length of the last n runes of s.
func tailBytes(s string, n int) int {
	b := len(s)
	for i := 0; i < n && b > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:b])
		b -= size
	}
	return len(s) - b
}
