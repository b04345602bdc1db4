package text

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reconstruct drops the overlap prefix from every chunk after the first.
func reconstruct(chunks []string, overlap int) string {
	var b strings.Builder
	consumed := 0
	for _, c := range chunks {
		lead := min(overlap, consumed)
		runes := []rune(c)
		b.WriteString(string(runes[lead:]))
		consumed += len(runes) - lead
	}
	return b.String()
}

func TestNewSplitter_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"Zero size", 0, 0},
		{"Negative size", -10, 0},
		{"Negative overlap", 100, -1},
		{"Overlap equals size", 100, 100},
		{"Overlap exceeds size", 100, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSplitter(tt.size, tt.overlap)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, ErrInvalidChunkConfig)
		})
	}
}

func TestSplit_Empty(t *testing.T) {
	s, err := NewSplitter(100, 10)
	require.NoError(t, err)
	assert.Nil(t, s.Split(""))
}

func TestSplit_ShortTextIsSingleChunk(t *testing.T) {
	s, err := NewSplitter(100, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"Swap tokens on any DEX."}, s.Split("Swap tokens on any DEX."))
}

func TestSplit_Coverage(t *testing.T) {
	paragraph := "DexAppBuilder lets you create a decentralized exchange. Choose networks, tokens and fees.\nThen deploy it with one click."
	texts := map[string]string{
		"Paragraphs":    strings.Repeat(paragraph+"\n\n", 12),
		"No separators": strings.Repeat("abcdefghij", 57),
		"Unicode":       strings.Repeat("Échange décentralisé 交易所 🚀. ", 40),
		"Long words":    strings.Repeat("0x"+strings.Repeat("f", 130)+" ", 6),
	}
	configs := []struct{ size, overlap int }{
		{100, 0}, {100, 20}, {250, 50}, {50, 49}, {1000, 200},
	}

	for name, text := range texts {
		for _, cfg := range configs {
			s, err := NewSplitter(cfg.size, cfg.overlap)
			require.NoError(t, err)

			chunks := s.Split(text)
			require.NotEmpty(t, chunks, name)
			assert.Equal(t, text, reconstruct(chunks, cfg.overlap), "%s size=%d overlap=%d", name, cfg.size, cfg.overlap)
			for _, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), cfg.size)
				assert.True(t, strings.Contains(text, c))
			}
		}
	}
}

func TestSplit_OverlapComesFromPreviousTail(t *testing.T) {
	s, err := NewSplitter(30, 10)
	require.NoError(t, err)

	chunks := s.Split(strings.Repeat("word ", 30))
	require.Greater(t, len(chunks), 2)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		head := string([]rune(chunks[i])[:10])
		assert.Equal(t, string(prev[len(prev)-10:]), head)
	}
}

func TestSplit_PrefersParagraphBreaks(t *testing.T) {
	first := strings.Repeat("a", 40)
	second := strings.Repeat("b", 40)
	s, err := NewSplitter(60, 0)
	require.NoError(t, err)

	chunks := s.Split(first + "\n\n" + second)
	require.Len(t, chunks, 2)
	assert.Equal(t, first+"\n\n", chunks[0])
	assert.Equal(t, second, chunks[1])
}

func TestSplit_FallsBackToSentences(t *testing.T) {
	text := "Connect your wallet first. Then pick a token to swap. Confirm the trade."
	s, err := NewSplitter(30, 0)
	require.NoError(t, err)

	chunks := s.Split(text)
	assert.Equal(t, []string{"Connect your wallet first. ", "Then pick a token to swap. ", "Confirm the trade."}, chunks)
}
