package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/verticald/internal/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestChunk_ShortTextSingleChunk(t *testing.T) {
	text := "  Total assets rose\n\tin the retail segment  "

	chunks, err := Chunk(text, 3, 100, 20)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, "Total assets rose\n\tin the retail segment", c.Content)
	assert.Equal(t, 3, c.PageNumber)
	assert.Equal(t, corpus.Span{Start: 0, End: 7}, c.Span)
	assert.Equal(t, 7, c.Extra[corpus.ExtraWordCount])
	assert.Equal(t, 0, c.Extra[corpus.ExtraChunkIndex])
	assert.Empty(t, c.Vertical)
	assert.Zero(t, c.Confidence)
}

func TestChunk_ExactlySizeWords(t *testing.T) {
	chunks, err := Chunk(words(100), 1, 100, 20)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 100, chunks[0].WordCount())
}

func TestChunk_EmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		chunks, err := Chunk(text, 1, 10, 2)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestChunk_SlidingWindow(t *testing.T) {
	chunks, err := Chunk(words(250), 7, 100, 20)
	require.NoError(t, err)

	// starts at 0, 80, 160; the window at 160 reaches the end
	require.Len(t, chunks, 3)
	wantSpans := []corpus.Span{{Start: 0, End: 100}, {Start: 80, End: 180}, {Start: 160, End: 250}}
	for i, c := range chunks {
		assert.Equal(t, wantSpans[i], c.Span, "chunk %d", i)
		assert.Equal(t, i, c.ChunkIndex())
		assert.Equal(t, c.Span.Len(), c.WordCount())
		assert.Equal(t, 7, c.PageNumber)
	}
	assert.True(t, strings.HasPrefix(chunks[1].Content, "w80 "))
	assert.True(t, strings.HasSuffix(chunks[2].Content, " w249"))
}

func TestChunk_StopsWhenWindowReachesEnd(t *testing.T) {
	// step of 10 with 105 words: the second window already covers the tail
	chunks, err := Chunk(words(105), 1, 100, 90)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, corpus.Span{Start: 10, End: 105}, chunks[1].Span)
}

func TestChunk_SizeInvariant(t *testing.T) {
	cases := []struct{ n, size, overlap int }{
		{250, 100, 20},
		{1000, 64, 0},
		{333, 50, 49},
		{101, 100, 1},
		{999, 7, 3},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("n=%d/S=%d/O=%d", tc.n, tc.size, tc.overlap), func(t *testing.T) {
			chunks, err := Chunk(words(tc.n), 1, tc.size, tc.overlap)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)
			for i, c := range chunks[:len(chunks)-1] {
				assert.Equal(t, tc.size, c.WordCount(), "chunk %d", i)
			}
			assert.LessOrEqual(t, chunks[len(chunks)-1].WordCount(), tc.size)
		})
	}
}

func TestChunk_CoverageAndDeterminism(t *testing.T) {
	text := words(437)

	first, err := Chunk(text, 2, 100, 20)
	require.NoError(t, err)
	second, err := Chunk(text, 2, 100, 20)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Reassemble by skipping the overlapping prefix of every chunk after the first.
	var rebuilt []string
	next := 0
	for _, c := range first {
		ws := strings.Fields(c.Content)
		rebuilt = append(rebuilt, ws[next-c.Span.Start:]...)
		next = c.Span.End
	}
	assert.Equal(t, strings.Fields(text), rebuilt)
}

func TestChunk_InvalidParameters(t *testing.T) {
	cases := []struct {
		name                string
		page, size, overlap int
	}{
		{"overlap equals size", 1, 10, 10},
		{"overlap exceeds size", 1, 10, 11},
		{"zero size", 1, 0, 0},
		{"negative overlap", 1, 10, -1},
		{"zero page", 0, 10, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Chunk("some text", tc.page, tc.size, tc.overlap)
			require.Error(t, err)
			assert.ErrorIs(t, err, corpus.ErrConfiguration)
		})
	}
}

func TestNew(t *testing.T) {
	_, err := New(Config{Size: 5, Overlap: 5})
	assert.ErrorIs(t, err, corpus.ErrConfiguration)

	cfg := Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, Config{Size: DefaultSize, Overlap: DefaultOverlap}, cfg)

	c, err := New(Config{Size: 3, Overlap: 1})
	require.NoError(t, err)
	chunks, err := c.Chunk("a b c d e", 1)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a b c", chunks[0].Content)
	assert.Equal(t, "c d e", chunks[1].Content)
}
