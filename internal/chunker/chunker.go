// Package chunker splits page text into overlapping fixed-size word windows.
package chunker

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/verticald/internal/corpus"
)

// Default window parameters, in words.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Config holds the window parameters.
type Config struct {
	Size    int
	Overlap int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Size == 0 {
		c.Size = DefaultSize
		if c.Overlap == 0 {
			c.Overlap = DefaultOverlap
		}
	}
}

// Validate rejects windows that would never advance.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", corpus.ErrConfiguration, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", corpus.ErrConfiguration, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: chunk overlap %d must be less than chunk size %d", corpus.ErrConfiguration, c.Overlap, c.Size)
	}
	return nil
}

// Chunker applies a fixed window configuration.
type Chunker struct {
	config Config
}

// New creates a Chunker, failing fast on an invalid window.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: cfg}, nil
}

// Chunk splits text using the chunker's window.
func (c *Chunker) Chunk(text string, pageNumber int) ([]corpus.Chunk, error) {
	return Chunk(text, pageNumber, c.config.Size, c.config.Overlap)
}

// Chunk splits text on whitespace into windows of size words that advance
// by size-overlap words. Text of at most size words yields a single chunk
// holding the whole trimmed text. The final window may be shorter than size.
// Vertical and confidence are left for the caller to fill in.
func Chunk(text string, pageNumber, size, overlap int) ([]corpus.Chunk, error) {
	if err := (Config{Size: size, Overlap: overlap}).Validate(); err != nil {
		return nil, err
	}
	if pageNumber < 1 {
		return nil, fmt.Errorf("%w: page number must be positive, got %d", corpus.ErrConfiguration, pageNumber)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	if len(words) <= size {
		return []corpus.Chunk{newChunk(strings.TrimSpace(text), pageNumber, 0, len(words), 0)}, nil
	}

	step := size - overlap
	chunks := make([]corpus.Chunk, 0, (len(words)+step-1)/step)
	for start, index := 0, 0; start < len(words); start, index = start+step, index+1 {
		end := min(start+size, len(words))
		chunks = append(chunks, newChunk(strings.Join(words[start:end], " "), pageNumber, start, end, index))
		if end == len(words) {
			break
		}
	}
	return chunks, nil
}

func newChunk(content string, pageNumber, start, end, index int) corpus.Chunk {
	return corpus.Chunk{
		Content:    content,
		PageNumber: pageNumber,
		Span:       corpus.Span{Start: start, End: end},
		Extra: map[string]any{
			corpus.ExtraWordCount:  end - start,
			corpus.ExtraChunkIndex: index,
		},
	}
}
