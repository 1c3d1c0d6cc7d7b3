package corpus

import (
	"fmt"
	"regexp"
	"strconv"
)

// Well-known keys in Chunk.Extra.
const (
	ExtraWordCount  = "word_count"
	ExtraChunkIndex = "chunk_index"
	ExtraDocumentID = "document_id"
)

// Span is a half-open [Start, End) range of word offsets within a page.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of words covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Chunk is a unit of retrievable text.
type Chunk struct {
	Content    string         `json:"content"`
	PageNumber int            `json:"page_number"`
	Span       Span           `json:"span"`
	Vertical   string         `json:"vertical"`
	Confidence float64        `json:"confidence"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// WordCount returns extra.word_count, or the span length when unset.
func (c Chunk) WordCount() int {
	if n, ok := intValue(c.Extra[ExtraWordCount]); ok {
		return n
	}
	return c.Span.Len()
}

// ChunkIndex returns extra.chunk_index, the 0-based window index within the page.
func (c Chunk) ChunkIndex() int {
	n, _ := intValue(c.Extra[ExtraChunkIndex])
	return n
}

// DocumentID returns extra.document_id, empty when the chunk was ingested
// without a document identifier.
func (c Chunk) DocumentID() string {
	s, _ := c.Extra[ExtraDocumentID].(string)
	return s
}

// Validate checks the invariants a chunk must hold before it is indexed.
func (c Chunk) Validate() error {
	if c.Content == "" {
		return fmt.Errorf("%w: chunk content is empty", ErrConfiguration)
	}
	if c.PageNumber < 1 {
		return fmt.Errorf("%w: page number must be positive, got %d", ErrConfiguration, c.PageNumber)
	}
	if c.Span.Start < 0 || c.Span.End < c.Span.Start {
		return fmt.Errorf("%w: invalid span [%d,%d)", ErrConfiguration, c.Span.Start, c.Span.End)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: confidence %f outside [0,1]", ErrConfiguration, c.Confidence)
	}
	return nil
}

var documentIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,128}$`)

// ValidateDocumentID checks a caller-supplied document identifier.
func ValidateDocumentID(id string) error {
	if !documentIDPattern.MatchString(id) {
		return fmt.Errorf("%w: document id must match %s, got %q", ErrConfiguration, documentIDPattern, id)
	}
	return nil
}

// ScoredChunk pairs a chunk with its cosine similarity to a query.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
