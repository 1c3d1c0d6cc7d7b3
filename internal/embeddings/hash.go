package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimension is the vector length of the hash provider.
const DefaultHashDimension = 384

// HashProvider embeds text by signed feature hashing of lowercased word
// tokens into a fixed number of buckets, then L2-normalises the result.
// Identical text always yields identical vectors and lexically similar text
// yields similar vectors. It has no model and no I/O.
type HashProvider struct {
	dimension int
	metrics   *instruments
}

// NewHashProvider creates a HashProvider. Zero selects DefaultHashDimension.
func NewHashProvider(dimension int) (*HashProvider, error) {
	if dimension == 0 {
		dimension = DefaultHashDimension
	}
	if dimension < 2 {
		return nil, fmt.Errorf("%w: hash dimension must be at least 2, got %d", ErrInvalidConfig, dimension)
	}
	return &HashProvider{
		dimension: dimension,
		metrics:   newInstruments(ProviderHash, "", nil),
	}, nil
}

// EmbedDocuments embeds each text independently.
func (p *HashProvider) EmbedDocuments(ctx context.Context, texts []string) (_ [][]float32, err error) {
	defer p.metrics.observe(ctx, opDocuments, len(texts))(&err)

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.embed(text)
	}
	return out, nil
}

// EmbedQuery embeds a single query.
func (p *HashProvider) EmbedQuery(ctx context.Context, text string) (_ []float32, err error) {
	defer p.metrics.observe(ctx, opQuery, 1)(&err)

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	return p.embed(text), nil
}

// Dimension returns the vector length.
func (p *HashProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op.
func (p *HashProvider) Close() error {
	return nil
}

func (p *HashProvider) embed(text string) []float32 {
	vec := make([]float64, p.dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := sum % uint64(p.dimension)
		if sum>>63 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, p.dimension)
	if norm == 0 {
		// Text without tokens still needs a unit vector; cosine backends
		// cannot normalise a zero vector.
		out[0] = 1
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

var _ Provider = (*HashProvider)(nil)
