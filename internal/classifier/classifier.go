// Package classifier scores text against each vertical's keyword set.
package classifier

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/verticald/internal/corpus"
)

// DefaultDivisor normalises raw keyword scores into [0,1].
const DefaultDivisor = 10.0

type keyword struct {
	lower  string
	length float64
}

// Classifier computes per-vertical confidence from keyword occurrences.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	keywords map[string][]keyword
	divisor  float64
}

// New builds a Classifier. A divisor of zero selects DefaultDivisor.
func New(verticals corpus.Verticals, divisor float64) (*Classifier, error) {
	if err := verticals.Validate(); err != nil {
		return nil, err
	}
	if divisor == 0 {
		divisor = DefaultDivisor
	}
	if divisor < 0 {
		return nil, fmt.Errorf("%w: score divisor must be positive, got %f", corpus.ErrConfiguration, divisor)
	}

	kw := make(map[string][]keyword, len(verticals))
	for name, words := range verticals {
		list := make([]keyword, len(words))
		for i, w := range words {
			list[i] = keyword{
				lower:  strings.ToLower(w),
				length: float64(utf8.RuneCountInString(w)),
			}
		}
		kw[name] = list
	}
	return &Classifier{keywords: kw, divisor: divisor}, nil
}

// Score returns the confidence of every vertical with a non-zero score.
//
// For each keyword the case-insensitive, non-overlapping occurrence count is
// weighted by keyword length and averaged over the vertical's keyword count;
// the result is divided by the divisor and capped at 1.
func (c *Classifier) Score(text string) map[string]float64 {
	scores := make(map[string]float64)
	if text == "" {
		return scores
	}
	lower := strings.ToLower(text)

	for name, keywords := range c.keywords {
		total := float64(len(keywords))
		raw := 0.0
		for _, kw := range keywords {
			if n := strings.Count(lower, kw.lower); n > 0 {
				raw += float64(n) * kw.length / total
			}
		}
		if raw > 0 {
			scores[name] = min(raw/c.divisor, 1.0)
		}
	}
	return scores
}

// Divisor returns the normalisation divisor in use.
func (c *Classifier) Divisor() float64 {
	return c.divisor
}
