// Package segmenter splits a document into pages and groups the pages into
// vertical-tagged sections using the classifier.
package segmenter

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/verticald/internal/corpus"
)

// Defaults match the page markers written by the text extractor:
//
//	--- PAGE 3 ---
const (
	DefaultDelimiter     = "--- PAGE"
	DefaultHeaderPattern = `^\s*(\d+)\s*---`
	DefaultThreshold     = 0.3
)

// Scorer scores text per vertical. *classifier.Classifier satisfies it.
type Scorer interface {
	Score(text string) map[string]float64
}

// Config controls page splitting and vertical assignment.
type Config struct {
	// Delimiter separates pages. It is treated as an opaque string.
	Delimiter string
	// HeaderPattern extracts the page number from the start of a page
	// block; its first capture group must be the number. Empty disables
	// header parsing and pages are numbered by position.
	HeaderPattern string
	// Threshold is the confidence a vertical must strictly exceed.
	Threshold float64
	// SingleAssignment assigns each page only to its best-scoring vertical.
	SingleAssignment bool
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Delimiter == "" {
		c.Delimiter = DefaultDelimiter
		if c.HeaderPattern == "" {
			c.HeaderPattern = DefaultHeaderPattern
		}
	}
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Delimiter == "" {
		return fmt.Errorf("%w: page delimiter is required", corpus.ErrConfiguration)
	}
	if c.Threshold < 0 || c.Threshold >= 1 {
		return fmt.Errorf("%w: threshold must be in [0,1), got %f", corpus.ErrConfiguration, c.Threshold)
	}
	if c.HeaderPattern != "" {
		re, err := regexp.Compile(c.HeaderPattern)
		if err != nil {
			return fmt.Errorf("%w: invalid page header pattern: %v", corpus.ErrConfiguration, err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("%w: page header pattern needs a capture group", corpus.ErrConfiguration)
		}
	}
	return nil
}

// Page is one delimited block of the document.
type Page struct {
	Number int
	Text   string
}

// Section is a page assigned to a vertical.
type Section struct {
	Text       string
	PageNumber int
	Confidence float64
}

// Segmenter is immutable after construction and safe for concurrent use.
type Segmenter struct {
	scorer Scorer
	config Config
	header *regexp.Regexp
}

// New creates a Segmenter.
func New(scorer Scorer, cfg Config) (*Segmenter, error) {
	if scorer == nil {
		return nil, fmt.Errorf("%w: scorer is required", corpus.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Segmenter{scorer: scorer, config: cfg}
	if cfg.HeaderPattern != "" {
		s.header = regexp.MustCompile(cfg.HeaderPattern)
	}
	return s, nil
}

// Pages splits a document on the delimiter. Blank blocks are skipped.
// A page header matching the header pattern supplies the page number and is
// removed from the page text. Pages without a header, and pages whose header
// repeats a number already used, continue after the highest number so far,
// so every page of a document has a distinct number.
func (s *Segmenter) Pages(document string) []Page {
	blocks := strings.Split(document, s.config.Delimiter)
	pages := make([]Page, 0, len(blocks))
	used := make(map[int]bool, len(blocks))
	highest := 0
	for _, block := range blocks {
		if strings.TrimSpace(block) == "" {
			continue
		}
		number := 0
		if s.header != nil {
			if loc := s.header.FindStringSubmatchIndex(block); loc != nil {
				if n, err := strconv.Atoi(block[loc[2]:loc[3]]); err == nil && n > 0 {
					number = n
					block = block[loc[1]:]
				}
			}
		}
		if strings.TrimSpace(block) == "" {
			continue
		}
		if number == 0 || used[number] {
			number = highest + 1
		}
		used[number] = true
		highest = max(highest, number)
		pages = append(pages, Page{Number: number, Text: block})
	}
	return pages
}

// Segment classifies every page and returns, per vertical, the pages whose
// confidence strictly exceeds the threshold, in document order. Pages below
// the threshold for every vertical are dropped.
func (s *Segmenter) Segment(document string) map[string][]Section {
	return s.Classify(s.Pages(document))
}

// Classify groups already split pages into vertical sections.
func (s *Segmenter) Classify(pages []Page) map[string][]Section {
	sections := make(map[string][]Section)
	for _, page := range pages {
		for vertical, confidence := range s.assign(s.scorer.Score(page.Text)) {
			sections[vertical] = append(sections[vertical], Section{
				Text:       page.Text,
				PageNumber: page.Number,
				Confidence: confidence,
			})
		}
	}
	return sections
}

// assign filters scores by threshold and, in single-assignment mode, keeps
// only the best vertical (ties go to the alphabetically first name).
func (s *Segmenter) assign(scores map[string]float64) map[string]float64 {
	kept := make(map[string]float64, len(scores))
	for vertical, confidence := range scores {
		if confidence > s.config.Threshold {
			kept[vertical] = confidence
		}
	}
	if !s.config.SingleAssignment || len(kept) <= 1 {
		return kept
	}

	names := make([]string, 0, len(kept))
	for name := range kept {
		names = append(names, name)
	}
	sort.Strings(names)
	best := names[0]
	for _, name := range names[1:] {
		if kept[name] > kept[best] {
			best = name
		}
	}
	return map[string]float64{best: kept[best]}
}

// Threshold returns the minimum confidence in use.
func (s *Segmenter) Threshold() float64 {
	return s.config.Threshold
}
