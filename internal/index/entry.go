package index

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/verticald/internal/corpus"
	"github.com/fyrsmithlabs/verticald/internal/vectorstore"
)

// Metadata keys written with every entry.
const (
	MetaVertical   = "vertical"
	MetaPageNumber = "page_number"
	MetaSpanStart  = "span_start"
	MetaSpanEnd    = "span_end"
	MetaConfidence = "confidence"
	MetaWordCount  = "word_count"
	MetaChunkIndex = "chunk_index"
	MetaDocumentID = "document_id"
	MetaSeq        = "seq"

	// extraPrefix marks caller-defined Extra keys.
	extraPrefix = "extra_"
)

// entryNamespace seeds EntryID.
var entryNamespace = uuid.MustParse("a3d1f0c2-58e4-4f7b-8c55-1b2e9d7a6c30")

// EntryID derives the stable id of a chunk's index entry. Re-ingesting the
// same page position yields the same id and overwrites the entry.
func EntryID(vertical, documentID string, pageNumber, chunkIndex int) string {
	key := fmt.Sprintf("%s/%d/%d", vertical, pageNumber, chunkIndex)
	if documentID != "" {
		key = documentID + "/" + key
	}
	return uuid.NewSHA1(entryNamespace, []byte(key)).String()
}

func toDocument(id string, c corpus.Chunk, vec []float32, seq int64) vectorstore.Document {
	meta := map[string]string{
		MetaVertical:   c.Vertical,
		MetaPageNumber: strconv.Itoa(c.PageNumber),
		MetaSpanStart:  strconv.Itoa(c.Span.Start),
		MetaSpanEnd:    strconv.Itoa(c.Span.End),
		MetaConfidence: strconv.FormatFloat(c.Confidence, 'g', -1, 64),
		MetaWordCount:  strconv.Itoa(c.WordCount()),
		MetaChunkIndex: strconv.Itoa(c.ChunkIndex()),
		MetaSeq:        strconv.FormatInt(seq, 10),
	}
	if d := c.DocumentID(); d != "" {
		meta[MetaDocumentID] = d
	}
	for k, v := range c.Extra {
		switch k {
		case corpus.ExtraWordCount, corpus.ExtraChunkIndex, corpus.ExtraDocumentID:
			continue
		}
		meta[extraPrefix+k] = fmt.Sprint(v)
	}
	return vectorstore.Document{
		ID:        id,
		Content:   c.Content,
		Metadata:  meta,
		Embedding: vec,
	}
}

func fromMetadata(content string, meta map[string]string) corpus.Chunk {
	c := corpus.Chunk{
		Content:    content,
		Vertical:   meta[MetaVertical],
		PageNumber: atoi(meta[MetaPageNumber]),
		Span: corpus.Span{
			Start: atoi(meta[MetaSpanStart]),
			End:   atoi(meta[MetaSpanEnd]),
		},
		Extra: map[string]any{
			corpus.ExtraWordCount:  atoi(meta[MetaWordCount]),
			corpus.ExtraChunkIndex: atoi(meta[MetaChunkIndex]),
		},
	}
	c.Confidence, _ = strconv.ParseFloat(meta[MetaConfidence], 64)
	if d := meta[MetaDocumentID]; d != "" {
		c.Extra[corpus.ExtraDocumentID] = d
	}
	for k, v := range meta {
		if strings.HasPrefix(k, extraPrefix) {
			c.Extra[strings.TrimPrefix(k, extraPrefix)] = v
		}
	}
	return c
}

func seqOf(meta map[string]string) int64 {
	n, err := strconv.ParseInt(meta[MetaSeq], 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return n
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// scored is a search hit with its insertion sequence.
type scored struct {
	chunk corpus.ScoredChunk
	seq   int64
}

// rank orders hits by score descending, then by insertion order.
func rank(hits []scored) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].chunk.Score != hits[j].chunk.Score {
			return hits[i].chunk.Score > hits[j].chunk.Score
		}
		return hits[i].seq < hits[j].seq
	})
}

func validVector(v []float32, dim int) bool {
	if len(v) != dim {
		return false
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
