// Package corpus defines the shared data model of the retrieval engine:
// chunks, scored chunks, vertical definitions and the error kinds every
// component reports.
//
// A Chunk is created once during ingest and never mutated afterwards. Its
// Vertical is fixed when the segmenter assigns the page it came from, and
// the index stores that assignment alongside the embedding so retrieval can
// re-check it against the caller's authorization set.
package corpus
