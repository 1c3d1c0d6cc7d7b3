// Package vectorstore stores embedded chunks and answers nearest-neighbour
// queries over them.
//
// Two backends implement Store:
//
//   - chromem: embedded, pure Go, optionally persisted to disk
//   - qdrant: external server over gRPC, with retries and a circuit breaker
//
// Vectors are always supplied by the caller. Neither backend embeds text on
// its own, so the embedding strategy stays a single explicit choice made
// elsewhere.
//
// Collections are named {prefix}_{vertical} and validated against
// ^[a-z0-9_]{1,64}$ before any backend call.
package vectorstore
