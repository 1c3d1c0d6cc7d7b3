// Package index keeps one nearest-neighbour index per vertical on top of a
// vectorstore.Store and an embedding provider.
//
// Every Index owns its own collection and its own lock: searches share a read
// lock, while Upsert and DeleteAll take the write lock for their whole
// duration. Indexes for different verticals never block each other.
//
// Upsert is all-or-nothing. Vectors are computed for every chunk before
// anything is written, and a failed backend write is undone by restoring the
// entries the call replaced.
package index
