// Package embeddings provides embedding generation via multiple providers.
//
// Four strategies are available and exactly one is chosen at construction
// time through ProviderConfig.Provider:
//
//   - hash: deterministic feature hashing, no model files, used offline and in tests
//   - fastembed: local ONNX models (requires a cgo build)
//   - tei: a text-embeddings-inference server over HTTP
//   - openai: any OpenAI-compatible embeddings endpoint via langchaingo
//
// A provider that cannot be constructed is an error. Nothing falls back to a
// different strategy at runtime.
package embeddings
