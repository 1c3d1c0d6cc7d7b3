//go:build !cgo

package embeddings

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// DefaultFastEmbedModel is used when FastEmbedConfig.Model is empty.
const DefaultFastEmbedModel = "BAAI/bge-small-en-v1.5"

// ErrFastEmbedNotAvailable is returned by every FastEmbed call in binaries
// built with CGO_ENABLED=0; the ONNX runtime needs cgo.
var ErrFastEmbedNotAvailable = errors.New("fastembed needs a cgo build; use the hash, tei or openai provider")

// FastEmbedConfig mirrors the cgo build so callers compile either way.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
	BatchSize int
	Logger    *zap.Logger
}

type FastEmbedProvider struct{}

func NewFastEmbedProvider(FastEmbedConfig) (*FastEmbedProvider, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (*FastEmbedProvider) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (*FastEmbedProvider) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (*FastEmbedProvider) Dimension() int { return 0 }

func (*FastEmbedProvider) Close() error { return nil }

var _ Provider = (*FastEmbedProvider)(nil)
