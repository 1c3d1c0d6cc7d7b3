//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
	"go.uber.org/zap"
)

// DefaultFastEmbedModel is used when FastEmbedConfig.Model is empty.
const DefaultFastEmbedModel = "BAAI/bge-small-en-v1.5"

// FastEmbedConfig configures the local ONNX provider.
type FastEmbedConfig struct {
	Model string
	// CacheDir holds downloaded model files. Empty means
	// <user cache dir>/verticald/models.
	CacheDir string
	// MaxLength truncates inputs, in tokens. Zero means 512.
	MaxLength int
	// BatchSize bounds texts per ONNX run. Zero means 64.
	BatchSize int
	Logger    *zap.Logger
}

type fastembedModel struct {
	id  fastembed.EmbeddingModel
	dim int
}

// fastembedModels accepts both the Hugging Face names and fastembed's own.
var fastembedModels = map[string]fastembedModel{
	"BAAI/bge-small-en-v1.5":                 {fastembed.BGESmallENV15, 384},
	"BAAI/bge-small-en":                      {fastembed.BGESmallEN, 384},
	"BAAI/bge-base-en-v1.5":                  {fastembed.BGEBaseENV15, 768},
	"BAAI/bge-base-en":                       {fastembed.BGEBaseEN, 768},
	"sentence-transformers/all-MiniLM-L6-v2": {fastembed.AllMiniLML6V2, 384},
	string(fastembed.BGESmallENV15):          {fastembed.BGESmallENV15, 384},
	string(fastembed.BGESmallEN):             {fastembed.BGESmallEN, 384},
	string(fastembed.BGEBaseENV15):           {fastembed.BGEBaseENV15, 768},
	string(fastembed.BGEBaseEN):              {fastembed.BGEBaseEN, 768},
	string(fastembed.AllMiniLML6V2):          {fastembed.AllMiniLML6V2, 384},
}

// FastEmbedProvider runs a BGE or MiniLM model in-process. The ONNX session
// is not shared between concurrent calls.
type FastEmbedProvider struct {
	mu        sync.Mutex
	model     *fastembed.FlagEmbedding
	name      string
	dimension int
	batchSize int
	metrics   *instruments
}

// NewFastEmbedProvider loads the model, downloading it into CacheDir on
// first use.
func NewFastEmbedProvider(cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultFastEmbedModel
	}
	m, ok := fastembedModels[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("%w: fastembed model %q is not supported", ErrInvalidConfig, cfg.Model)
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = 512
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 64
	}
	if cfg.MaxLength < 0 || cfg.BatchSize < 0 {
		return nil, fmt.Errorf("%w: max length and batch size must not be negative", ErrInvalidConfig)
	}
	if cfg.CacheDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("locating model cache: %w", err)
		}
		cfg.CacheDir = filepath.Join(dir, "verticald", "models")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating model cache %s: %w", cfg.CacheDir, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	quiet := false
	model, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                m.id,
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &quiet,
	})
	if err != nil {
		return nil, fmt.Errorf("loading fastembed model %s: %w", cfg.Model, err)
	}
	logger.Info("fastembed model loaded",
		zap.String("model", cfg.Model),
		zap.Int("dimension", m.dim),
		zap.String("cache_dir", cfg.CacheDir),
	)

	return &FastEmbedProvider{
		model:     model,
		name:      cfg.Model,
		dimension: m.dim,
		batchSize: cfg.BatchSize,
		metrics:   newInstruments(ProviderFastEmbed, cfg.Model, logger),
	}, nil
}

// EmbedDocuments embeds texts as passages.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) (_ [][]float32, err error) {
	defer p.metrics.observe(ctx, opDocuments, len(texts))(&err)

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil, fmt.Errorf("%w: provider closed", ErrEmbeddingFailed)
	}
	vectors, err := p.model.PassageEmbed(texts, p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// EmbedQuery embeds text with the model's query prefix.
func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) (_ []float32, err error) {
	defer p.metrics.observe(ctx, opQuery, 1)(&err)

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil, fmt.Errorf("%w: provider closed", ErrEmbeddingFailed)
	}
	vector, err := p.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vector, nil
}

func (p *FastEmbedProvider) Dimension() int { return p.dimension }

// Close releases the ONNX session. Later calls fail.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil
	}
	err := p.model.Destroy()
	p.model = nil
	return err
}

var _ Provider = (*FastEmbedProvider)(nil)
