package embeddings

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantDim int
		wantErr error
	}{
		{
			name:    "hash provider with default dimension",
			cfg:     ProviderConfig{Provider: "hash"},
			wantDim: DefaultHashDimension,
		},
		{
			name:    "hash provider with explicit dimension",
			cfg:     ProviderConfig{Provider: "hash", Dimension: 64},
			wantDim: 64,
		},
		{
			name: "tei provider with valid config",
			cfg: ProviderConfig{
				Provider: "tei",
				BaseURL:  "http://localhost:8080",
				Model:    "BAAI/bge-small-en-v1.5",
			},
			wantDim: 384,
		},
		{
			name: "tei provider with dimension override",
			cfg: ProviderConfig{
				Provider:  "tei",
				BaseURL:   "http://localhost:8080",
				Model:     "custom-model",
				Dimension: 1024,
			},
			wantDim: 1024,
		},
		{
			name: "tei provider without base URL",
			cfg: ProviderConfig{
				Provider: "tei",
				Model:    "BAAI/bge-small-en-v1.5",
			},
			wantErr: ErrInvalidConfig,
		},
		{
			name: "openai provider",
			cfg: ProviderConfig{
				Provider: "openai",
				BaseURL:  "http://localhost:9999/v1",
				Model:    "text-embedding-3-small",
				APIKey:   "sk-test",
			},
			wantDim: 1536,
		},
		{
			name: "openai provider without api key",
			cfg: ProviderConfig{
				Provider: "openai",
				Model:    "text-embedding-3-small",
			},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "empty provider is rejected",
			cfg:     ProviderConfig{Model: "BAAI/bge-small-en-v1.5"},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "unknown provider",
			cfg:     ProviderConfig{Provider: "unknown"},
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			defer provider.Close()
			assert.Equal(t, tt.wantDim, provider.Dimension())
		})
	}
}

func TestDetectDimensionFromModel(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"BAAI/bge-small-en-v1.5", 384},
		{"BAAI/bge-base-en-v1.5", 768},
		{"BAAI/bge-small-zh-v1.5", 512},
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"some-large-model", 1024},
		{"mystery", 384},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, detectDimensionFromModel(tt.model))
		})
	}
}
