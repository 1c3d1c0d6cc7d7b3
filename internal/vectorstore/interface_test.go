package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "verticald_retail", false},
		{"digits", "v2_energy", false},
		{"empty", "", true},
		{"uppercase", "Retail", true},
		{"path traversal", "../retail", true},
		{"space", "retail media", true},
		{"too long", "a123456789012345678901234567890123456789012345678901234567890123456789", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidCollectionName))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCollectionName(t *testing.T) {
	name, err := CollectionName("verticald", "retail")
	require.NoError(t, err)
	assert.Equal(t, "verticald_retail", name)

	name, err = CollectionName("", "retail")
	require.NoError(t, err)
	assert.Equal(t, "retail", name)

	_, err = CollectionName("verticald", "Retail")
	assert.Error(t, err)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "pinecone"}, 384, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestNew_Chromem(t *testing.T) {
	s, err := New(context.Background(), Config{
		Provider: "chromem",
		Chromem:  ChromemConfig{InMemory: true},
	}, 8, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "chromem", s.Backend())
	assert.NoError(t, s.Health(context.Background()))
}
