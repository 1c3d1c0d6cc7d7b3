package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQdrantConfig_Defaults(t *testing.T) {
	cfg := QdrantConfig{VectorSize: 384}
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5, cfg.CircuitBreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.CircuitBreakerTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestQdrantConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  QdrantConfig
	}{
		{"missing host", QdrantConfig{Port: 6334, VectorSize: 3}},
		{"bad port", QdrantConfig{Host: "localhost", Port: 70000, VectorSize: 3}},
		{"no vector size", QdrantConfig{Host: "localhost", Port: 6334}},
		{"negative retries", QdrantConfig{Host: "localhost", Port: 6334, VectorSize: 3, MaxRetries: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.cfg.Validate(), ErrInvalidConfig))
		})
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"unavailable", status.Error(grpccodes.Unavailable, "down"), true},
		{"deadline", status.Error(grpccodes.DeadlineExceeded, "slow"), true},
		{"exhausted", status.Error(grpccodes.ResourceExhausted, "busy"), true},
		{"not found", status.Error(grpccodes.NotFound, "missing"), false},
		{"invalid", status.Error(grpccodes.InvalidArgument, "bad"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransientError(tt.err))
		})
	}
}

func TestQdrantStore_RetryAndBreaker(t *testing.T) {
	store := newQdrantStore(nil, QdrantConfig{
		MaxRetries:              2,
		RetryBackoff:            time.Millisecond,
		CircuitBreakerThreshold: 3,
		CircuitBreakerTimeout:   time.Minute,
	}, zap.NewNop())
	ctx := context.Background()

	calls := 0
	err := store.retryOperation(ctx, "op", func() error {
		calls++
		return status.Error(grpccodes.Unavailable, "down")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnectionFailed))
	assert.Equal(t, 3, calls)

	// breaker is open now; the operation is not attempted
	calls = 0
	err = store.retryOperation(ctx, "op", func() error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Zero(t, calls)
}

func TestQdrantStore_PermanentErrorNotRetried(t *testing.T) {
	store := newQdrantStore(nil, QdrantConfig{
		MaxRetries:              3,
		RetryBackoff:            time.Millisecond,
		CircuitBreakerThreshold: 1,
		CircuitBreakerTimeout:   time.Minute,
	}, zap.NewNop())

	calls := 0
	err := store.retryOperation(context.Background(), "op", func() error {
		calls++
		return status.Error(grpccodes.InvalidArgument, "bad")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	// permanent errors do not trip the breaker
	err = store.retryOperation(context.Background(), "op", func() error { return nil })
	assert.NoError(t, err)
}

func TestPayloadRoundTrip(t *testing.T) {
	d := Document{
		ID:       "retail_3_0",
		Content:  "store count",
		Metadata: map[string]string{"vertical": "retail", "page_number": "3"},
	}
	got := fromPayload(toPayload(d))
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, d.Content, got.Content)
	assert.Equal(t, d.Metadata, got.Metadata)
}

func TestPointID(t *testing.T) {
	u := "0b6c2a4e-6f5c-4c1a-9a3c-6d4f2a1b0c9e"
	assert.Equal(t, u, pointID(u).GetUuid())

	a := pointID("retail_1_0").GetUuid()
	b := pointID("retail_1_0").GetUuid()
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, pointID("retail_1_1").GetUuid())
}

func TestKeywordFilter(t *testing.T) {
	assert.Nil(t, keywordFilter(nil))

	f := keywordFilter(map[string]string{"vertical": "energy", "document_id": "q3"})
	require.Len(t, f.GetMust(), 2)
	assert.Equal(t, "document_id", f.GetMust()[0].GetField().GetKey())
	assert.Equal(t, "energy", f.GetMust()[1].GetField().GetMatch().GetKeyword())
}

func TestDenseVector(t *testing.T) {
	assert.Nil(t, denseVector(nil))

	out := &qdrant.VectorsOutput{
		VectorsOptions: &qdrant.VectorsOutput_Vector{
			Vector: &qdrant.VectorOutput{
				Vector: &qdrant.VectorOutput_Dense{Dense: &qdrant.DenseVector{Data: []float32{1, 2}}},
			},
		},
	}
	assert.Equal(t, []float32{1, 2}, denseVector(out))
}
