package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestWithDocumentID(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, ctx, WithDocumentID(ctx, ""))
	assert.Equal(t, "fy24-annual", DocumentIDFromContext(WithDocumentID(ctx, "fy24-annual")))

	long := strings.Repeat("é", maxDocumentID+10)
	got := DocumentIDFromContext(WithDocumentID(ctx, long))
	assert.Equal(t, maxDocumentID, len([]rune(got)))
}

func TestWithAuthorized(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, AuthorizedFromContext(ctx))

	set := []string{"jio", "retail"}
	ctx = WithAuthorized(ctx, set)
	set[0] = "mutated"
	assert.Equal(t, []string{"jio", "retail"}, AuthorizedFromContext(ctx))

	denied := WithAuthorized(context.Background(), nil)
	assert.NotNil(t, AuthorizedFromContext(denied))
	assert.Len(t, ContextFields(denied), 1)
}

func TestContextFields_InvalidSpanSkipped(t *testing.T) {
	ctx := trace.ContextWithSpanContext(context.Background(), trace.SpanContext{})
	for _, f := range ContextFields(ctx) {
		assert.NotEqual(t, "trace_id", f.Key)
	}
}
