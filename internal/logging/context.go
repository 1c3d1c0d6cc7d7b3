package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type documentKey struct{}
type authorizedKey struct{}

// maxDocumentID clips document ids carried into log fields.
const maxDocumentID = 128

// ContextFields returns the correlation fields carried by ctx: the active
// span, the document being ingested and the authorization set of a query.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := DocumentIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("document.id", id))
	}
	if v := AuthorizedFromContext(ctx); v != nil {
		fields = append(fields, zap.Strings("authorized", v))
	}
	return fields
}

// WithDocumentID tags ctx with the document being ingested. An empty id
// leaves ctx unchanged.
func WithDocumentID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	if r := []rune(id); len(r) > maxDocumentID {
		id = string(r[:maxDocumentID])
	}
	return context.WithValue(ctx, documentKey{}, id)
}

func DocumentIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(documentKey{}).(string)
	return id
}

// WithAuthorized tags ctx with a query's authorization set. The slice is
// copied; an empty set is kept so a denied query still logs as one.
func WithAuthorized(ctx context.Context, verticals []string) context.Context {
	return context.WithValue(ctx, authorizedKey{}, append(make([]string, 0, len(verticals)), verticals...))
}

// AuthorizedFromContext returns the set attached by WithAuthorized, or nil.
func AuthorizedFromContext(ctx context.Context) []string {
	v, _ := ctx.Value(authorizedKey{}).([]string)
	return v
}
