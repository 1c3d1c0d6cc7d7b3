package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const backendQdrant = "qdrant"

// Payload keys reserved by the qdrant backend.
const (
	payloadContent = "_content"
	payloadID      = "_id"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("verticald.vectorstore.qdrant")

// idNamespace maps caller IDs that are not UUIDs onto qdrant point IDs.
var idNamespace = uuid.MustParse("6f1d0c1e-3b55-4c58-9a7e-2f0b1f5c9d41")

// QdrantConfig holds configuration for Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT HTTP REST port).
	// Default: 6334
	Port int

	// APIKey authenticates against Qdrant Cloud. Optional.
	APIKey string

	// VectorSize is the dimensionality of embeddings.
	VectorSize int

	// UseTLS enables TLS encryption for gRPC connection.
	UseTLS bool

	// MaxRetries is the maximum number of retry attempts for transient failures.
	// Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries.
	// Doubles on each retry (exponential backoff).
	// Default: 200ms
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int

	// CircuitBreakerThreshold is the number of consecutive failures before opening circuit.
	// Default: 5
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open.
	// Default: 30s
	CircuitBreakerTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.CircuitBreakerTimeout == 0 {
		c.CircuitBreakerTimeout = 30 * time.Second
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidConfig)
	}
	return nil
}

// IsTransientError checks if an error is transient (should retry).
// Returns true for network timeouts, temporary unavailability.
// Returns false for invalid config, not found, permission denied.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore is a Store implementation using Qdrant's native gRPC client.
type QdrantStore struct {
	client  *qdrant.Client
	config  QdrantConfig
	logger  *zap.Logger
	breaker *gobreaker.CircuitBreaker

	// collections caches collections known to exist.
	collections sync.Map
}

// NewQdrantStore connects to Qdrant and verifies the connection with a
// health check.
func NewQdrantStore(ctx context.Context, config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)",
			zap.String("host", config.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := newQdrantStore(client, config, logger)

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Health(hctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.Int("vector_size", config.VectorSize),
	)
	return store, nil
}

func newQdrantStore(client *qdrant.Client, config QdrantConfig, logger *zap.Logger) *QdrantStore {
	threshold := uint32(config.CircuitBreakerThreshold)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "qdrant",
		MaxRequests: 1,
		Timeout:     config.CircuitBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Only transport failures count against the breaker.
			return err == nil || !IsTransientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			CircuitState.Set(float64(to))
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &QdrantStore{
		client:  client,
		config:  config,
		logger:  logger,
		breaker: breaker,
	}
}

// Backend returns "qdrant".
func (s *QdrantStore) Backend() string { return backendQdrant }

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Health performs a health check on the Qdrant connection.
func (s *QdrantStore) Health(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Health")
	defer span.End()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: health check failed: %v", ErrConnectionFailed, err)
	}
	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// retryOperation retries an operation with exponential backoff behind the
// circuit breaker.
func (s *QdrantStore) retryOperation(ctx context.Context, operationName string, operation func() error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		_, err := s.breaker.Execute(func() (interface{}, error) {
			return nil, operation()
		})
		if err == nil {
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s: circuit breaker open", ErrConnectionFailed, operationName)
		}

		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}

		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%w: %s failed after %d retries: %v", ErrConnectionFailed, operationName, s.config.MaxRetries, err)
		}

		s.logger.Debug("retrying qdrant operation",
			zap.String("operation", operationName),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance if missing.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, dimension int) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.EnsureCollection")
	defer span.End()
	defer track(backendQdrant, "ensure_collection")(&err)

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("vector_size", dimension),
	)

	if err = ValidateCollectionName(collection); err != nil {
		return err
	}
	if dimension != s.config.VectorSize {
		err = fmt.Errorf("%w: collection %s wants %d, store holds %d", ErrDimensionMismatch, collection, dimension, s.config.VectorSize)
		return err
	}
	if _, ok := s.collections.Load(collection); ok {
		return nil
	}

	var exists bool
	err = s.retryOperation(ctx, "collection_exists", func() error {
		var cerr error
		exists, cerr = s.client.CollectionExists(ctx, collection)
		return cerr
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("checking collection %s: %w", collection, err)
	}

	if !exists {
		err = s.retryOperation(ctx, "create_collection", func() error {
			return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: collection,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     uint64(dimension),
					Distance: qdrant.Distance_Cosine,
				}),
			})
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("creating collection %s: %w", collection, err)
		}
		s.logger.Info("created collection", zap.String("collection", collection))
	}

	s.collections.Store(collection, true)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Upsert inserts or replaces documents and waits for the write to apply.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, docs []Document) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	defer track(backendQdrant, "upsert")(&err)

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	if err = validateDocuments(docs, s.config.VectorSize); err != nil {
		return err
	}
	if err = s.EnsureCollection(ctx, collection, s.config.VectorSize); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, d := range docs {
		points[i] = &qdrant.PointStruct{
			Id:      pointID(d.ID),
			Vectors: qdrant.NewVectors(d.Embedding...),
			Payload: toPayload(d),
		}
	}

	err = s.retryOperation(ctx, "upsert", func() error {
		_, uerr := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return uerr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting into %s: %w", collection, err)
	}

	DocumentsWritten.WithLabelValues(backendQdrant).Add(float64(len(docs)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query performs similarity search with an optional keyword filter.
func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, k int, where map[string]string) (results []SearchResult, err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Query")
	defer span.End()
	defer track(backendQdrant, "query")(&err)

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	)

	if err = ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if k <= 0 {
		err = fmt.Errorf("%w: k must be positive, got %d", ErrInvalidConfig, k)
		return nil, err
	}
	if len(vector) != s.config.VectorSize {
		err = fmt.Errorf("%w: query has %d, want %d", ErrDimensionMismatch, len(vector), s.config.VectorSize)
		return nil, err
	}

	exists, err := s.exists(ctx, collection)
	if err != nil || !exists {
		return []SearchResult{}, err
	}

	var points []*qdrant.ScoredPoint
	err = s.retryOperation(ctx, "query", func() error {
		res, qerr := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			Filter:         keywordFilter(where),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		points = res
		return qerr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	results = make([]SearchResult, len(points))
	for i, p := range points {
		d := fromPayload(p.GetPayload())
		results[i] = SearchResult{
			ID:       d.ID,
			Content:  d.Content,
			Score:    float64(p.GetScore()),
			Metadata: d.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Get returns documents with their vectors.
func (s *QdrantStore) Get(ctx context.Context, collection string, ids []string) (docs []Document, err error) {
	defer track(backendQdrant, "get")(&err)

	if err = ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	exists, err := s.exists(ctx, collection)
	if err != nil || !exists {
		return nil, err
	}

	pids := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pids[i] = pointID(id)
	}

	var points []*qdrant.RetrievedPoint
	err = s.retryOperation(ctx, "get", func() error {
		res, gerr := s.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: collection,
			Ids:            pids,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		points = res
		return gerr
	})
	if err != nil {
		return nil, fmt.Errorf("getting points from %s: %w", collection, err)
	}

	docs = make([]Document, 0, len(points))
	for _, p := range points {
		d := fromPayload(p.GetPayload())
		d.Embedding = denseVector(p.GetVectors())
		docs = append(docs, d)
	}
	return docs, nil
}

// Delete removes points by ID.
func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) (err error) {
	defer track(backendQdrant, "delete")(&err)

	if len(ids) == 0 {
		return nil
	}
	if err = ValidateCollectionName(collection); err != nil {
		return err
	}
	exists, err := s.exists(ctx, collection)
	if err != nil || !exists {
		return err
	}

	pids := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pids[i] = pointID(id)
	}

	err = s.retryOperation(ctx, "delete", func() error {
		_, derr := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         qdrant.NewPointsSelector(pids...),
		})
		return derr
	})
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", collection, err)
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return 0, err
	}
	exists, err := s.exists(ctx, collection)
	if err != nil || !exists {
		return 0, err
	}

	var n uint64
	err = s.retryOperation(ctx, "count", func() error {
		var cerr error
		n, cerr = s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: collection,
			Exact:          qdrant.PtrOf(true),
		})
		return cerr
	})
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", collection, err)
	}
	return int(n), nil
}

// DeleteCollection deletes a collection and all its points.
func (s *QdrantStore) DeleteCollection(ctx context.Context, collection string) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.DeleteCollection")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collection))

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	exists, err := s.exists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	err = s.retryOperation(ctx, "delete_collection", func() error {
		return s.client.DeleteCollection(ctx, collection)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", collection, err)
	}

	s.collections.Delete(collection)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// ListCollections returns all collection names, sorted.
func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	var collections []string
	err := s.retryOperation(ctx, "list_collections", func() error {
		res, lerr := s.client.ListCollections(ctx)
		collections = res
		return lerr
	})
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	sort.Strings(collections)
	return collections, nil
}

func (s *QdrantStore) exists(ctx context.Context, collection string) (bool, error) {
	if _, ok := s.collections.Load(collection); ok {
		return true, nil
	}
	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func() error {
		var cerr error
		exists, cerr = s.client.CollectionExists(ctx, collection)
		return cerr
	})
	if err != nil {
		return false, fmt.Errorf("checking collection %s: %w", collection, err)
	}
	if exists {
		s.collections.Store(collection, true)
	}
	return exists, nil
}

// pointID maps a caller ID to a qdrant UUID point ID.
func pointID(id string) *qdrant.PointId {
	if u, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(u.String())
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(idNamespace, []byte(id)).String())
}

func keywordFilter(where map[string]string) *qdrant.Filter {
	if len(where) == 0 {
		return nil
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make([]*qdrant.Condition, 0, len(keys))
	for _, k := range keys {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: k,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: where[k]},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func toPayload(d Document) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(d.Metadata)+2)
	for k, v := range d.Metadata {
		payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
	}
	payload[payloadContent] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: d.Content}}
	payload[payloadID] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: d.ID}}
	return payload
}

func fromPayload(payload map[string]*qdrant.Value) Document {
	d := Document{Metadata: make(map[string]string, len(payload))}
	for k, v := range payload {
		var str string
		switch val := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			str = val.StringValue
		case *qdrant.Value_IntegerValue:
			str = fmt.Sprintf("%d", val.IntegerValue)
		case *qdrant.Value_DoubleValue:
			str = fmt.Sprintf("%g", val.DoubleValue)
		case *qdrant.Value_BoolValue:
			str = fmt.Sprintf("%t", val.BoolValue)
		default:
			continue
		}
		switch k {
		case payloadContent:
			d.Content = str
		case payloadID:
			d.ID = str
		default:
			d.Metadata[k] = str
		}
	}
	return d
}

func denseVector(v *qdrant.VectorsOutput) []float32 {
	out := v.GetVector()
	if out == nil {
		return nil
	}
	if dense := out.GetDense(); dense != nil {
		return dense.GetData()
	}
	return out.GetData()
}

// Ensure QdrantStore implements Store interface.
var _ Store = (*QdrantStore)(nil)
