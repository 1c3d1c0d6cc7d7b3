// Package config provides configuration loading for verticald.
//
// Configuration is read from an optional YAML file and VERTICALD_* environment
// variables, in that order of precedence (environment wins). Every section has
// defaults, so an empty file yields a runnable engine with the hash embedder
// and a persistent chromem store.
package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/fyrsmithlabs/verticald/internal/corpus"
)

// ErrInvalidConfig is returned by Validate for any rejected value.
var ErrInvalidConfig = errors.New("invalid configuration")

// Defaults for the retrieval pipeline.
const (
	DefaultPageDelimiter   = "--- PAGE"
	DefaultHeaderPattern   = `^\s*(\d+)\s*---`
	DefaultThreshold       = 0.3
	DefaultDivisor         = 10.0
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 200
	DefaultTopKPerVertical = 5
	DefaultOverallTopK     = 5
	DefaultMaxContextChars = 8000
)

// Config holds the complete verticald configuration.
type Config struct {
	Verticals     corpus.Verticals    `koanf:"verticals"`
	Segmenter     SegmenterConfig     `koanf:"segmenter"`
	Chunking      ChunkingConfig      `koanf:"chunking"`
	Retrieval     RetrievalConfig     `koanf:"retrieval"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	VectorStore   VectorStoreConfig   `koanf:"vectorstore"`
	Events        EventsConfig        `koanf:"events"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// SegmenterConfig controls page splitting and vertical assignment.
type SegmenterConfig struct {
	Delimiter     string `koanf:"delimiter"`
	HeaderPattern string `koanf:"header_pattern"`
	// Threshold is exclusive: a page is assigned when confidence > Threshold.
	Threshold        float64 `koanf:"threshold"`
	Divisor          float64 `koanf:"divisor"`
	SingleAssignment bool    `koanf:"single_assignment"`
}

// ChunkingConfig sets the word window used by the chunker.
type ChunkingConfig struct {
	Size    int `koanf:"size"`
	Overlap int `koanf:"overlap"`
}

// RetrievalConfig bounds the query path.
type RetrievalConfig struct {
	TopKPerVertical int     `koanf:"top_k_per_vertical"`
	OverallTopK     int     `koanf:"overall_top_k"`
	MaxContextChars int     `koanf:"max_context_chars"`
	MinSimilarity   float64 `koanf:"min_similarity"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	Provider          string   `koanf:"provider"` // hash, fastembed, tei, openai
	Model             string   `koanf:"model"`
	BaseURL           string   `koanf:"base_url"`
	APIKey            Secret   `koanf:"api_key"`
	CacheDir          string   `koanf:"cache_dir"`
	Dimension         int      `koanf:"dimension"`
	RequestsPerSecond float64  `koanf:"requests_per_second"`
	Timeout           Duration `koanf:"timeout"`
}

// VectorStoreConfig selects and configures the index backend.
type VectorStoreConfig struct {
	Provider         string `koanf:"provider"` // chromem, qdrant
	CollectionPrefix string `koanf:"collection_prefix"`

	// chromem
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
	InMemory bool   `koanf:"in_memory"`

	// qdrant
	QdrantHost   string `koanf:"qdrant_host"`
	QdrantPort   int    `koanf:"qdrant_port"`
	QdrantTLS    bool   `koanf:"qdrant_tls"`
	QdrantAPIKey Secret `koanf:"qdrant_api_key"`
}

// EventsConfig configures the optional NATS publisher.
type EventsConfig struct {
	Enabled       bool     `koanf:"enabled"`
	URL           string   `koanf:"url"`
	SubjectPrefix string   `koanf:"subject_prefix"`
	Timeout       Duration `koanf:"timeout"`
}

// ObservabilityConfig holds logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel      string  `koanf:"log_level"`
	LogFormat     string  `koanf:"log_format"` // json, console
	ServiceName   string  `koanf:"service_name"`
	MetricsAddr   string  `koanf:"metrics_addr"`
	EnableTracing bool    `koanf:"enable_tracing"`
	OTLPEndpoint  string  `koanf:"otlp_endpoint"`
	OTLPProtocol  string  `koanf:"otlp_protocol"` // grpc, http/protobuf
	OTLPInsecure  bool    `koanf:"otlp_insecure"`
	SamplingRate  float64 `koanf:"sampling_rate"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero values. A zero threshold or similarity floor
// cannot be told apart from "unset"; see Segmenter.Threshold.
func (c *Config) applyDefaults() {
	if len(c.Verticals) == 0 {
		c.Verticals = corpus.DefaultVerticals()
	}

	if c.Segmenter.Delimiter == "" {
		c.Segmenter.Delimiter = DefaultPageDelimiter
	}
	if c.Segmenter.HeaderPattern == "" {
		c.Segmenter.HeaderPattern = DefaultHeaderPattern
	}
	if c.Segmenter.Threshold == 0 {
		c.Segmenter.Threshold = DefaultThreshold
	}
	if c.Segmenter.Divisor == 0 {
		c.Segmenter.Divisor = DefaultDivisor
	}

	if c.Chunking.Size == 0 {
		c.Chunking.Size = DefaultChunkSize
	}
	if c.Chunking.Overlap == 0 {
		c.Chunking.Overlap = DefaultChunkOverlap
	}

	if c.Retrieval.TopKPerVertical == 0 {
		c.Retrieval.TopKPerVertical = DefaultTopKPerVertical
	}
	if c.Retrieval.OverallTopK == 0 {
		c.Retrieval.OverallTopK = DefaultOverallTopK
	}
	if c.Retrieval.MaxContextChars == 0 {
		c.Retrieval.MaxContextChars = DefaultMaxContextChars
	}

	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "hash"
	}
	if c.Embeddings.Timeout == 0 {
		c.Embeddings.Timeout = Duration(30 * time.Second)
	}

	if c.VectorStore.Provider == "" {
		c.VectorStore.Provider = "chromem"
	}
	if c.VectorStore.CollectionPrefix == "" {
		c.VectorStore.CollectionPrefix = "verticald"
	}
	if c.VectorStore.Path == "" {
		c.VectorStore.Path = "~/.local/share/verticald/vectorstore"
	}
	if c.VectorStore.QdrantHost == "" {
		c.VectorStore.QdrantHost = "localhost"
	}
	if c.VectorStore.QdrantPort == 0 {
		c.VectorStore.QdrantPort = 6334
	}

	if c.Events.URL == "" {
		c.Events.URL = "nats://127.0.0.1:4222"
	}
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = "verticald"
	}
	if c.Events.Timeout == 0 {
		c.Events.Timeout = Duration(5 * time.Second)
	}

	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = "json"
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "verticald"
	}
	if c.Observability.MetricsAddr == "" {
		c.Observability.MetricsAddr = "127.0.0.1:9464"
	}
	if c.Observability.OTLPEndpoint == "" {
		c.Observability.OTLPEndpoint = "localhost:4317"
	}
	if c.Observability.OTLPProtocol == "" {
		c.Observability.OTLPProtocol = "grpc"
	}
	if c.Observability.SamplingRate == 0 {
		c.Observability.SamplingRate = 1.0
	}
}

var prefixPattern = regexp.MustCompile(`^[a-z0-9_]{1,15}$`)

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if err := c.Verticals.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: verticals: %w", ErrInvalidConfig, err))
	}

	if strings.TrimSpace(c.Segmenter.Delimiter) == "" {
		add("segmenter.delimiter is required")
	}
	if re, err := regexp.Compile(c.Segmenter.HeaderPattern); err != nil {
		add("segmenter.header_pattern: %v", err)
	} else if re.NumSubexp() < 1 {
		add("segmenter.header_pattern must capture the page number")
	}
	if c.Segmenter.Threshold < 0 || c.Segmenter.Threshold >= 1 {
		add("segmenter.threshold must be in [0, 1), got %v", c.Segmenter.Threshold)
	}
	if c.Segmenter.Divisor <= 0 {
		add("segmenter.divisor must be positive, got %v", c.Segmenter.Divisor)
	}

	if c.Chunking.Size <= 0 {
		add("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		add("chunking.overlap must be in [0, size), got %d", c.Chunking.Overlap)
	}

	if c.Retrieval.TopKPerVertical <= 0 {
		add("retrieval.top_k_per_vertical must be positive")
	}
	if c.Retrieval.OverallTopK <= 0 {
		add("retrieval.overall_top_k must be positive")
	}
	if c.Retrieval.MaxContextChars <= 0 {
		add("retrieval.max_context_chars must be positive")
	}
	if c.Retrieval.MinSimilarity < -1 || c.Retrieval.MinSimilarity > 1 {
		add("retrieval.min_similarity must be in [-1, 1], got %v", c.Retrieval.MinSimilarity)
	}

	switch c.Embeddings.Provider {
	case "hash", "fastembed":
	case "tei":
		if c.Embeddings.BaseURL == "" {
			add("embeddings.base_url is required for tei")
		}
	case "openai":
		if !c.Embeddings.APIKey.IsSet() {
			add("embeddings.api_key is required for openai")
		}
		if c.Embeddings.Model == "" {
			add("embeddings.model is required for openai")
		}
	default:
		add("unknown embeddings.provider %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimension < 0 {
		add("embeddings.dimension must not be negative")
	}
	if c.Embeddings.RequestsPerSecond < 0 {
		add("embeddings.requests_per_second must not be negative")
	}

	switch c.VectorStore.Provider {
	case "chromem":
	case "qdrant":
		if c.VectorStore.QdrantPort <= 0 || c.VectorStore.QdrantPort > 65535 {
			add("vectorstore.qdrant_port out of range: %d", c.VectorStore.QdrantPort)
		}
		if strings.ContainsAny(c.VectorStore.QdrantHost, " /\\") {
			add("vectorstore.qdrant_host is not a host name: %q", c.VectorStore.QdrantHost)
		}
	default:
		add("unknown vectorstore.provider %q", c.VectorStore.Provider)
	}
	if !prefixPattern.MatchString(c.VectorStore.CollectionPrefix) {
		add("vectorstore.collection_prefix must match %s", prefixPattern)
	}
	if strings.Contains(c.VectorStore.Path, "..") {
		add("vectorstore.path must not contain '..'")
	}

	if c.Events.Enabled && !strings.HasPrefix(c.Events.URL, "nats://") && !strings.HasPrefix(c.Events.URL, "tls://") {
		add("events.url must use nats:// or tls://")
	}

	switch strings.ToLower(c.Observability.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		add("observability.log_level %q is not a level", c.Observability.LogLevel)
	}
	if c.Observability.LogFormat != "json" && c.Observability.LogFormat != "console" {
		add("observability.log_format must be json or console")
	}
	if _, _, err := net.SplitHostPort(c.Observability.MetricsAddr); err != nil {
		add("observability.metrics_addr: %v", err)
	}
	if c.Observability.OTLPProtocol != "grpc" && c.Observability.OTLPProtocol != "http/protobuf" {
		add("observability.otlp_protocol must be grpc or http/protobuf")
	}
	if c.Observability.SamplingRate < 0 || c.Observability.SamplingRate > 1 {
		add("observability.sampling_rate must be in [0, 1]")
	}

	return errors.Join(errs...)
}
