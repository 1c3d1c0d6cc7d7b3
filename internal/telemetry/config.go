package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/verticald/internal/config"
)

// OTLP transports.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config selects the collector and what is exported to it. It is derived
// from the observability section rather than read directly.
type Config struct {
	Enabled        bool
	Endpoint       string
	Protocol       string
	ServiceName    string
	ServiceVersion string

	// Insecure sends plaintext; allowed for loopback collectors only.
	Insecure bool
	// TLSSkipVerify keeps TLS but accepts any certificate.
	TLSSkipVerify bool

	// SampleRate is the fraction of root traces kept, 0 to 1.
	SampleRate float64

	Metrics        bool
	MetricInterval time.Duration

	// ShutdownTimeout bounds the final flush when the caller's context has
	// no deadline.
	ShutdownTimeout time.Duration
}

// NewDefaultConfig exports nothing until Enabled is set, then targets a
// local gRPC collector.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:        "localhost:4317",
		Protocol:        ProtocolGRPC,
		ServiceName:     "verticald",
		ServiceVersion:  "dev",
		Insecure:        true,
		SampleRate:      1,
		Metrics:         true,
		MetricInterval:  15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// FromObservability maps the observability section onto a Config. Plaintext
// is chosen automatically for loopback endpoints.
func FromObservability(obs config.ObservabilityConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = obs.EnableTracing
	cfg.SampleRate = obs.SamplingRate
	if obs.OTLPEndpoint != "" {
		cfg.Endpoint = obs.OTLPEndpoint
	}
	if obs.OTLPProtocol != "" {
		cfg.Protocol = obs.OTLPProtocol
	}
	if obs.ServiceName != "" {
		cfg.ServiceName = obs.ServiceName
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	cfg.Insecure = obs.OTLPInsecure || isLocalEndpoint(cfg.Endpoint)
	return cfg
}

// Validate reports every problem at once. A disabled Config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Endpoint == "" {
		add("endpoint is required")
	} else if c.Insecure && !isLocalEndpoint(c.Endpoint) {
		add("plaintext export to %s refused; use TLS for remote collectors", c.Endpoint)
	}
	if c.ServiceName == "" || c.ServiceVersion == "" {
		add("service name and version are required")
	}
	if c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		add("protocol %q is not %s or %s", c.Protocol, ProtocolGRPC, ProtocolHTTP)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		add("sample rate %v outside [0, 1]", c.SampleRate)
	}
	if c.Metrics && c.MetricInterval <= 0 {
		add("metric interval must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		add("shutdown timeout must be positive")
	}
	return errors.Join(errs...)
}

// isLocalEndpoint reports whether endpoint names a loopback host, with or
// without scheme and port.
func isLocalEndpoint(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
