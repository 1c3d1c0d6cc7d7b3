// Package telemetry bootstraps OpenTelemetry tracing and metrics for verticald.
//
// Spans are created by each layer through otel.Tracer; this package only
// installs the exporting providers. With tracing disabled the global no-op
// providers stay in place and every span is free.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// # Configuration
//
//	observability:
//	  enable_tracing: true
//	  otlp_endpoint: "localhost:4317"
//	  otlp_protocol: grpc          # or http/protobuf
//	  sampling_rate: 0.1
//
// Insecure transport is only permitted for loopback endpoints. Status reports
// whether export is running; the health command prints it.
package telemetry
