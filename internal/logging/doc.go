// Package logging wraps zap for verticald.
//
// Logger methods take a context and prepend its correlation fields: the
// active trace and span ids, the document being ingested (WithDocumentID)
// and the authorization set of a query (WithAuthorized).
//
//	cfg, err := logging.FromObservability(appCfg.Observability)
//	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
//	defer logger.Sync()
//
//	ctx = logging.WithAuthorized(ctx, []string{"jio", "retail"})
//	logger.Info(ctx, "query answered", zap.Int("chunks", n))
//
// Entries go to stderr (or Config.Writer) and, when tracing is on, to the
// OpenTelemetry log pipeline through otelzap. Both outputs redact configured
// keys and scrub secret-looking substrings such as bearer tokens. Levels
// below Error are sampled per message; Error and above never are.
//
// Packages below the engine take the *zap.Logger from Underlying and only
// see context fields their caller adds explicitly.
package logging
