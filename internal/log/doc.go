/*
Package log provides structured logging for the store engine using zerolog.

Logs are written to stderr by default, never stdout: stdout carries the
framed request/response protocol (see internal/protocol), and interleaving
log lines with that byte stream would corrupt it.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("dispatch")
	logger = log.WithRefID(logger, refID)
	logger = log.WithTag(logger, string(req.Tag))
	logger.Info().Msg("request handled")

Context loggers take a base logger and return a derived zerolog.Logger, so
callers chain fields one at a time rather than building a fixed schema:

	logger := log.WithDocID(log.WithComponent("dispatch"), docID)
	logger.Warn().Msg("malformed hash on apply")

# Levels

Debug is for per-request tracing during development; Info is the default
production level; Warn marks recoverable anomalies (e.g. an ApplyChanges
entry whose hash has the wrong length, which is applied anyway per the
protocol's advisory-hash contract); Error marks a storage failure returned to the host as an Error
response. Fatal is reserved for startup failures before the session loop
begins.
*/
package log
