// Package errors classifies failures for the SCC service.
//
// # Classes
//
//   - Transient: broker or database unavailable, timeouts. Retry or log and move on.
//   - Invalid: malformed telemetry, unknown point or section, unauthorized command.
//     Drop the offending input; never retry.
//   - Fatal: bad configuration or topology. Stop the process.
//
// # Wrapping
//
// All wrapping follows "component.method: action failed: %w":
//
//	errors.WrapInvalid(err, "Decoder", "DecodeFrame", "validate payload")
//	errors.WrapTransient(err, "SQLStore", "Insert", "insert section row")
//	errors.WrapFatal(err, "Graph", "New", "bind point")
//
// Sentinels such as ErrMalformedTelemetry remain reachable through errors.Is
// after wrapping:
//
//	if errors.Is(err, errors.ErrMalformedTelemetry) {
//	    logger.Warn("dropping telemetry", "error", err)
//	}
package errors
