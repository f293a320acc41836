// Package logging configures the process-wide slog handler.
//
// Components never hold a logging.Logger; they call
// slog.Default().With("component", ...) and log through whatever handler
// Install put in place:
//
//	if _, err := logging.Install(logging.FromConfig(cfg.Telemetry.Logging)); err != nil {
//	    return err
//	}
//
// # Redaction
//
// With RedactPII set, attribute values and messages are scanned before
// they reach the output:
//
//   - Email addresses: ops@example.com becomes o***@example.com
//   - Bearer tokens, Telegram bot tokens and AWS access key ids are masked
//   - Values under keys such as password, token or secret are replaced by ***
//
// # Context fields
//
// Records logged with a context carrying a request ID (see WithRequestID)
// get a request_id attribute.
package logging
