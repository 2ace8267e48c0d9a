// Package logging provides structured logging for the softap daemon and client.
//
// This package wraps a process-wide zap logger with convenience functions for
// the patterns used by the provisioning server: connection events, raw request
// dumps, HTTP responses and network mode transitions.
//
// # Log Levels
//
//   - Debug: raw request bytes, individual transition steps, rendered config files
//   - Info: connections, classified requests, completed transitions
//   - Warn: failed transition steps, dropped connections, fallback to AP mode
//   - Error: startup failures, failed fallback
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("info"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// An empty level falls back to SOFTAP_LOG_LEVEL; if that is unset too the
// logger is a no-op. Components that take an injected *zap.Logger should be
// given logging.Named("component").
//
// Wi-Fi passphrases are never passed to any function in this package.
package logging
