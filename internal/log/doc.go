// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (cookies, tokens, secrets)
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - OAuth app credentials (client secrets, access and refresh tokens)
//   - Secret values detected by pattern matching (passwords, tokens, keys)
//   - Session identifiers and authentication tokens
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or stored. The API client
// logs request URLs and rate limit headers; its bearer token never survives
// the handler.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("token refreshed",
//	    "access_token", "abc123",  // Will be sanitized to "***REDACTED***"
//	    "expires_in", 3600,
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
