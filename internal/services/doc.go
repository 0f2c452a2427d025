// Package services defines shared utilities consumed by the subtitle pipeline
// and its external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and request IDs for
//     logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (bad input, missing tool, timeout) without string matching.
//   - HTTPStatus, which maps those markers onto response codes for the upload
//     server.
package services
