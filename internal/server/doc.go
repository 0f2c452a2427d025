// Package server exposes subtitle generation over HTTP.
//
// Routes:
//   - POST /upload accepts a multipart "video" file, runs the subtitle
//     pipeline (or reuses a stored result for identical content), and returns
//     the subtitle file name and job id.
//   - GET /subtitles/{filename} downloads a generated SRT as an attachment.
//   - GET /api/jobs, GET /api/jobs/{id}, and GET /api/status report job
//     history and service health.
//
// A bearer token guards every route when server.api_token is set. Only one
// server may run per data directory; the instance lock lives next to the
// job database.
package server
