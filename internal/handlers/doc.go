// Package handlers implements the HTTP boundary: batch submission,
// status, credential upload, per-session file listing and retrieval, the
// websocket join point, and health/version endpoints. Handlers translate
// request-shaped failures (validation, busy, not-found, forbidden) into
// structured JSON responses; everything else is logged and surfaced as a
// generic internal error.
package handlers
