// Package session implements the process-wide session registry.
//
// Sessions are identified by opaque random tokens. Resolving a malformed
// or unknown token mints a fresh session rather than failing; this
// privileges availability over strict session continuity and is a
// deliberate policy, not an accident. Each session owns one output
// directory, one cookie-jar path, and at most one download Orchestrator,
// created lazily and never replaced.
package session
