// Package events delivers orchestrator progress and log events to
// connected browsers over websockets. Clients join a room keyed by their
// session token and only ever see their own session's events.
package events
