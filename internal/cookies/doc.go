// Package cookies manages the per-session authentication cookie jar the
// external download tool reads. Content is structurally validated before
// it is ever persisted, a prior jar is backed up rather than overwritten,
// and age drives a refresh recommendation surfaced in the status API.
package cookies
