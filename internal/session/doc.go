// Package session installs and owns the per-endpoint Session object
// created by a successful startSession handshake: the live handle table,
// the pending-response correlation table, and the hvml:// URI prefix used
// when pushing pages to the rendering subprocess, per spec.md §3 "Session"
// and §4.E.
package session
