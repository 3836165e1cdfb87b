// Package registry tracks every connected endpoint: its identity, its
// liveness ordering, and the dangling list of peers that have not yet
// completed startSession, per spec.md §3 "Endpoint" and §4.D.
package registry
