// Package dispatch routes a parsed PurCMC request to its handler via a
// static, alphabetically sorted operation table, per spec.md §4.F.
package dispatch
