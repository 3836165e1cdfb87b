// Package events builds outbound protocol Event messages — destroy,
// pageActivated/pageDeactivated, and DOM-proxied events — and hands them
// to the same response-writer path ordinary responses use, per spec.md
// §4.I.
package events
