// Package domsink implements the DOM update pipeline: it marshals
// DOM-mutation and property-access requests into JSON page-messages for
// the rendering subprocess and correlates its asynchronous page-ready
// replies and unsolicited events back to the endpoint that issued them,
// per spec.md §4.H.
package domsink
