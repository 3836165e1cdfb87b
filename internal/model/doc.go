// Package model implements the abstract page/widget/DOM object model that
// requests operate on: workspaces, pages (plain windows and embedded
// widgets), web views, and the page-owner stacks that govern coroutine
// suppression/reload across sessions. Grounded on spec.md §4.G and
// original_source/source/bin/server/endpoint.c's page/owner bookkeeping,
// using the arena-index style spec.md §9 recommends (Workspace owns
// page_owners by PageID; OwnerStack never references a session strongly).
package model
