// Package pathing derives the canonical storage prefix for a campaign run.
//
// Every component that touches run artifacts (start handler, router, stage
// workers, CLI) must address them through Resolve so that the same inputs
// always yield the same prefix. Any drift between callers silently orphans
// artifacts, so the sanitization rules here are fixed and covered by
// byte-exact tests.
package pathing
