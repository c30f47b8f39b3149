// Package runstatus manages the per-run status document, the only shared
// mutable state between the stage router and the stage workers.
//
// There is no compare-and-swap on the underlying store: Write performs a
// read-merge-write and the later of two racing writers wins. The merge
// rules keep that tolerable: markers are monotonic (once true, never unset)
// and history is append-only, so replaying or duplicating a write never
// regresses control-flow state. Callers keep the read-decide-write window
// as short as possible.
package runstatus
