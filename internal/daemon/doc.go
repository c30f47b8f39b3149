// Package daemon composes the long-running loom process: the queue store,
// the workflow manager with its registered stages, the campaign API server,
// and the single-instance lock.
package daemon
