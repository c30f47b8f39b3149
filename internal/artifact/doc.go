// Package artifact reads and writes the JSON documents stages produce under
// a run's storage prefix.
//
// The Store interface abstracts the durable blob service; the filesystem
// implementation is the default backend and provides read-your-writes
// consistency per path. Artifacts are deterministic for a given run, so a
// redelivered stage overwriting its own output is a safe no-op.
package artifact
