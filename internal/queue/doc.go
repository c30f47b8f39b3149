// Package queue persists pipeline messages in SQLite and exposes the
// gateway used to enqueue them.
//
// Delivery is at-least-once: a leased message that is not acked before its
// lease expires returns to the ready state and is delivered again, and a
// message that keeps failing is parked as dead once it exhausts the
// delivery budget. Consumers must be idempotent; nothing here prevents the
// same message from being processed twice.
//
// The database is transient storage for in-flight work, not an archive.
// Schema changes bump schemaVersion in schema.go.
package queue
