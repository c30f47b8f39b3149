// Package stage defines the contract every pipeline worker implements and
// the shared environment that enforces the common stage discipline: tolerant
// input loading, unconditional output envelopes, status completion markers,
// and the continuation enqueue that keeps the pipeline moving.
package stage
