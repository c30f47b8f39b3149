// Package workers holds the concrete pipeline stages. Each worker consumes
// one stage message, computes deterministically from artifacts under the run
// prefix, writes one output artifact with diagnostics, and reports completion
// through the shared stage environment.
package workers
