// Package api implements the campaign-facing service surface: starting a
// run, reading its status document, and listing known runs. The HTTP
// plumbing lives in the daemon package; this package owns request
// validation and the run bootstrap sequence.
package api
