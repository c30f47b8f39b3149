// Package router implements the pipeline orchestrator: a state machine over
// the run status document's markers that turns stage-completion events into
// the next stage's queue messages, exactly once per run regardless of how
// often the transport redelivers.
package router
