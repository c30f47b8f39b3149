// Package workflow runs the queue-processing loop of the daemon: it leases
// deliveries from the control and stage queues, dispatches them to the
// router and the registered workers, and applies the retry and poison
// policy.
package workflow
