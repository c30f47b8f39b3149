// Package message defines the stage message that moves campaign work
// through the durable queues, and the codec that normalizes the three wire
// shapes a delivery may arrive in: a raw JSON object, a JSON string wrapping
// JSON, or base64-encoded JSON.
//
// Decode is the single place that deals with wire shape. Everything
// downstream works with the typed Message; no consumer branches on runtime
// type tags.
package message
