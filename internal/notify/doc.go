// Package notify publishes lifecycle events to Kafka.
//
// Events are keyed by queue name so that all events of one queue land on
// the same partition and keep their order. Publishing is synchronous and
// best effort: failures are returned to the engine, which logs them.
package notify
