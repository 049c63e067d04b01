// Package runtime assembles a drumbeat instance from its configuration: the
// storage backend, the access policy, the optional Kafka notifier and the
// lifecycle engine. Servers receive a *Runtime and never build these pieces
// themselves.
package runtime
