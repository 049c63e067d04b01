// Package serverrun exposes the Run entrypoint used by the CLI to start a
// drumbeat instance with its HTTP and gRPC servers and to shut it down on
// cancellation or signal.
package serverrun
