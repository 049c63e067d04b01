// Package storage defines the persistence port used by the lifecycle engine.
//
// Implementations live in sub-packages: pebble (embedded, default), memory
// and sqlstore (PostgreSQL and MySQL). Every implementation must make
// Resolve a compare-and-swap on the Pending state so that two concurrent
// transitions of the same message commit at most one state change.
package storage
