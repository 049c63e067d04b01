// Package message defines the task message record, its lifecycle states and
// the domain errors shared by storage, the lifecycle engine and the API.
//
// A message starts Pending and moves exactly once to one of the terminal
// states Cancelled, Completed or Failed. Each state has a lowercase wire token
// and a numeric storage code:
//
//	pending   1
//	cancelled 2
//	completed 3
//	failed    4
//
// Decoding a code outside this table is a storage corruption and yields
// ErrCorruptState; it is never mapped to a default state.
package message
