// Package lifecycle implements the message state machine on top of a
// storage.Gateway.
//
// Every operation is scoped to a queue: a message id that exists in another
// queue is reported as not found. Transitions out of Pending are
// compare-and-swap writes; when a concurrent writer wins the race the loser
// sees ErrNotPending, or ErrNotFound if the message was deleted meanwhile.
//
// Duplicate detection on Create runs in one of two modes. DedupBestEffort
// checks for a Pending (queue, subject) and then inserts, leaving a small
// window in which two racing creates both succeed. DedupStrict requires a
// gateway implementing storage.ExclusiveInserter and closes that window.
package lifecycle
