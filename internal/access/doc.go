// Package access resolves bearer credentials to per-queue capabilities.
//
// Credentials are (token, queue, admin, worker) records. A token may appear
// several times for different queues or roles; the capabilities for a
// (token, queue) pair are the union of every matching record. Matching is
// exact and case-sensitive. Anything that does not match, including a
// missing or malformed Authorization header, resolves to no capabilities.
//
// The package also owns the visibility rule: callers without the admin
// capability only ever see Pending messages.
package access
