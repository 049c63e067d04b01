package pebblestore

import (
	"encoding/binary"

	"github.com/brugmanjoost/drumbeat/pkg/id"
)

// Key layout. Variable-length segments are length-prefixed (uint16 BE) so
// that one queue's range never overlaps a queue whose name extends it.
const (
	prefixMeta    = "meta/"
	prefixMsg     = "msg/"  // msg/{id}                               -> record
	prefixQueue   = "qidx/" // qidx/{len}{queue}{id}                  -> status code
	prefixPending = "pidx/" // pidx/{len}{queue}{len}{subject}{id}    -> empty
)

var seqKey = []byte(prefixMeta + "seq")

func appendSegment(b []byte, s string) []byte {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(s)))
	b = append(b, l[:]...)
	return append(b, s...)
}

// MsgKey returns the record key for id.
func MsgKey(msgID int64) []byte {
	k := make([]byte, 0, len(prefixMsg)+8)
	k = append(k, prefixMsg...)
	return append(k, id.Bytes(msgID)...)
}

// QueuePrefix returns the prefix of every index entry of queue.
func QueuePrefix(queue string) []byte {
	return appendSegment([]byte(prefixQueue), queue)
}

// QueueKey returns the queue index key of a message.
func QueueKey(queue string, msgID int64) []byte {
	return append(QueuePrefix(queue), id.Bytes(msgID)...)
}

// PendingPrefix returns the prefix of the pending index for (queue, subject).
func PendingPrefix(queue, subject string) []byte {
	return appendSegment(appendSegment([]byte(prefixPending), queue), subject)
}

// PendingKey returns the pending index key of a message.
func PendingKey(queue, subject string, msgID int64) []byte {
	return append(PendingPrefix(queue, subject), id.Bytes(msgID)...)
}

// idSuffix decodes the trailing 8-byte id of an index key.
func idSuffix(key []byte) (int64, bool) {
	if len(key) < 8 {
		return 0, false
	}
	return id.FromBytes(key[len(key)-8:])
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
