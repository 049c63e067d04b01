package pebblestore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/brugmanjoost/drumbeat/internal/message"
)

// Record layout: version(1) | status(1) | payload | crc32c(version|status|payload)
// payload is the JSON encoding of recordBody.

const recordVersion byte = 1

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

type recordBody struct {
	Queue        string          `json:"q"`
	Subject      string          `json:"s"`
	TimeStart    time.Time       `json:"ts"`
	TimeEnd      *time.Time      `json:"te,omitempty"`
	RequestBody  json.RawMessage `json:"req,omitempty"`
	ResponseBody json.RawMessage `json:"res,omitempty"`
}

// EncodeRecord serialises m without its id, which lives in the key.
func EncodeRecord(m message.Message) ([]byte, error) {
	payload, err := json.Marshal(recordBody{
		Queue:        m.Queue,
		Subject:      m.Subject,
		TimeStart:    m.TimeStart,
		TimeEnd:      m.TimeEnd,
		RequestBody:  message.Body(m.RequestBody),
		ResponseBody: message.Body(m.ResponseBody),
	})
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 2+len(payload)+4)
	out = append(out, recordVersion, byte(m.Status.Code()))
	out = append(out, payload...)
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], crc32.Checksum(out, castagnoli))
	return append(out, cb[:]...), nil
}

// DecodeRecord parses a stored record. Checksum mismatches and unknown status
// codes yield message.ErrCorruptState.
func DecodeRecord(msgID int64, b []byte) (message.Message, error) {
	if len(b) < 2+4 {
		return message.Message{}, fmt.Errorf("%w: record %d truncated", message.ErrCorruptState, msgID)
	}
	body, sum := b[:len(b)-4], binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body, castagnoli) != sum {
		return message.Message{}, fmt.Errorf("%w: record %d checksum mismatch", message.ErrCorruptState, msgID)
	}
	if body[0] != recordVersion {
		return message.Message{}, fmt.Errorf("%w: record %d version %d", message.ErrCorruptState, msgID, body[0])
	}
	st, err := message.Decode(int(body[1]))
	if err != nil {
		return message.Message{}, fmt.Errorf("record %d: %w", msgID, err)
	}
	var rb recordBody
	if err := json.Unmarshal(body[2:], &rb); err != nil {
		return message.Message{}, fmt.Errorf("%w: record %d: %v", message.ErrCorruptState, msgID, err)
	}
	return message.Message{
		ID:           msgID,
		Queue:        rb.Queue,
		Subject:      rb.Subject,
		Status:       st,
		TimeStart:    rb.TimeStart,
		TimeEnd:      rb.TimeEnd,
		RequestBody:  rb.RequestBody,
		ResponseBody: rb.ResponseBody,
	}, nil
}
