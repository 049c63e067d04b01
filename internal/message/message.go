package message

import (
	"encoding/json"
	"time"
	"unicode/utf8"
)

// MaxNameLength bounds queue names and subjects, in characters. It matches
// the narrowest SQL column that stores them.
const MaxNameLength = 255

// ValidName reports whether s is a non-empty queue name or subject within
// MaxNameLength.
func ValidName(s string) bool {
	return s != "" && utf8.RuneCountInString(s) <= MaxNameLength
}

// Message is one unit of work in a queue.
type Message struct {
	ID        int64      `json:"id"`
	Queue     string     `json:"queue"`
	Subject   string     `json:"subject"`
	Status    Status     `json:"status"`
	TimeStart time.Time  `json:"timeStart"`
	TimeEnd   *time.Time `json:"timeEnd"`
	// RequestBody and ResponseBody are opaque JSON documents stored verbatim.
	RequestBody  json.RawMessage `json:"requestBody"`
	ResponseBody json.RawMessage `json:"responseBody"`
}

// IsPending is shorthand for m.Status == StatusPending.
func (m Message) IsPending() bool { return m.Status == StatusPending }

// Body normalises an optional JSON payload: empty input becomes nil so that
// absent and explicit-null bodies are stored alike.
func Body(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
