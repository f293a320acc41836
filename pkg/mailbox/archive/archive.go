// Package archive provides mailbox.ArchiveSink implementations.
//
// Every sink writes one JSON document per message, keyed by message id, so
// archiving the same message twice overwrites rather than duplicates. A
// sink returns nil only once the copy is durable; the cleanup engine relies
// on that to decide whether a message may be deleted.
package archive

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mercator-hq/mailsweep/pkg/mailbox"
)

// Record is the archived form of a message.
type Record struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Timestamp  time.Time `json:"timestamp"`
	SizeBytes  int64     `json:"size_bytes"`
	Subject    string    `json:"subject,omitempty"`
	Sender     string    `json:"sender,omitempty"`
	Body       string    `json:"body,omitempty"`
	ArchivedAt time.Time `json:"archived_at"`
}

// NewRecord builds the archive record for msg.
func NewRecord(msg mailbox.Message, category string, now time.Time) Record {
	return Record{
		ID:         msg.ID,
		Category:   category,
		Timestamp:  msg.Timestamp.UTC(),
		SizeBytes:  msg.SizeBytes,
		Subject:    msg.Subject,
		Sender:     msg.Sender,
		Body:       msg.Body,
		ArchivedAt: now.UTC(),
	}
}

func encode(r Record, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(r, "", "  ")
	}
	return json.Marshal(r)
}

// objectName turns a message id into a safe file or object name.
func objectName(id string) (string, error) {
	name, err := pathElement(id)
	if err != nil {
		return "", fmt.Errorf("invalid message id %q", id)
	}
	return name + ".json", nil
}

// pathElement maps s to a single path element.
func pathElement(s string) (string, error) {
	if s == "" || s == "." || s == ".." {
		return "", fmt.Errorf("invalid path element %q", s)
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, s), nil
}
