package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cursor is a keyset position: the (timestamp, id) of the last message a
// page returned. Listing resumes strictly after it, so deleting returned
// messages never shifts later pages.
type cursor struct {
	ts time.Time
	id string
}

func (c cursor) encode() string {
	raw := strconv.FormatInt(c.ts.UnixNano(), 10) + "|" + c.id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// after reports whether (ts, id) sorts strictly after c.
func (c cursor) after(ts time.Time, id string) bool {
	if !ts.Equal(c.ts) {
		return ts.After(c.ts)
	}
	return id > c.id
}

func decodeCursor(token string) (cursor, bool, error) {
	if token == "" {
		return cursor{}, false, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return cursor{}, false, fmt.Errorf("invalid page token: %w", err)
	}
	nanos, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return cursor{}, false, fmt.Errorf("invalid page token")
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return cursor{}, false, fmt.Errorf("invalid page token: %w", err)
	}
	return cursor{ts: time.Unix(0, n).UTC(), id: id}, true, nil
}
