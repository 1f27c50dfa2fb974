// Package pagination provides keyset cursors for ledger statements.
// A cursor encodes the (payment_on, id) position of the last row a client saw,
// so the next page starts strictly after it regardless of concurrent inserts.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultLimit is the page size used when the caller does not pass one.
	DefaultLimit = 10
	// MaxLimit is the largest page a statement request may ask for.
	MaxLimit = 100
)

// Cursor is a position in the ledger total order.
type Cursor struct {
	Timestamp time.Time
	ID        int64
}

// Encode serializes the cursor to an opaque string.
// Format: base64("ts:{unix_micro}:id:{id}")
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("ts:%d:id:%d", c.Timestamp.UnixMicro(), c.ID)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses an encoded cursor. An empty string yields a nil cursor.
func DecodeCursor(encoded string) (*Cursor, error) {
	if encoded == "" {
		return nil, nil
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	raw := string(data)
	if !strings.HasPrefix(raw, "ts:") {
		return nil, fmt.Errorf("invalid cursor format: missing ts prefix")
	}

	parts := strings.SplitN(raw[len("ts:"):], ":id:", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format: missing id segment")
	}

	micros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}

	return &Cursor{Timestamp: time.UnixMicro(micros).UTC(), ID: id}, nil
}

// EncodeCursor is a convenience function to create and encode a cursor.
func EncodeCursor(timestamp time.Time, id int64) string {
	return Cursor{Timestamp: timestamp, ID: id}.Encode()
}

// ClampLimit caps limit at MaxLimit. Values below 1 are left for the caller to reject.
func ClampLimit(limit int) int {
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// After reports whether position (ts, id) sorts strictly after the cursor.
func (c *Cursor) After(ts time.Time, id int64) bool {
	if c == nil {
		return true
	}
	if ts.Equal(c.Timestamp) {
		return id > c.ID
	}
	return ts.After(c.Timestamp)
}
