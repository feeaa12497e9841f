package cache

import (
	"encoding/json"
	"time"
)

// Entry is a single cached value with expiry metadata.
type Entry struct {
	Key        string          `json:"key"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at,omitzero"`
	TTLSeconds int             `json:"ttl_seconds,omitempty"`
}

// NewEntry creates an entry stamped now. A ttlSeconds of zero never expires.
func NewEntry(key string, data json.RawMessage, ttlSeconds int, now time.Time) *Entry {
	e := &Entry{Key: key, Data: data, CreatedAt: now, TTLSeconds: ttlSeconds}
	if ttlSeconds != 0 {
		e.ExpiresAt = now.Add(time.Duration(ttlSeconds) * time.Second)
	}
	return e
}

// ExpiredAt reports whether the entry has expired at t.
func (e *Entry) ExpiredAt(t time.Time) bool {
	return !e.ExpiresAt.IsZero() && t.After(e.ExpiresAt)
}

// Age returns the time since the entry was written.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CreatedAt)
}
