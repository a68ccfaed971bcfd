// Package telemetry records provisioning events without slowing down host callbacks.
package telemetry

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2s"
)

// Event keys emitted by the provisioning extension.
const (
	KeyStatus          = "status"
	KeyPassEntries     = "pass-entries"
	KeyPassEntryDrop   = "passentry-dropped"
	KeyArtworkFallback = "artwork-fallback"
	KeyHandshake       = "handshake"
	KeyCredentialSkip  = "credential-skipped"
)

// Event is a telemetry record.
type Event struct {
	// ID is a UUIDv7, sorting Events by ID sorts them by creation time.
	ID     uuid.UUID      `json:"id" cbor:"1,keyasint"`
	Time   time.Time      `json:"time" cbor:"2,keyasint"`
	Key    string         `json:"key" cbor:"3,keyasint"`
	Fields map[string]any `json:"fields,omitempty" cbor:"4,keyasint,omitempty"`
}

// NewEvent returns an Event with a fresh ID.
func NewEvent(key string, fields map[string]any) Event {
	id, err := uuid.NewV7()
	if nil != err {
		id = uuid.New()
	}

	return Event{
		ID:     id,
		Time:   time.Now().UTC(),
		Key:    key,
		Fields: fields,
	}
}

// Check returns an error if the Event is invalid.
func (self Event) Check() error {
	if uuid.Nil == self.ID {
		return newFlagError(ErrInvalidEvent, "Nil ID")
	}
	if 0 == len(strings.TrimSpace(self.Key)) {
		return newFlagError(ErrInvalidEvent, "Empty Key")
	}

	return nil
}

// Fingerprint returns a short stable digest of secret, suitable for event Fields.
// It returns "" for an empty secret.
func Fingerprint(secret string) string {
	if "" == secret {
		return ""
	}
	digest := blake2s.Sum256([]byte(secret))

	return hex.EncodeToString(digest[:8])
}
