// Package transcript archives committed caption utterances and fixes
// recurring STT misrecognitions of domain vocabulary before they reach the
// archive or the screen.
//
// The [Store] capability has two implementations: an in-memory ring used by
// default and for tests, and a PostgreSQL store for users who want a durable,
// searchable transcript of everything that was captioned.
package transcript

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Utterance is one committed caption segment.
type Utterance struct {
	// ID uniquely identifies the utterance.
	ID uuid.UUID

	// SessionID groups utterances belonging to one pipeline run.
	SessionID uuid.UUID

	// Text is the committed caption text, after glossary correction.
	Text string

	// CommittedAt records when the segment was finalised.
	CommittedAt time.Time
}

// Store persists committed utterances.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Append records one utterance.
	Append(ctx context.Context, u Utterance) error

	// Recent returns up to limit utterances for the given session in
	// chronological order (oldest first).
	Recent(ctx context.Context, sessionID uuid.UUID, limit int) ([]Utterance, error)

	// Close releases store resources.
	Close() error
}
