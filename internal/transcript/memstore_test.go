package transcript

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemStoreAppendAndRecent(t *testing.T) {
	t.Parallel()

	s := NewMemStore(0)
	ctx := context.Background()
	session := uuid.New()
	other := uuid.New()

	for i := range 5 {
		u := Utterance{
			ID:          uuid.New(),
			SessionID:   session,
			Text:        fmt.Sprintf("utterance %d", i),
			CommittedAt: time.Now(),
		}
		if err := s.Append(ctx, u); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := s.Append(ctx, Utterance{ID: uuid.New(), SessionID: other, Text: "noise"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Recent(ctx, session, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 utterances, got %d", len(got))
	}
	// Chronological order, newest three.
	for i, want := range []string{"utterance 2", "utterance 3", "utterance 4"} {
		if got[i].Text != want {
			t.Fatalf("index %d: want %q, got %q", i, want, got[i].Text)
		}
	}
}

func TestMemStoreCapacityEviction(t *testing.T) {
	t.Parallel()

	s := NewMemStore(3)
	ctx := context.Background()
	session := uuid.New()

	for i := range 5 {
		_ = s.Append(ctx, Utterance{
			ID:        uuid.New(),
			SessionID: session,
			Text:      fmt.Sprintf("u%d", i),
		})
	}

	got, err := s.Recent(ctx, session, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 retained, got %d", len(got))
	}
	if got[0].Text != "u2" {
		t.Fatalf("want oldest evicted, got %q first", got[0].Text)
	}
}
