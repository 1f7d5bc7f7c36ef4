package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tmkbharathi/LiveCaptions/pkg/stt"
	sttmock "github.com/tmkbharathi/LiveCaptions/pkg/stt/mock"
)

func TestFallbackUsesPrimaryWhenHealthy(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Engine{Results: []string{"from primary"}}
	backup := &sttmock.Engine{Results: []string{"from backup"}}
	f := NewEngineFallback("primary", primary)
	f.AddFallback("backup", backup)

	segs, err := f.Transcribe(context.Background(), []byte{0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if segs[0].Text != "from primary" {
		t.Fatalf("want primary result, got %q", segs[0].Text)
	}
	if backup.TranscribeCallCount() != 0 {
		t.Fatal("want backup untouched")
	}
}

func TestFallbackFailsOver(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Engine{TranscribeErr: errors.New("native crash")}
	backup := &sttmock.Engine{Results: []string{"from backup"}}
	f := NewEngineFallback("primary", primary)
	f.AddFallback("backup", backup)

	segs, err := f.Transcribe(context.Background(), []byte{0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if segs[0].Text != "from backup" {
		t.Fatalf("want backup result, got %q", segs[0].Text)
	}
}

func TestFallbackTripsAndRecovers(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Engine{TranscribeErr: errors.New("boom")}
	backup := &sttmock.Engine{Results: []string{"ok"}}
	f := NewEngineFallback("primary", primary,
		WithTripAfter(2),
		WithRetryAfter(50*time.Millisecond),
	)
	f.AddFallback("backup", backup)

	ctx := context.Background()
	for range 3 {
		if _, err := f.Transcribe(ctx, []byte{0, 0}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Two failures tripped the breaker; the third call skipped the primary.
	if got := primary.TranscribeCallCount(); got != 2 {
		t.Fatalf("want primary bypassed after 2 failures, got %d calls", got)
	}

	// After the rest period the primary is probed again.
	primary.TranscribeErr = nil
	primary.SetResults([]string{"healed"})
	time.Sleep(80 * time.Millisecond)
	segs, err := f.Transcribe(ctx, []byte{0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if segs[0].Text != "healed" {
		t.Fatalf("want recovered primary result, got %q", segs[0].Text)
	}
}

func TestFallbackAllFailed(t *testing.T) {
	t.Parallel()

	f := NewEngineFallback("only", &sttmock.Engine{TranscribeErr: errors.New("down")})
	if _, err := f.Transcribe(context.Background(), []byte{0, 0}); !errors.Is(err, ErrAllEnginesFailed) {
		t.Fatalf("want ErrAllEnginesFailed, got %v", err)
	}
}

func TestFallbackLoad(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Engine{}
	backup := &sttmock.Engine{LoadErr: stt.ErrModel}
	f := NewEngineFallback("primary", primary)
	f.AddFallback("backup", backup)

	// A fallback that cannot load is tolerated.
	if err := f.Load(context.Background(), "model.bin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A primary that cannot load is fatal.
	f2 := NewEngineFallback("primary", &sttmock.Engine{LoadErr: stt.ErrModel})
	if err := f2.Load(context.Background(), "model.bin"); !errors.Is(err, stt.ErrModel) {
		t.Fatalf("want ErrModel, got %v", err)
	}
}
