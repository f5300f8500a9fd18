package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newMemoryTracker() *Tracker {
	return NewTracker(nil, zerolog.New(os.Stderr).Level(zerolog.Disabled))
}

func quotaHeaders(remaining, reset string) http.Header {
	h := http.Header{}
	if remaining != "" {
		h.Set(HeaderRemaining, remaining)
	}
	if reset != "" {
		h.Set(HeaderReset, reset)
	}
	return h
}

func TestTracker_MemoryDefaultState(t *testing.T) {
	tr := newMemoryTracker()
	if tr.Shared() {
		t.Error("Shared() = true for tracker without redis")
	}

	state, err := tr.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining != 100 || !state.IsHealthy {
		t.Errorf("default state = %+v, want healthy with 100 remaining", state)
	}
}

func TestTracker_UpdateFromHeaders(t *testing.T) {
	tests := []struct {
		name      string
		headers   http.Header
		wantErr   bool
		remaining int
	}{
		{"healthy", quotaHeaders("75", "120"), false, 75},
		{"critical", quotaHeaders("3", "45"), false, 3},
		{"no headers is ignored", quotaHeaders("", ""), false, 100},
		{"invalid remaining", quotaHeaders("many", "60"), true, 100},
		{"missing reset", quotaHeaders("10", ""), true, 100},
		{"invalid reset", quotaHeaders("10", "soon"), true, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newMemoryTracker()
			ctx := context.Background()

			err := tr.UpdateFromHeaders(ctx, tt.headers)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UpdateFromHeaders() error = %v, wantErr %v", err, tt.wantErr)
			}

			state, err := tr.GetState(ctx)
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}
			if state.Remaining != tt.remaining {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.remaining)
			}
		})
	}
}

func TestTracker_WaitHealthy(t *testing.T) {
	tr := newMemoryTracker()
	start := time.Now()
	if err := tr.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Wait() took %v in healthy state", elapsed)
	}
}

func TestTracker_WaitThrottles(t *testing.T) {
	tr := newMemoryTracker()
	tr.ThrottlePause = 20 * time.Millisecond
	ctx := context.Background()

	if err := tr.UpdateFromHeaders(ctx, quotaHeaders("10", "60")); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	start := time.Now()
	if err := tr.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Wait() took %v, want at least the throttle pause", elapsed)
	}
}

func TestTracker_WaitCriticalRespectsContext(t *testing.T) {
	tr := newMemoryTracker()
	if err := tr.UpdateFromHeaders(context.Background(), quotaHeaders("1", "60")); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := tr.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestTracker_WaitCriticalAfterReset(t *testing.T) {
	tr := newMemoryTracker()
	ctx := context.Background()
	if err := tr.UpdateFromHeaders(ctx, quotaHeaders("0", "0")); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	if err := tr.Wait(ctx); err != nil {
		t.Errorf("Wait() error = %v, want nil once the window has reset", err)
	}
}
