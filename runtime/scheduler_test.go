package runtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseSchedule(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 7, 0, 0, time.UTC)

	tests := []struct {
		schedule string
		want     time.Time
	}{
		{"0 */15 * * * *", time.Date(2026, 5, 1, 10, 15, 0, 0, time.UTC)},
		{"*/30 * * * *", time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)},
		{"@hourly", time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC)},
		{"@every 1h", base.Add(time.Hour)},
		{"30s", base.Add(30 * time.Second)},
		{"2h", base.Add(2 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			got, err := ComputeNextRun(tt.schedule, base)
			if err != nil {
				t.Fatalf("ComputeNextRun(%q) returned error: %v", tt.schedule, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ComputeNextRun(%q) = %v, want %v", tt.schedule, got, tt.want)
			}
		})
	}
}

func TestParseSchedule_Invalid(t *testing.T) {
	for _, schedule := range []string{"", "not a schedule", "-5m"} {
		if _, err := ParseSchedule(schedule); err == nil {
			t.Errorf("Expected error for %q", schedule)
		}
	}
}

func TestNewScheduler_Validation(t *testing.T) {
	if _, err := NewScheduler(zerolog.Nop(), Job{Name: "bad", Schedule: "nope", Run: func(context.Context) error { return nil }}); err == nil {
		t.Error("Expected error for invalid schedule")
	}
	if _, err := NewScheduler(zerolog.Nop(), Job{Name: "empty", Schedule: "1h"}); err == nil {
		t.Error("Expected error for missing run function")
	}
}

func TestScheduler_InitialRunAndStop(t *testing.T) {
	var purges, refreshes atomic.Int32
	s, err := NewScheduler(zerolog.Nop(),
		Job{Name: "purge", Schedule: "@every 1h", Run: func(context.Context) error {
			purges.Add(1)
			return nil
		}},
		Job{Name: "health", Schedule: "1h", Run: func(context.Context) error {
			refreshes.Add(1)
			return errors.New("gateway down")
		}},
	)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for purges.Load() == 0 || refreshes.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("Initial job pass did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Scheduler did not stop after cancellation")
	}

	if s.Runs("purge") != 1 || s.Runs("health") != 1 {
		t.Errorf("Expected one run each, got purge=%d health=%d", s.Runs("purge"), s.Runs("health"))
	}
}

func TestScheduler_JobTimeout(t *testing.T) {
	var sawDeadline atomic.Bool
	s, err := NewScheduler(zerolog.Nop(), Job{
		Name:     "slow",
		Schedule: "1h",
		Timeout:  10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			sawDeadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
			return ctx.Err()
		},
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	s.runJob(s.jobs[0])
	if !sawDeadline.Load() {
		t.Error("Expected job context to carry its timeout")
	}
}
