package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

// exhausted is a schedule with no fire time left.
type exhausted struct{}

func (exhausted) Next(time.Time) time.Time { return time.Time{} }

// immediately makes every wait return at once.
func immediately(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func TestParse(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"*/15 * * * 1-5", false},
		{"@daily", false},
		{"@every 6h", false},
		{"0 0 3 * * *", true}, // seconds are not supported
		{"0 0 30 2 *", true}, // February 30th
		{"0 0 31 4 *", true}, // April 31st
		{"0 0 29 2 *", false},
		{"not a cron", true},
		{"", true},
	}
	for _, tc := range tests {
		t.Run(tc.spec, func(t *testing.T) {
			_, err := Parse(tc.spec)
			if (err != nil) != tc.wantErr {
				t.Errorf("Parse(%q) error = %v, wantErr %v", tc.spec, err, tc.wantErr)
			}
		})
	}
}

func TestNext_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	s, err := New("0 3 * * *", loc, func(context.Context) error { return nil })
	if err != nil {
		t.Fatal(err)
	}

	// 02:00 UTC is 04:00 in loc, so today's 03:00 has passed.
	from := time.Date(2025, time.June, 25, 2, 0, 0, 0, time.UTC)
	want := time.Date(2025, time.June, 26, 3, 0, 0, 0, loc)
	if got := s.Next(from); !got.Equal(want) {
		t.Errorf("expected next run %v, got %v", want, got)
	}
}

func TestRun_RepeatsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := 0
	s, err := New("@hourly", time.UTC, func(context.Context) error {
		runs++
		if runs == 2 {
			return errors.New("transient failure")
		}
		if runs == 3 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	s.after = immediately

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected Run to return nil after cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if runs != 3 {
		t.Errorf("expected 3 runs, a failing one included, got %d", runs)
	}
}

func TestRun_ReturnsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	s, err := New("@daily", time.UTC, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	s.after = func(time.Duration) <-chan time.Time { return nil }

	if err := s.Run(ctx); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if called {
		t.Error("expected no run with a cancelled context")
	}
}

func TestNew_RejectsImpossibleDate(t *testing.T) {
	_, err := New("0 0 30 2 *", time.UTC, func(context.Context) error { return nil })
	if !errors.Is(err, ErrNeverFires) {
		t.Fatalf("expected ErrNeverFires, got %v", err)
	}
}

func TestRun_StopsWithoutFireTime(t *testing.T) {
	runs := 0
	s := &Scheduler{
		spec:     "exhausted",
		schedule: exhausted{},
		location: time.UTC,
		job: func(context.Context) error {
			runs++
			return nil
		},
		now:   time.Now,
		after: immediately,
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrNeverFires) {
			t.Fatalf("expected ErrNeverFires, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return for a schedule without fire times")
	}
	if runs != 0 {
		t.Errorf("expected no runs, got %d", runs)
	}
}
