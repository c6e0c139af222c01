package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAdd(t *testing.T) {
	s := New()
	noop := func(context.Context) error { return nil }

	ok, err := s.Add("audit", "", 0, noop)
	if err != nil || ok {
		t.Fatalf("empty spec should disable the job, got ok=%v err=%v", ok, err)
	}
	if _, err := s.Add("audit", "not a cron", 0, noop); err == nil {
		t.Fatal("expected an error for an invalid spec")
	}
	ok, err = s.Add("audit", "0 0 * * * *", 0, noop)
	if err != nil || !ok {
		t.Fatalf("expected registration, got ok=%v err=%v", ok, err)
	}
	if _, err := s.Add("audit", "0 0 * * * *", 0, noop); err == nil {
		t.Fatal("expected an error for a duplicate name")
	}
}

func TestRunNow(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	var deadline bool
	if _, err := s.Add("cleanup", "0 30 3 * * *", time.Minute, func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return boom
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.RunNow(context.Background(), "cleanup"); !errors.Is(err, boom) {
		t.Fatalf("expected job error, got %v", err)
	}
	if !deadline {
		t.Fatal("job context should carry the timeout")
	}
	if err := s.RunNow(context.Background(), "missing"); err == nil {
		t.Fatal("expected an error for an unknown job")
	}
}

func TestStartStop(t *testing.T) {
	s := New()
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
