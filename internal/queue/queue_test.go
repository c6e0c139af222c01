package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/finetune"
	"github.com/OFFIS-RIT/kgops/pkg/leaselock"
	"github.com/OFFIS-RIT/kgops/pkg/migration"

	"github.com/rabbitmq/amqp091-go"
)

type published struct {
	key string
	msg amqp091.Publishing
}

type fakeChannel struct {
	mu        sync.Mutex
	published []published
	declared  map[string]amqp091.Table
	err       error
}

func (f *fakeChannel) Publish(_, key string, _, _ bool, msg amqp091.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, published{key: key, msg: msg})
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, args amqp091.Table) (amqp091.Queue, error) {
	if f.declared == nil {
		f.declared = map[string]amqp091.Table{}
	}
	f.declared[name] = args
	return amqp091.Queue{Name: name}, nil
}

type fakeAck struct {
	acked, nacked, requeued int
}

func (a *fakeAck) Ack(uint64, bool) error { a.acked++; return nil }
func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	if requeue {
		a.requeued++
	}
	return nil
}
func (a *fakeAck) Reject(uint64, bool) error { return nil }

func delivery(headers amqp091.Table) (amqp091.Delivery, *fakeAck) {
	ack := &fakeAck{}
	return amqp091.Delivery{Acknowledger: ack, Headers: headers, Body: []byte(`{"user_id":"u1"}`)}, ack
}

func TestSetupQueues(t *testing.T) {
	ch := &fakeChannel{}
	if err := SetupQueues(ch, []string{MigrateQueue}); err != nil {
		t.Fatalf("SetupQueues: %v", err)
	}
	for _, name := range []string{"migrate_queue", "migrate_queue_dlq", "migrate_queue_retry"} {
		if _, ok := ch.declared[name]; !ok {
			t.Fatalf("queue %s not declared", name)
		}
	}
	retry := ch.declared["migrate_queue_retry"]
	if retry["x-message-ttl"] != int32(10000) || retry["x-dead-letter-routing-key"] != "migrate_queue" {
		t.Fatalf("unexpected retry queue args: %v", retry)
	}
}

func TestEnqueue(t *testing.T) {
	ch := &fakeChannel{}
	sent, err := Enqueue(ch, RebuildQueue, JobMsg{UserID: "u1"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if sent.CorrelationID == "" || sent.RequestedAt.IsZero() {
		t.Fatalf("expected correlation id and time, got %+v", sent)
	}
	if len(ch.published) != 1 || ch.published[0].key != RebuildQueue {
		t.Fatalf("unexpected publishes: %+v", ch.published)
	}
	var got JobMsg
	if err := json.Unmarshal(ch.published[0].msg.Body, &got); err != nil {
		t.Fatal(err)
	}
	if got.UserID != "u1" || got.CorrelationID != sent.CorrelationID {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestHandleProcessingError(t *testing.T) {
	tests := []struct {
		name        string
		headers     amqp091.Table
		err         error
		wantKey     string
		wantRetries any
	}{
		{"first failure", nil, errors.New("boom"), "migrate_queue_retry", int32(1)},
		{"counts up", amqp091.Table{"x-retries": int32(4)}, errors.New("boom"), "migrate_queue_retry", int32(5)},
		{"int64 header", amqp091.Table{"x-retries": int64(9)}, errors.New("boom"), "migrate_queue_retry", int32(10)},
		{"exhausted", amqp091.Table{"x-retries": int32(10)}, errors.New("boom"), "migrate_queue_dlq", int32(10)},
		{"invalid message", nil, ErrInvalidMessage, "migrate_queue_dlq", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{}
			msg, ack := delivery(tt.headers)
			HandleProcessingError(ch, msg, MigrateQueue, tt.err)

			if len(ch.published) != 1 || ch.published[0].key != tt.wantKey {
				t.Fatalf("expected publish to %s, got %+v", tt.wantKey, ch.published)
			}
			if got := ch.published[0].msg.Headers["x-retries"]; got != tt.wantRetries {
				t.Fatalf("x-retries = %v, want %v", got, tt.wantRetries)
			}
			if ack.acked != 1 || ack.nacked != 0 {
				t.Fatalf("expected a single ack, got %+v", ack)
			}
		})
	}
}

func TestHandleProcessingErrorRequeuesOnPublishFailure(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	msg, ack := delivery(nil)
	HandleProcessingError(ch, msg, MigrateQueue, errors.New("boom"))
	if ack.requeued != 1 || ack.acked != 0 {
		t.Fatalf("expected requeue, got %+v", ack)
	}
}

type fakeMigrator struct {
	mu    sync.Mutex
	calls []string
	err   error

	// cancel, when set, is called during the first run, which then reports
	// itself interrupted.
	cancel context.CancelFunc
}

func (m *fakeMigrator) record(op, user string) (migration.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op+":"+user)
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
		return migration.Summary{UserID: user, Total: 3, Succeeded: 1, Skipped: 2, Interrupted: true}, nil
	}
	return migration.Summary{UserID: user}, m.err
}

func (m *fakeMigrator) Migrate(_ context.Context, userID string) (migration.Summary, error) {
	return m.record("migrate", userID)
}

func (m *fakeMigrator) Rebuild(_ context.Context, userID string) (migration.Summary, error) {
	return m.record("rebuild", userID)
}

type fakeLocker struct {
	keys []string
	busy bool
}

func (l *fakeLocker) WithLease(ctx context.Context, key string, _ leaselock.Options, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.busy {
		return leaselock.ErrBusy
	}
	return fn(ctx)
}

type fakePipeline struct {
	users []string
	cfg   finetune.PipelineConfig
}

func (p *fakePipeline) RunPipeline(_ context.Context, userID string, cfg finetune.PipelineConfig) (finetune.PipelineResult, error) {
	p.users = append(p.users, userID)
	p.cfg = cfg
	return finetune.PipelineResult{UserID: userID, Outcome: finetune.OutcomeInsufficientData}, nil
}

type fakeUsers []string

func (u fakeUsers) ListUserIDs(context.Context) ([]string, error) { return u, nil }

func body(t *testing.T, msg JobMsg) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandler(t *testing.T) {
	mig := &fakeMigrator{}
	locks := &fakeLocker{}
	pipe := &fakePipeline{}
	h := NewHandler(NewHandlerParams{
		Migrator: mig,
		Pipeline: pipe,
		Users:    fakeUsers{"a", "b"},
		Locks:    locks,
		PipelineConfig: func() finetune.PipelineConfig {
			return finetune.PipelineConfig{MinInteractions: 7}
		},
	})
	ctx := context.Background()
	now := time.Now()

	if err := h.Handle(ctx, MigrateQueue, body(t, JobMsg{UserID: "u1", RequestedAt: now})); err != nil {
		t.Fatal(err)
	}
	if err := h.Handle(ctx, MigrateQueue, body(t, JobMsg{})); err != nil {
		t.Fatal(err)
	}
	if err := h.Handle(ctx, RebuildQueue, body(t, JobMsg{UserID: "u1"})); err != nil {
		t.Fatal(err)
	}
	if err := h.Handle(ctx, TrainingQueue, body(t, JobMsg{UserID: "u1"})); err != nil {
		t.Fatal(err)
	}

	wantCalls := []string{"migrate:u1", "migrate:a", "migrate:b", "rebuild:u1"}
	if len(mig.calls) != len(wantCalls) {
		t.Fatalf("calls = %v, want %v", mig.calls, wantCalls)
	}
	for i := range wantCalls {
		if mig.calls[i] != wantCalls[i] {
			t.Fatalf("calls = %v, want %v", mig.calls, wantCalls)
		}
	}
	if locks.keys[0] != "kgops:documents:u1" || len(locks.keys) != 4 {
		t.Fatalf("unexpected lease keys %v", locks.keys)
	}
	if len(pipe.users) != 1 || pipe.cfg.MinInteractions != 7 {
		t.Fatalf("unexpected pipeline calls %v %+v", pipe.users, pipe.cfg)
	}
}

func TestHandlerErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		queue   string
		body    []byte
		busy    bool
		invalid bool
	}{
		{"garbage body", MigrateQueue, []byte("{"), false, true},
		{"rebuild without user", RebuildQueue, []byte(`{}`), false, true},
		{"training without user", TrainingQueue, []byte(`{}`), false, true},
		{"unknown queue", "other_queue", []byte(`{}`), false, true},
		{"lease busy", RebuildQueue, []byte(`{"user_id":"u1"}`), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(NewHandlerParams{
				Migrator: &fakeMigrator{},
				Pipeline: &fakePipeline{},
				Users:    fakeUsers{},
				Locks:    &fakeLocker{busy: tt.busy},
			})
			err := h.Handle(ctx, tt.queue, tt.body)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, ErrInvalidMessage); got != tt.invalid {
				t.Fatalf("errors.Is(err, ErrInvalidMessage) = %v for %v", got, err)
			}
			if tt.busy && !errors.Is(err, leaselock.ErrBusy) {
				t.Fatalf("expected ErrBusy, got %v", err)
			}
		})
	}
}

func TestHandlerRetriesInterruptedRuns(t *testing.T) {
	t.Run("single user", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mig := &fakeMigrator{cancel: cancel}
		h := NewHandler(NewHandlerParams{Migrator: mig, Users: fakeUsers{}, Locks: &fakeLocker{}})

		err := h.Handle(ctx, RebuildQueue, body(t, JobMsg{UserID: "u1"}))
		if !errors.Is(err, ErrInterrupted) || errors.Is(err, ErrInvalidMessage) {
			t.Fatalf("expected a retryable ErrInterrupted, got %v", err)
		}
	})

	t.Run("all users stop at cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mig := &fakeMigrator{cancel: cancel}
		h := NewHandler(NewHandlerParams{Migrator: mig, Users: fakeUsers{"a", "b", "c"}, Locks: &fakeLocker{}})

		err := h.Handle(ctx, MigrateQueue, body(t, JobMsg{}))
		if !errors.Is(err, ErrInterrupted) {
			t.Fatalf("expected ErrInterrupted, got %v", err)
		}
		if len(mig.calls) != 1 || mig.calls[0] != "migrate:a" {
			t.Fatalf("expected the loop to stop after a, got %v", mig.calls)
		}
	})

	t.Run("interrupted message goes to retry", func(t *testing.T) {
		ch := &fakeChannel{}
		msg, ack := delivery(nil)
		HandleProcessingError(ch, msg, MigrateQueue, fmt.Errorf("%w: test", ErrInterrupted))
		if len(ch.published) != 1 || ch.published[0].key != "migrate_queue_retry" || ack.acked != 1 {
			t.Fatalf("expected a retry publish and ack, got %+v %+v", ch.published, ack)
		}
	})
}
