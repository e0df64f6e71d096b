package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func consumeN(t *testing.T, b *MemoryBroker, queue Queue, n int, handler Handler) []string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var mu sync.Mutex
	var bodies []string

	done := make(chan struct{})
	go func() {
		b.Consume(ctx, queue, func(ctx context.Context, d *Delivery) Outcome {
			outcome := handler(ctx, d)
			if outcome == Ack {
				mu.Lock()
				bodies = append(bodies, string(d.Body))
				if len(bodies) == n {
					cancel()
				}
				mu.Unlock()
			}
			return outcome
		})
		close(done)
	}()

	<-done
	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != n {
		t.Fatalf("expected %d acked messages, got %d", n, len(bodies))
	}
	return bodies
}

func TestMemoryBroker_FIFO(t *testing.T) {
	b := NewMemoryBroker(nil)
	for _, v := range []string{"a", "b", "c"} {
		if err := b.Publish(context.Background(), QueueTasks, v); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	got := consumeN(t, b, QueueTasks, 3, func(context.Context, *Delivery) Outcome { return Ack })

	want := []string{`"a"`, `"b"`, `"c"`}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestMemoryBroker_RequeueRedelivers(t *testing.T) {
	b := NewMemoryBroker(nil)
	b.Publish(context.Background(), QueueTasks, "x")

	attempts := 0
	consumeN(t, b, QueueTasks, 1, func(_ context.Context, d *Delivery) Outcome {
		attempts++
		if attempts == 1 {
			if d.Redelivered {
				t.Error("first delivery must not be marked redelivered")
			}
			return Requeue
		}
		if !d.Redelivered {
			t.Error("requeued delivery must be marked redelivered")
		}
		return Ack
	})

	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestMemoryBroker_RejectDeadLetters(t *testing.T) {
	b := NewMemoryBroker(nil)
	b.PublishRaw(QueueFinalResult, []byte("not json"))
	b.Publish(context.Background(), QueueFinalResult, "ok")

	consumeN(t, b, QueueFinalResult, 1, func(_ context.Context, d *Delivery) Outcome {
		if string(d.Body) == "not json" {
			return Reject
		}
		return Ack
	})

	dead := b.DeadLetters()
	if len(dead) != 1 || string(dead[0].Body) != "not json" {
		t.Fatalf("expected poison message in dead letters, got %+v", dead)
	}
	if b.Len(QueueFinalResult) != 0 {
		t.Error("queue must be drained")
	}
}

func TestMemoryBroker_Closed(t *testing.T) {
	b := NewMemoryBroker(nil)
	b.Close()

	if err := b.Publish(context.Background(), QueueTasks, "x"); !errors.Is(err, ErrBrokerClosed) {
		t.Errorf("expected ErrBrokerClosed on publish, got %v", err)
	}

	err := b.Consume(context.Background(), QueueTasks, func(context.Context, *Delivery) Outcome { return Ack })
	if !errors.Is(err, ErrBrokerClosed) {
		t.Errorf("expected ErrBrokerClosed on consume, got %v", err)
	}
}

func TestMemoryBroker_ConsumeStopsOnCancel(t *testing.T) {
	b := NewMemoryBroker(nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Consume(ctx, QueueTasks, func(context.Context, *Delivery) Outcome { return Ack })
	}()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestOutcome_String(t *testing.T) {
	tests := map[Outcome]string{
		Ack:         "ack",
		Reject:      "reject",
		Requeue:     "requeue",
		Outcome(42): "outcome(42)",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(o), got, want)
		}
	}
}
