package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestMemory_DeliversAndAcks(t *testing.T) {
	q := NewMemory(3, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled atomic.Int32
	done := make(chan struct{})
	go func() {
		_ = q.Consume(ctx, "jobs", "g", func(ctx context.Context, msg Message) error {
			handled.Add(1)
			return nil
		})
		close(done)
	}()

	for i := 0; i < 3; i++ {
		if err := q.Publish(ctx, "jobs", nil, []byte("x")); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	waitFor(t, func() bool { return handled.Load() == 3 })

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
}

func TestMemory_RetriesThenDeadLetters(t *testing.T) {
	q := NewMemory(3, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts []int
	attemptsCh := make(chan int, 10)
	go func() {
		_ = q.Consume(ctx, "jobs", "g", func(ctx context.Context, msg Message) error {
			attemptsCh <- msg.Attempt
			return errors.New("transient")
		})
	}()

	_ = q.Publish(ctx, "jobs", nil, []byte("payload"))

	for i := 0; i < 3; i++ {
		select {
		case a := <-attemptsCh:
			attempts = append(attempts, a)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected 3 attempts, got %v", attempts)
		}
	}
	if attempts[0] != 1 || attempts[2] != 3 {
		t.Errorf("unexpected attempt sequence %v", attempts)
	}

	waitFor(t, func() bool { return len(q.Pending(DeadLetterTopic("jobs"))) == 1 })
	dead := q.Pending(DeadLetterTopic("jobs"))[0]
	if string(dead.Value) != "payload" {
		t.Errorf("dead letter payload = %q", dead.Value)
	}
}

func TestHeaderCarrier(t *testing.T) {
	var c HeaderCarrier
	c.Set(HeaderAttempt, "1")
	c.Set(HeaderAttempt, "2")
	c.Set("traceparent", "abc")

	if got := c.Get(HeaderAttempt); got != "2" {
		t.Errorf("Get(attempt) = %q, want 2", got)
	}
	if len(c.Keys()) != 2 {
		t.Errorf("expected 2 keys, got %v", c.Keys())
	}
	if parseAttempt("junk") != 1 || parseAttempt("4") != 4 {
		t.Error("parseAttempt mismatch")
	}
}
