package bus

import (
	"errors"
	"testing"
	"time"

	"main/internal/model"
)

func TestQueuePreservesOrder(t *testing.T) {
	q := NewQueue(8)
	for i := 0; i < 3; i++ {
		err := q.TryPublish(model.FillEvent{OrderID: string(rune('a' + i)), Terminal: true})
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		e, err := q.Next(t.Context(), time.Second)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if want := string(rune('a' + i)); e.OrderID != want {
			t.Fatalf("order id %q, want %q", e.OrderID, want)
		}
	}
}

func TestQueueFullDoesNotBlock(t *testing.T) {
	q := NewQueue(1)
	if err := q.TryPublish(model.FillEvent{OrderID: "1"}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := q.TryPublish(model.FillEvent{OrderID: "2"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second publish err = %v, want ErrQueueFull", err)
	}
}

func TestQueueNextTimesOut(t *testing.T) {
	q := NewQueue(1)
	start := time.Now()
	_, err := q.Next(t.Context(), 20*time.Millisecond)
	if !errors.Is(err, ErrQueueTimeout) {
		t.Fatalf("err = %v, want ErrQueueTimeout", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("returned before wait elapsed")
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	if err := q.TryPublish(model.FillEvent{}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("publish after close err = %v, want ErrQueueClosed", err)
	}
	if _, err := q.Next(t.Context(), time.Second); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("next after close err = %v, want ErrQueueClosed", err)
	}
	q.Close() // second close is a no-op
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue(4)
	for i := 0; i < 3; i++ {
		if err := q.TryPublish(model.FillEvent{}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if n := q.Drain(); n != 3 {
		t.Fatalf("drained %d, want 3", n)
	}
	if n := q.Drain(); n != 0 {
		t.Fatalf("second drain %d, want 0", n)
	}
}
