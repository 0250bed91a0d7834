package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	if err := q.Publish(ctx, Message{Type: "attendance", Body: []byte("17")}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	out, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	select {
	case msg := <-out:
		if msg.Type != "attendance" || string(msg.Body) != "17" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: "attendance", Body: []byte("id|with|pipes")}
	got := deserialize(serialize(msg))
	if got.Type != msg.Type || string(got.Body) != string(msg.Body) {
		t.Fatalf("round trip: %+v -> %+v", msg, got)
	}

	bare := deserialize("no-type-marker")
	if bare.Type != "" || string(bare.Body) != "no-type-marker" {
		t.Fatalf("bare payload: %+v", bare)
	}
}
