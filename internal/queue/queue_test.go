package queue

import (
	"context"
	"testing"
	"time"
)

func TestSerializeRoundTrip(t *testing.T) {
	evt := SaveEvent{SubjectID: "PHYS", Date: "2024-01-01"}
	got, ok := deserialize(serialize(evt))
	if !ok || got != evt {
		t.Errorf("round trip = %+v ok=%v", got, ok)
	}

	if _, ok := deserialize("no-separator"); ok {
		t.Error("malformed payload must not deserialize")
	}
	if _, ok := deserialize("|2024-01-01"); ok {
		t.Error("empty subject must not deserialize")
	}
}

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q := NewInMemory(4)
	want := SaveEvent{SubjectID: "PHYS", Date: "2024-01-01"}
	if err := q.Publish(ctx, want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	events, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	select {
	case got := <-events:
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}
