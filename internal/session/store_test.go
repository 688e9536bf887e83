package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCreateIfAbsentIdempotent(t *testing.T) {
	store := NewStore()

	created := store.CreateIfAbsent("CA123", func(c *Call) {
		c.CallerNumber = "+15550001111"
	})
	if !created {
		t.Fatal("first CreateIfAbsent should report creation")
	}

	first, ok := store.Get("CA123")
	if !ok {
		t.Fatal("session missing after create")
	}

	time.Sleep(5 * time.Millisecond)

	// Carrier webhook retry: same id, must not reset anything.
	if store.CreateIfAbsent("CA123", func(c *Call) {
		c.CallerNumber = "+15559999999"
	}) {
		t.Fatal("duplicate CreateIfAbsent should not create a second session")
	}

	second, _ := store.Get("CA123")
	if !second.StartedAt.Equal(first.StartedAt) {
		t.Fatalf("StartedAt reset by duplicate create: %v vs %v", second.StartedAt, first.StartedAt)
	}
	if second.CallerNumber != "+15550001111" {
		t.Fatalf("caller number overwritten: %q", second.CallerNumber)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Len())
	}
}

func TestNewSessionDefaults(t *testing.T) {
	store := NewStore()
	store.CreateIfAbsent("CA1", nil)

	call, _ := store.Get("CA1")
	if call.State != StateAwaitingFirstSpeech {
		t.Fatalf("state = %s", call.State)
	}
	if call.Outcome != OutcomeQuoteProvided {
		t.Fatalf("outcome = %s", call.Outcome)
	}
	if call.CallType != CallTypeAIResolved {
		t.Fatalf("call type = %s", call.CallType)
	}
	if call.StartedAt.IsZero() {
		t.Fatal("StartedAt not set")
	}
}

func TestMutateUnknownID(t *testing.T) {
	store := NewStore()
	if store.Mutate("nope", func(*Call) {}) {
		t.Fatal("Mutate on unknown id should report false")
	}
	if _, ok := store.Get("nope"); ok {
		t.Fatal("Get on unknown id should report false")
	}
}

func TestMutateSerializedPerID(t *testing.T) {
	store := NewStore()
	store.CreateIfAbsent("CA1", nil)

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				store.Mutate("CA1", func(c *Call) {
					c.RecordingSegments = append(c.RecordingSegments, fmt.Sprintf("seg-%d", len(c.RecordingSegments)))
				})
			}
		}()
	}
	wg.Wait()

	call, _ := store.Get("CA1")
	if len(call.RecordingSegments) != workers*perWorker {
		t.Fatalf("lost appends: got %d, want %d", len(call.RecordingSegments), workers*perWorker)
	}
	for i, seg := range call.RecordingSegments {
		if seg != fmt.Sprintf("seg-%d", i) {
			t.Fatalf("segment %d out of order: %s", i, seg)
		}
	}
}

func TestRemove(t *testing.T) {
	store := NewStore()
	store.CreateIfAbsent("CA1", nil)
	store.Remove("CA1")

	if _, ok := store.Get("CA1"); ok {
		t.Fatal("session survived Remove")
	}
	// Removing twice is harmless.
	store.Remove("CA1")
}
