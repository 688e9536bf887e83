package task

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerExecutesSubmittedTasks(t *testing.T) {
	r := NewRunner(2, 8)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		if !r.Submit("count", func(context.Context) error {
			ran.Add(1)
			return nil
		}) {
			t.Fatal("submit rejected")
		}
	}

	r.Close()
	if got := ran.Load(); got != 5 {
		t.Fatalf("ran %d tasks, want 5", got)
	}
}

func TestRunnerFailureDoesNotStopWorkers(t *testing.T) {
	r := NewRunner(1, 8)

	var ran atomic.Int32
	r.Submit("fails", func(context.Context) error {
		return fmt.Errorf("boom")
	})
	r.Submit("panics", func(context.Context) error {
		panic("boom")
	})
	r.Submit("after", func(context.Context) error {
		ran.Add(1)
		return nil
	})

	r.Close()
	if ran.Load() != 1 {
		t.Fatal("worker died after a failed task")
	}
}

func TestRunnerRejectsWhenQueueFull(t *testing.T) {
	r := NewRunner(1, 1)
	defer r.Close()

	block := make(chan struct{})
	r.Submit("blocker", func(context.Context) error {
		<-block
		return nil
	})

	// Fill the queue, then the next submit must be rejected, not block.
	for {
		if !r.Submit("filler", func(context.Context) error { return nil }) {
			break
		}
	}
	close(block)
}

func TestRunnerSubmitAfterClose(t *testing.T) {
	r := NewRunner(1, 1)
	r.Close()

	if r.Submit("late", func(context.Context) error { return nil }) {
		t.Fatal("submit after Close should be rejected")
	}
}

func TestRunnerSubmitDuringCloseDoesNotPanic(t *testing.T) {
	// Submissions racing Close must either enqueue or be rejected; a send
	// on the closed queue would panic and fail the test.
	for i := 0; i < 50; i++ {
		r := NewRunner(2, 4)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; j < 20; j++ {
				r.Submit("racer", func(context.Context) error { return nil })
			}
		}()

		r.Close()
		<-done
	}
}

func TestRunnerTaskGetsDeadline(t *testing.T) {
	r := NewRunner(1, 1)
	defer r.Close()

	done := make(chan bool, 1)
	r.Submit("deadline", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		done <- ok
		return nil
	})

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("task context should carry a deadline")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}
