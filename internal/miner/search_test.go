package miner

import (
	"context"
	"testing"
)

func TestSearch_SingleWorker_FindsImmediately(t *testing.T) {
	m := New(1)
	r, err := m.Search(context.Background(), []byte("candidate-preimage"), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !r.IsValid {
		t.Error("expected IsValid true")
	}
	if r.HashHex == "" {
		t.Error("expected non-empty hash hex")
	}
}

func TestSearch_MultiWorker_FindsSameDifficulty(t *testing.T) {
	m := New(4)
	r, err := m.Search(context.Background(), []byte("multi-worker-preimage"), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !r.IsValid {
		t.Error("expected IsValid true")
	}
}

func TestSearch_ClampsWorkerCount(t *testing.T) {
	if got := clampWorkers(0); got != 1 {
		t.Errorf("clampWorkers(0) = %d, want 1", got)
	}
	if got := clampWorkers(-5); got != 1 {
		t.Errorf("clampWorkers(-5) = %d, want 1", got)
	}
	if got := clampWorkers(100); got != maxWorkers {
		t.Errorf("clampWorkers(100) = %d, want %d", got, maxWorkers)
	}
	if got := clampWorkers(8); got != 8 {
		t.Errorf("clampWorkers(8) = %d, want 8", got)
	}
}

func TestSearch_CancelledContextStopsPromptly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := New(2)
	// Difficulty high enough that an immediate hit is astronomically
	// unlikely within one checkpoint window, so the cancellation path is
	// what actually terminates the search.
	_, err := m.Search(ctx, []byte("cancelled-preimage"), 16*40)
	if err == nil {
		t.Fatal("expected an error from an already-cancelled context")
	}
}

func TestSearch_DifferentPreimagesYieldDifferentHashes(t *testing.T) {
	m := New(1)
	r1, err := m.Search(context.Background(), []byte("preimage-a"), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	r2, err := m.Search(context.Background(), []byte("preimage-b"), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if r1.HashHex == r2.HashHex {
		t.Error("different preimages should not collide on their first-found hash")
	}
}
