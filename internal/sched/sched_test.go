package sched

import (
	"sync"
	"testing"
	"time"
)

func TestAddAndFire(t *testing.T) {
	var mu sync.Mutex
	fired := 0

	r := New(nil)
	if err := r.Add("sweep", "@every 1s", func() {
		mu.Lock()
		fired++
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d", r.Count())
	}

	r.cron.Start()
	time.Sleep(1500 * time.Millisecond)
	r.cron.Stop()

	mu.Lock()
	defer mu.Unlock()
	if fired == 0 {
		t.Error("expected at least one fire")
	}
}

func TestInvalidSchedule(t *testing.T) {
	r := New(nil)
	if err := r.Add("bad", "not-a-cron", func() {}); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if r.Count() != 0 {
		t.Errorf("Count = %d after failed add", r.Count())
	}
}

func TestAddReplacesSameName(t *testing.T) {
	r := New(nil)
	r.Add("sweep", "@every 1h", func() {})
	r.Add("sweep", "@every 2h", func() {})
	if r.Count() != 1 {
		t.Errorf("Count = %d, replacement should not accumulate", r.Count())
	}
}

func TestRemove(t *testing.T) {
	r := New(nil)
	r.Add("sweep", "@every 1h", func() {})
	r.Add("market", "@every 2m", func() {})

	r.Remove("sweep")
	if r.Count() != 1 {
		t.Errorf("Count = %d after remove", r.Count())
	}
	r.Remove("sweep") // removing twice is a no-op
	if r.Count() != 1 {
		t.Errorf("Count = %d after double remove", r.Count())
	}
}
