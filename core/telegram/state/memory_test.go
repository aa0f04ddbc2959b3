package state

import (
	"testing"
	"time"
)

type testForm struct {
	Name string
}

func TestMemoryManagerStateLifecycle(t *testing.T) {
	mgr := NewMemoryManager[testForm](time.Hour)

	if got := mgr.State(1); got != StateIdle {
		t.Fatalf("unknown user state = %s, want idle", got)
	}
	if mgr.InProgress(1) {
		t.Fatal("unknown user should not be in progress")
	}

	mgr.SetState(1, State("choosing"))
	if got := mgr.State(1); got != State("choosing") {
		t.Fatalf("state = %s, want choosing", got)
	}
	if !mgr.InProgress(1) {
		t.Fatal("user with active state should be in progress")
	}

	mgr.Update(1, func(s *Session[testForm]) {
		s.Form.Name = "Rakoto"
	})
	if got := mgr.Form(1).Name; got != "Rakoto" {
		t.Fatalf("form name = %q, want Rakoto", got)
	}

	mgr.Clear(1)
	if mgr.InProgress(1) {
		t.Fatal("cleared session should not be in progress")
	}
	if got := mgr.Form(1).Name; got != "" {
		t.Fatalf("cleared form should be zero, got %q", got)
	}
}

func TestMemoryManagerEvictIdle(t *testing.T) {
	mgr := NewMemoryManager[testForm](10 * time.Minute)

	mgr.SetState(1, State("reg_name"))
	mgr.SetState(2, State("payment_ref"))
	if mgr.Len() != 2 {
		t.Fatalf("len = %d, want 2", mgr.Len())
	}

	// Nothing is stale yet.
	if n := mgr.EvictIdle(time.Now()); n != 0 {
		t.Fatalf("evicted %d fresh sessions", n)
	}

	// Both sessions are past the TTL from the future's point of view.
	future := time.Now().Add(time.Hour)
	if n := mgr.EvictIdle(future); n != 2 {
		t.Fatalf("evicted = %d, want 2", n)
	}
	if mgr.Len() != 0 {
		t.Fatalf("len after eviction = %d, want 0", mgr.Len())
	}
}

func TestMemoryManagerEvictDisabled(t *testing.T) {
	mgr := NewMemoryManager[testForm](0)
	mgr.SetState(1, State("choosing"))
	if n := mgr.EvictIdle(time.Now().Add(24 * time.Hour)); n != 0 {
		t.Fatalf("ttl disabled but evicted %d", n)
	}
}
