package middleware

import "testing"

func TestAdminOptionsAllowed(t *testing.T) {
	opts := AdminOptions{AdminIDs: []int64{100, 200}}
	if !opts.Allowed(100) {
		t.Fatal("listed id denied")
	}
	if opts.Allowed(300) {
		t.Fatal("unlisted id allowed")
	}
}

func TestEmptyAllowListDeniesEveryone(t *testing.T) {
	var opts AdminOptions
	for _, id := range []int64{0, 1, 100} {
		if opts.Allowed(id) {
			t.Fatalf("empty allow-list admitted %d", id)
		}
	}
}
