package services

import (
	"context"
	"errors"
	"testing"

	"github.com/mihaja/abobot/app/models"
	"github.com/mihaja/abobot/app/storage"
)

func TestRegisterCreatesActiveMemberOnce(t *testing.T) {
	store := newFakeUserStore()
	pub := &countingPublisher{}
	svc := NewUsers(store, pub)
	ctx := context.Background()

	reg := Registration{
		MemberID:   "alice01",
		Name:       "Alice",
		Surname:    "Rakoto",
		Phone:      "0340000000",
		TelegramID: 100,
	}

	created, err := svc.Register(ctx, reg)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !created {
		t.Fatal("expected first registration to create the member")
	}
	u, err := store.Get(ctx, "alice01")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if u.Status != models.UserActive {
		t.Fatalf("status = %q, want %q", u.Status, models.UserActive)
	}
	if u.TelegramID != 100 || u.Name != "Alice" {
		t.Fatalf("unexpected row: %+v", u)
	}
	if pub.users != 1 {
		t.Fatalf("users published %d times, want 1", pub.users)
	}

	// Replaying the same conversation must not touch the row.
	reg.Name = "Other"
	reg.TelegramID = 999
	created, err = svc.Register(ctx, reg)
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if created {
		t.Fatal("expected duplicate registration to be a no-op")
	}
	u, _ = store.Get(ctx, "alice01")
	if u.Name != "Alice" || u.TelegramID != 100 {
		t.Fatalf("duplicate registration modified the row: %+v", u)
	}
	if pub.users != 1 {
		t.Fatalf("duplicate registration published a backup (count %d)", pub.users)
	}
}

func TestRegisterRejectsEmptyMemberID(t *testing.T) {
	svc := NewUsers(newFakeUserStore(), nil)
	if _, err := svc.Register(context.Background(), Registration{MemberID: "   "}); err == nil {
		t.Fatal("expected error for empty member id")
	}
}

func TestToggleFlipsStatus(t *testing.T) {
	store := newFakeUserStore()
	svc := NewUsers(store, nil)
	ctx := context.Background()

	_ = store.Insert(ctx, models.User{MemberID: "bob02", Status: models.UserActive})

	st, err := svc.Toggle(ctx, "bob02")
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if st != models.UserInactive {
		t.Fatalf("status = %q, want inactive", st)
	}

	st, err = svc.Toggle(ctx, "bob02")
	if err != nil {
		t.Fatalf("Toggle back: %v", err)
	}
	if st != models.UserActive {
		t.Fatalf("status = %q, want active", st)
	}
}

func TestToggleUnknownMemberIsNotFound(t *testing.T) {
	store := newFakeUserStore()
	svc := NewUsers(store, nil)

	_, err := svc.Toggle(context.Background(), "ghost")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	users, _ := store.List(context.Background())
	if len(users) != 0 {
		t.Fatalf("toggle of unknown member changed state: %+v", users)
	}
}
