package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mihaja/abobot/app/models"
	"github.com/mihaja/abobot/app/storage"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSubmitPaymentTwiceKeepsSingleRowAndCode(t *testing.T) {
	store := &fakeCodeStore{}
	svc := NewCodes(store, nil)
	ctx := context.Background()

	p := Payment{MemberID: "alice01", PaymentMethod: "Via Mvola", PaymentNumber: "0340000000"}
	if err := svc.SubmitPayment(ctx, p); err != nil {
		t.Fatalf("first SubmitPayment: %v", err)
	}
	first, err := store.Live(ctx, "alice01")
	if err != nil {
		t.Fatalf("Live: %v", err)
	}
	if first.Status != models.CodePending {
		t.Fatalf("status = %q, want pending", first.Status)
	}

	p.PaymentNumber = "0341111111"
	if err := svc.SubmitPayment(ctx, p); err != nil {
		t.Fatalf("second SubmitPayment: %v", err)
	}

	rows, _ := store.List(ctx)
	nonDeleted := 0
	for _, r := range rows {
		if r.Status != models.CodeDeleted {
			nonDeleted++
		}
	}
	if nonDeleted != 1 {
		t.Fatalf("non-deleted rows = %d, want 1", nonDeleted)
	}
	second, _ := store.Live(ctx, "alice01")
	if second.Code != first.Code {
		t.Fatalf("code changed across submissions: %q -> %q", first.Code, second.Code)
	}
	if second.Status != models.CodePending {
		t.Fatalf("status = %q, want pending", second.Status)
	}
	if second.PaymentNumber != "0341111111" {
		t.Fatalf("payment number not refreshed: %q", second.PaymentNumber)
	}
}

func TestKeyIsValid(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	window := int64(ValidityWindow / time.Second)

	cases := []struct {
		name  string
		row   models.AccessCode
		valid bool
	}{
		{"validated fresh", models.AccessCode{Status: models.CodeValidated, Stamp: now.Unix() - 10}, true},
		{"validated at edge", models.AccessCode{Status: models.CodeValidated, Stamp: now.Unix() - window}, false},
		{"validated just inside", models.AccessCode{Status: models.CodeValidated, Stamp: now.Unix() - window + 1}, true},
		{"pending fresh", models.AccessCode{Status: models.CodePending, Stamp: now.Unix()}, false},
		{"deleted fresh", models.AccessCode{Status: models.CodeDeleted, Stamp: now.Unix()}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KeyIsValid(tc.row, now); got != tc.valid {
				t.Fatalf("KeyIsValid = %v, want %v", got, tc.valid)
			}
		})
	}
}

func TestApproveStampsValidation(t *testing.T) {
	store := &fakeCodeStore{}
	svc := NewCodes(store, nil)
	ctx := context.Background()

	submitted := time.Unix(1_700_000_000, 0)
	approved := submitted.Add(48 * time.Hour)

	svc.now = fixedClock(submitted)
	if err := svc.SubmitPayment(ctx, Payment{MemberID: "alice01", PaymentMethod: "Via Mvola", PaymentNumber: "0340000000"}); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}

	svc.now = fixedClock(approved)
	ac, err := svc.Approve(ctx, "alice01")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if ac.Status != models.CodeValidated {
		t.Fatalf("status = %q, want validated", ac.Status)
	}
	if ac.Stamp != approved.Unix() {
		t.Fatalf("stamp = %d, want approval time %d", ac.Stamp, approved.Unix())
	}

	// Approving again is a no-op: no pending row remains.
	if _, err := svc.Approve(ctx, "alice01"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second Approve err = %v, want ErrNotFound", err)
	}
	row, _ := store.Live(ctx, "alice01")
	if row.Status != models.CodeValidated || row.Stamp != approved.Unix() {
		t.Fatalf("second approve changed the row: %+v", row)
	}
}

func TestRejectSoftDeletes(t *testing.T) {
	store := &fakeCodeStore{}
	svc := NewCodes(store, nil)
	ctx := context.Background()

	if err := svc.SubmitPayment(ctx, Payment{MemberID: "bob02", PaymentMethod: "Via Airtel Money", PaymentNumber: "0330000000"}); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	if err := svc.Reject(ctx, "bob02"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	rows, _ := store.List(ctx)
	if len(rows) != 1 || rows[0].Status != models.CodeDeleted {
		t.Fatalf("expected one deleted row, got %+v", rows)
	}

	// Rejecting with nothing pending is a no-op.
	if err := svc.Reject(ctx, "bob02"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second Reject err = %v, want ErrNotFound", err)
	}
}

func TestResubmitAfterRejectStartsFresh(t *testing.T) {
	store := &fakeCodeStore{}
	svc := NewCodes(store, nil)
	ctx := context.Background()

	if err := svc.SubmitPayment(ctx, Payment{MemberID: "bob02", PaymentMethod: "Via Mvola", PaymentNumber: "1"}); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	if err := svc.Reject(ctx, "bob02"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if err := svc.SubmitPayment(ctx, Payment{MemberID: "bob02", PaymentMethod: "Via Mvola", PaymentNumber: "2"}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	rows, _ := store.List(ctx)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want deleted row plus fresh pending row", len(rows))
	}
	live, err := store.Live(ctx, "bob02")
	if err != nil {
		t.Fatalf("Live: %v", err)
	}
	if live.Status != models.CodePending {
		t.Fatalf("fresh row status = %q, want pending", live.Status)
	}
}

func TestPaymentLifecycle(t *testing.T) {
	store := &fakeCodeStore{}
	svc := NewCodes(store, nil)
	ctx := context.Background()

	submitted := time.Unix(1_700_000_000, 0)
	approved := submitted.Add(24 * time.Hour)

	svc.now = fixedClock(submitted)
	err := svc.SubmitPayment(ctx, Payment{
		MemberID:      "alice01",
		PaymentMethod: "Via Mvola",
		PaymentNumber: "0340000000",
	})
	if err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}

	row, _ := store.Live(ctx, "alice01")
	if len(row.Code) != 8 {
		t.Fatalf("code length = %d, want 8", len(row.Code))
	}
	if row.PaymentMethod != "Via Mvola" || row.PaymentNumber != "0340000000" {
		t.Fatalf("payment details wrong: %+v", row)
	}
	if row.Stamp != submitted.Unix() {
		t.Fatalf("stamp = %d, want submission time", row.Stamp)
	}

	svc.now = fixedClock(approved)
	if _, err := svc.Approve(ctx, "alice01"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	valid, err := svc.UserHasValidCode(ctx, "alice01")
	if err != nil || !valid {
		t.Fatalf("UserHasValidCode = %v, %v; want true", valid, err)
	}

	info, ok, err := svc.UserCodeInfo(ctx, "alice01")
	if err != nil || !ok {
		t.Fatalf("UserCodeInfo: ok=%v err=%v", ok, err)
	}
	wantExpiry := approved.Add(ValidityWindow)
	if !info.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expiry = %v, want %v", info.ExpiresAt, wantExpiry)
	}
	if got := FormatDate(info.ExpiresAt); got != wantExpiry.Format("02/01/2006") {
		t.Fatalf("FormatDate = %q", got)
	}
}

func TestExpiredCodeStillReported(t *testing.T) {
	store := &fakeCodeStore{}
	svc := NewCodes(store, nil)
	ctx := context.Background()

	validatedAt := time.Unix(1_700_000_000, 0)
	now := validatedAt.Add(ValidityWindow + time.Hour)

	_ = store.Insert(ctx, models.AccessCode{
		MemberID: "carol03",
		Code:     "AAAA1111",
		Status:   models.CodeValidated,
		Stamp:    validatedAt.Unix(),
	})

	svc.now = fixedClock(now)

	valid, err := svc.UserHasValidCode(ctx, "carol03")
	if err != nil {
		t.Fatalf("UserHasValidCode: %v", err)
	}
	if valid {
		t.Fatal("expired code reported valid")
	}

	info, ok, err := svc.UserCodeInfo(ctx, "carol03")
	if err != nil || !ok {
		t.Fatalf("UserCodeInfo should still find the expired code: ok=%v err=%v", ok, err)
	}
	if info.Code != "AAAA1111" {
		t.Fatalf("code = %q", info.Code)
	}
}

func TestGenerateCodeShape(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		if len(code) != 8 {
			t.Fatalf("length = %d, want 8", len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q outside alphabet", code, r)
			}
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 190 {
		t.Fatalf("only %d distinct codes out of 200", len(seen))
	}
}

func TestFreshCodeRegeneratesOnCollision(t *testing.T) {
	store := &fakeCodeStore{forceCollisions: 2}
	svc := NewCodes(store, nil)
	ctx := context.Background()

	if err := svc.SubmitPayment(ctx, Payment{MemberID: "dave04", PaymentMethod: "Via Mvola", PaymentNumber: "1"}); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	if store.inUseCalls != 3 {
		t.Fatalf("CodeInUse calls = %d, want 3 (two collisions then success)", store.inUseCalls)
	}
	if _, err := store.Live(ctx, "dave04"); err != nil {
		t.Fatalf("no row inserted after regeneration: %v", err)
	}
}

func TestFreshCodeGivesUpAfterBoundedRetries(t *testing.T) {
	store := &fakeCodeStore{forceCollisions: codeGenRetries}
	svc := NewCodes(store, nil)

	err := svc.SubmitPayment(context.Background(), Payment{MemberID: "eve05", PaymentMethod: "Via Mvola", PaymentNumber: "1"})
	if err == nil {
		t.Fatal("expected submit to fail after exhausting retries")
	}
	rows, _ := store.List(context.Background())
	if len(rows) != 0 {
		t.Fatalf("failed submit left rows behind: %+v", rows)
	}
}
