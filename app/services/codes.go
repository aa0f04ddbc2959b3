package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mihaja/abobot/app/models"
	"github.com/mihaja/abobot/app/storage"
	"github.com/mihaja/abobot/core/logger"

	"log/slog"
)

// ValidityWindow is how long a validated code grants access, counted from
// its validation stamp.
const ValidityWindow = 30 * 24 * time.Hour

// codeGenRetries bounds regeneration when a fresh code collides with one
// already issued to another member.
const codeGenRetries = 5

// Codes implements the payment, validation and access-evaluation workflows.
type Codes struct {
	store  CodeStore
	backup Publisher
	now    func() time.Time

	mu      sync.Mutex
	userMus map[string]*sync.Mutex
}

// NewCodes builds the Codes service. backup may be nil.
func NewCodes(store CodeStore, backup Publisher) *Codes {
	if backup == nil {
		backup = noopPublisher{}
	}
	return &Codes{
		store:   store,
		backup:  backup,
		now:     time.Now,
		userMus: make(map[string]*sync.Mutex),
	}
}

// memberMu returns the mutex serializing code writes for one member. The
// scan-then-write in SubmitPayment must not interleave for the same member,
// or two pending rows could appear.
func (s *Codes) memberMu(memberID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.userMus[memberID]
	if !ok {
		mu = &sync.Mutex{}
		s.userMus[memberID] = mu
	}
	return mu
}

// Payment carries the data collected by the payment conversation.
type Payment struct {
	MemberID      string
	PaymentMethod string
	PaymentNumber string
}

// SubmitPayment records a declared payment. When the member already has a
// non-deleted code the same code is kept and the row returns to pending with
// a fresh stamp; otherwise a new code is generated and inserted pending.
// The code is never returned to the caller: it reaches the member only
// through admin approval.
func (s *Codes) SubmitPayment(ctx context.Context, p Payment) error {
	if p.MemberID == "" {
		return fmt.Errorf("submit payment: empty member id")
	}

	mu := s.memberMu(p.MemberID)
	mu.Lock()
	defer mu.Unlock()

	stamp := s.now().Unix()

	live, err := s.store.Live(ctx, p.MemberID)
	switch {
	case err == nil:
		live.PaymentMethod = p.PaymentMethod
		live.PaymentNumber = p.PaymentNumber
		live.Status = models.CodePending
		live.Stamp = stamp
		if err := s.store.Update(ctx, live); err != nil {
			return fmt.Errorf("submit payment: %w", err)
		}
		logger.LogEvent(ctx, logger.SVCCodes, slog.LevelInfo, "payment.resubmitted",
			slog.String("member_id", p.MemberID),
			slog.String("code_status", string(models.CodePending)))
	case errors.Is(err, storage.ErrNotFound):
		code, err := s.freshCode(ctx, p.MemberID)
		if err != nil {
			return fmt.Errorf("submit payment: %w", err)
		}
		ac := models.AccessCode{
			MemberID:      p.MemberID,
			Code:          code,
			PaymentMethod: p.PaymentMethod,
			PaymentNumber: p.PaymentNumber,
			Status:        models.CodePending,
			Stamp:         stamp,
		}
		if err := s.store.Insert(ctx, ac); err != nil {
			return fmt.Errorf("submit payment: %w", err)
		}
		logger.LogEvent(ctx, logger.SVCCodes, slog.LevelInfo, "payment.submitted",
			slog.String("member_id", p.MemberID),
			slog.String("code_status", string(models.CodePending)))
	default:
		return fmt.Errorf("submit payment: %w", err)
	}

	s.backup.PublishCodes(ctx)
	return nil
}

// freshCode generates a code not in use by any other member, regenerating a
// bounded number of times on collision.
func (s *Codes) freshCode(ctx context.Context, memberID string) (string, error) {
	for i := 0; i < codeGenRetries; i++ {
		code, err := GenerateCode()
		if err != nil {
			return "", err
		}
		taken, err := s.store.CodeInUse(ctx, code, memberID)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("code generation: %d consecutive collisions", codeGenRetries)
}

// Approve validates a member's pending code and stamps it with the current
// time, starting the validity window. Members without a pending code return
// storage.ErrNotFound.
func (s *Codes) Approve(ctx context.Context, memberID string) (models.AccessCode, error) {
	mu := s.memberMu(memberID)
	mu.Lock()
	defer mu.Unlock()

	ac, err := s.store.SetStatus(ctx, memberID, models.CodePending, models.CodeValidated, s.now().Unix())
	if err != nil {
		return models.AccessCode{}, fmt.Errorf("approve: %w", err)
	}

	logger.LogEvent(ctx, logger.SVCCodes, slog.LevelInfo, "payment.approved",
		slog.String("member_id", memberID),
		slog.String("code_status", string(ac.Status)))
	s.backup.PublishCodes(ctx)
	return ac, nil
}

// Reject soft-deletes a member's pending code. Members without a pending
// code return storage.ErrNotFound.
func (s *Codes) Reject(ctx context.Context, memberID string) error {
	mu := s.memberMu(memberID)
	mu.Lock()
	defer mu.Unlock()

	_, err := s.store.SetStatus(ctx, memberID, models.CodePending, models.CodeDeleted, s.now().Unix())
	if err != nil {
		return fmt.Errorf("reject: %w", err)
	}

	logger.LogEvent(ctx, logger.SVCCodes, slog.LevelInfo, "payment.rejected",
		slog.String("member_id", memberID),
		slog.String("code_status", string(models.CodeDeleted)))
	s.backup.PublishCodes(ctx)
	return nil
}

// ListPending returns all codes awaiting admin review.
func (s *Codes) ListPending(ctx context.Context) ([]models.AccessCode, error) {
	return s.store.ListByStatus(ctx, models.CodePending)
}

// KeyIsValid reports whether the code row grants access at the given time:
// validated, and younger than the validity window.
func KeyIsValid(ac models.AccessCode, now time.Time) bool {
	if ac.Status != models.CodeValidated {
		return false
	}
	return now.Unix()-ac.Stamp < int64(ValidityWindow/time.Second)
}

// UserHasValidCode reports whether the member holds a currently valid code.
func (s *Codes) UserHasValidCode(ctx context.Context, memberID string) (bool, error) {
	ac, err := s.store.Live(ctx, memberID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has valid code: %w", err)
	}
	return KeyIsValid(ac, s.now()), nil
}

// CodeInfo describes a member's validated code for display.
type CodeInfo struct {
	Code      string
	ExpiresAt time.Time
}

// UserCodeInfo returns the member's validated code and its expiry date.
// Expired codes are still reported: display keeps showing the last code and
// when it ran out, only access checks enforce the window.
func (s *Codes) UserCodeInfo(ctx context.Context, memberID string) (CodeInfo, bool, error) {
	ac, err := s.store.Live(ctx, memberID)
	if errors.Is(err, storage.ErrNotFound) {
		return CodeInfo{}, false, nil
	}
	if err != nil {
		return CodeInfo{}, false, fmt.Errorf("code info: %w", err)
	}
	if ac.Status != models.CodeValidated {
		return CodeInfo{}, false, nil
	}
	return CodeInfo{
		Code:      ac.Code,
		ExpiresAt: time.Unix(ac.Stamp, 0).Add(ValidityWindow),
	}, true, nil
}

// FormatDate renders a time as DD/MM/YYYY for user-facing messages.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}
