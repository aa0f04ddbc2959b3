package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mihaja/abobot/app/models"
	"github.com/mihaja/abobot/app/storage"
	"github.com/mihaja/abobot/core/logger"

	"log/slog"
)

// Users implements member registration and administration.
type Users struct {
	store  UserStore
	backup Publisher
}

// NewUsers builds the Users service. backup may be nil.
func NewUsers(store UserStore, backup Publisher) *Users {
	if backup == nil {
		backup = noopPublisher{}
	}
	return &Users{store: store, backup: backup}
}

// Registration carries the data collected by the registration conversation.
type Registration struct {
	MemberID   string
	Name       string
	Surname    string
	Phone      string
	TelegramID int64
}

// Register creates the member unless the chosen id is already taken. Taken
// ids are not an error: the call reports created=false and writes nothing,
// so replaying a finished conversation stays harmless.
func (s *Users) Register(ctx context.Context, reg Registration) (created bool, err error) {
	memberID := strings.TrimSpace(reg.MemberID)
	if memberID == "" {
		return false, fmt.Errorf("register: empty member id")
	}

	_, err = s.store.Get(ctx, memberID)
	switch {
	case err == nil:
		logger.LogEvent(ctx, logger.SVCUsers, slog.LevelInfo, "register.exists",
			slog.String("member_id", memberID))
		return false, nil
	case errors.Is(err, storage.ErrNotFound):
	default:
		return false, fmt.Errorf("register: %w", err)
	}

	u := models.User{
		MemberID:   memberID,
		Name:       strings.TrimSpace(reg.Name),
		Surname:    strings.TrimSpace(reg.Surname),
		Phone:      strings.TrimSpace(reg.Phone),
		TelegramID: reg.TelegramID,
		Status:     models.UserActive,
	}
	if err := s.store.Insert(ctx, u); err != nil {
		return false, fmt.Errorf("register: %w", err)
	}

	logger.LogEvent(ctx, logger.SVCUsers, slog.LevelInfo, "register.created",
		slog.String("member_id", memberID),
		slog.Int64("user_id", reg.TelegramID))
	s.backup.PublishUsers(ctx)
	return true, nil
}

// Toggle flips a member between active and inactive and returns the new
// status. Missing members return storage.ErrNotFound.
func (s *Users) Toggle(ctx context.Context, memberID string) (models.UserStatus, error) {
	u, err := s.store.Get(ctx, memberID)
	if err != nil {
		return "", fmt.Errorf("toggle: %w", err)
	}
	next := u.Status.Toggle()
	if err := s.store.UpdateStatus(ctx, memberID, next); err != nil {
		return "", fmt.Errorf("toggle: %w", err)
	}

	logger.LogEvent(ctx, logger.SVCUsers, slog.LevelInfo, "status.toggled",
		slog.String("member_id", memberID),
		slog.String("member_status", string(next)))
	s.backup.PublishUsers(ctx)
	return next, nil
}

// Get returns a member by id.
func (s *Users) Get(ctx context.Context, memberID string) (models.User, error) {
	return s.store.Get(ctx, memberID)
}

// GetUserByTelegramID resolves the member registered from a Telegram account.
func (s *Users) GetUserByTelegramID(ctx context.Context, tgID int64) (models.User, error) {
	return s.store.GetByTelegramID(ctx, tgID)
}

// List returns every member ordered by id.
func (s *Users) List(ctx context.Context) ([]models.User, error) {
	return s.store.List(ctx)
}
