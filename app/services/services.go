package services

import (
	"context"

	"github.com/mihaja/abobot/app/models"
)

// UserStore is the persistence surface the Users service needs.
type UserStore interface {
	Get(ctx context.Context, memberID string) (models.User, error)
	GetByTelegramID(ctx context.Context, tgID int64) (models.User, error)
	Insert(ctx context.Context, u models.User) error
	UpdateStatus(ctx context.Context, memberID string, st models.UserStatus) error
	List(ctx context.Context) ([]models.User, error)
}

// CodeStore is the persistence surface the Codes service needs.
type CodeStore interface {
	Live(ctx context.Context, memberID string) (models.AccessCode, error)
	CodeInUse(ctx context.Context, code, exceptMemberID string) (bool, error)
	Insert(ctx context.Context, ac models.AccessCode) error
	Update(ctx context.Context, ac models.AccessCode) error
	SetStatus(ctx context.Context, memberID string, from, to models.CodeStatus, stamp int64) (models.AccessCode, error)
	ListByStatus(ctx context.Context, st models.CodeStatus) ([]models.AccessCode, error)
	List(ctx context.Context) ([]models.AccessCode, error)
}

// Publisher mirrors collections to remote storage after mutating writes.
// Implementations must not block; failures stay on their side.
type Publisher interface {
	PublishUsers(ctx context.Context)
	PublishCodes(ctx context.Context)
}

type noopPublisher struct{}

func (noopPublisher) PublishUsers(context.Context) {}
func (noopPublisher) PublishCodes(context.Context) {}
