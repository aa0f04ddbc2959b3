package models

// UserStatus marks whether a member may use the service.
type UserStatus string

const (
	// UserActive grants access to an otherwise valid member.
	UserActive UserStatus = "active"
	// UserInactive suspends a member without deleting the record.
	UserInactive UserStatus = "inactive"
)

// Toggle returns the opposite status.
func (s UserStatus) Toggle() UserStatus {
	if s == UserActive {
		return UserInactive
	}
	return UserActive
}

// User is a registered member. MemberID is the self-chosen identifier the
// member reuses as payment reference; TelegramID is the Telegram account the
// registration came from.
type User struct {
	MemberID   string     `db:"user_id"`
	Name       string     `db:"name"`
	Surname    string     `db:"surname"`
	Phone      string     `db:"phone"`
	TelegramID int64      `db:"telegram_id"`
	Status     UserStatus `db:"status"`
}

// CodeStatus tracks an access code through its lifecycle.
type CodeStatus string

const (
	// CodePending means a payment was declared and awaits admin review.
	CodePending CodeStatus = "pending"
	// CodeValidated means an admin approved the payment; the code grants
	// access for the validity window counted from Stamp.
	CodeValidated CodeStatus = "validated"
	// CodeDeleted is the soft-delete terminal state of rejected codes.
	CodeDeleted CodeStatus = "deleted"
)

// AccessCode binds a generated subscription code to a member and the payment
// details declared for it. Stamp is epoch seconds: submission time while
// pending, validation time once validated.
type AccessCode struct {
	MemberID      string     `db:"user_id"`
	Code          string     `db:"code"`
	PaymentMethod string     `db:"payment_method"`
	PaymentNumber string     `db:"payment_number"`
	Status        CodeStatus `db:"status"`
	Stamp         int64      `db:"stamp"`
}
