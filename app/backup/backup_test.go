package backup

import (
	"strings"
	"testing"

	"github.com/mihaja/abobot/app/models"
	coreconfig "github.com/mihaja/abobot/core/config"
)

func TestUsersCSV(t *testing.T) {
	out, err := UsersCSV([]models.User{
		{MemberID: "alice01", Name: "Alice", Surname: "Rakoto", Phone: "0340000000", TelegramID: 100, Status: models.UserActive},
		{MemberID: "bob02", Name: "Bob", Surname: "Rabe", Phone: "0330000000", TelegramID: 200, Status: models.UserInactive},
	})
	if err != nil {
		t.Fatalf("UsersCSV: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows", len(lines))
	}
	if lines[0] != "name,surname,phone,user_id,telegram_id,status" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "Alice,Rakoto,0340000000,alice01,100,active" {
		t.Fatalf("row = %q", lines[1])
	}
}

func TestCodesCSV(t *testing.T) {
	out, err := CodesCSV([]models.AccessCode{
		{MemberID: "alice01", Code: "AB12CD34", PaymentMethod: "Via Mvola", PaymentNumber: "0340000000", Status: models.CodeValidated, Stamp: 1700000000},
	})
	if err != nil {
		t.Fatalf("CodesCSV: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if lines[0] != "user_id,code,payment_method,payment_number,status,stamp" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "alice01,AB12CD34,Via Mvola,0340000000,validated,1700000000" {
		t.Fatalf("row = %q", lines[1])
	}
}

func TestNewDisabledReturnsNil(t *testing.T) {
	p := New(coreconfig.BackupConfig{Enabled: false}, nil, nil)
	if p != nil {
		t.Fatal("expected nil publisher when disabled")
	}
	// A nil publisher must be safe to call.
	p.PublishUsers(nil)
	p.PublishCodes(nil)
}
