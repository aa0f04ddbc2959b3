package flows

import (
	"context"
	"testing"
	"time"

	"github.com/mihaja/abobot/app/models"
	"github.com/mihaja/abobot/app/services"
	"github.com/mihaja/abobot/app/storage"
	"github.com/mihaja/abobot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// fakeTeleContext covers the tele.Context surface the conversation handlers
// touch; everything else panics through the nil embedded interface.
type fakeTeleContext struct {
	tele.Context
	sender *tele.User
	text   string
	kv     map[string]interface{}
	sent   []sentMessage
}

type sentMessage struct {
	text string
	opts []interface{}
}

func newFakeTeleContext(userID int64, text string) *fakeTeleContext {
	return &fakeTeleContext{
		sender: &tele.User{ID: userID},
		text:   text,
		kv:     map[string]interface{}{},
	}
}

func (c *fakeTeleContext) Sender() *tele.User  { return c.sender }
func (c *fakeTeleContext) Chat() *tele.Chat    { return &tele.Chat{ID: c.sender.ID} }
func (c *fakeTeleContext) Text() string        { return c.text }
func (c *fakeTeleContext) Update() tele.Update { return tele.Update{} }

func (c *fakeTeleContext) Get(key string) interface{} { return c.kv[key] }
func (c *fakeTeleContext) Set(key string, v interface{}) {
	c.kv[key] = v
}

func (c *fakeTeleContext) Send(what interface{}, opts ...interface{}) error {
	if s, ok := what.(string); ok {
		c.sent = append(c.sent, sentMessage{text: s, opts: opts})
	}
	return nil
}

func (c *fakeTeleContext) lastSent() sentMessage {
	if len(c.sent) == 0 {
		return sentMessage{}
	}
	return c.sent[len(c.sent)-1]
}

func (m sentMessage) keyboard() *tele.ReplyMarkup {
	for _, o := range m.opts {
		if so, ok := o.(*tele.SendOptions); ok && so != nil {
			return so.ReplyMarkup
		}
	}
	return nil
}

type flowUserStore struct {
	users map[string]models.User
}

func (s *flowUserStore) Get(_ context.Context, memberID string) (models.User, error) {
	u, ok := s.users[memberID]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *flowUserStore) GetByTelegramID(_ context.Context, tgID int64) (models.User, error) {
	for _, u := range s.users {
		if u.TelegramID == tgID {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *flowUserStore) Insert(_ context.Context, u models.User) error {
	s.users[u.MemberID] = u
	return nil
}

func (s *flowUserStore) UpdateStatus(_ context.Context, memberID string, st models.UserStatus) error {
	u, ok := s.users[memberID]
	if !ok {
		return storage.ErrNotFound
	}
	u.Status = st
	s.users[memberID] = u
	return nil
}

func (s *flowUserStore) List(_ context.Context) ([]models.User, error) { return nil, nil }

type flowCodeStore struct {
	rows []models.AccessCode
}

func (s *flowCodeStore) Live(_ context.Context, memberID string) (models.AccessCode, error) {
	for i := len(s.rows) - 1; i >= 0; i-- {
		r := s.rows[i]
		if r.MemberID == memberID && r.Status != models.CodeDeleted {
			return r, nil
		}
	}
	return models.AccessCode{}, storage.ErrNotFound
}

func (s *flowCodeStore) CodeInUse(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (s *flowCodeStore) Insert(_ context.Context, ac models.AccessCode) error {
	s.rows = append(s.rows, ac)
	return nil
}

func (s *flowCodeStore) Update(_ context.Context, ac models.AccessCode) error {
	for i, r := range s.rows {
		if r.MemberID == ac.MemberID && r.Code == ac.Code {
			s.rows[i] = ac
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *flowCodeStore) SetStatus(_ context.Context, memberID string, from, to models.CodeStatus, stamp int64) (models.AccessCode, error) {
	for i, r := range s.rows {
		if r.MemberID == memberID && r.Status == from {
			r.Status = to
			r.Stamp = stamp
			s.rows[i] = r
			return r, nil
		}
	}
	return models.AccessCode{}, storage.ErrNotFound
}

func (s *flowCodeStore) ListByStatus(_ context.Context, st models.CodeStatus) ([]models.AccessCode, error) {
	var out []models.AccessCode
	for _, r := range s.rows {
		if r.Status == st {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *flowCodeStore) List(_ context.Context) ([]models.AccessCode, error) {
	return s.rows, nil
}

func newTestFlows() (*Flows, state.Manager[Form], *flowUserStore, *flowCodeStore) {
	userStore := &flowUserStore{users: map[string]models.User{}}
	codeStore := &flowCodeStore{}
	mgr := state.NewMemoryManager[Form](time.Hour)
	f := New(mgr,
		services.NewUsers(userStore, nil),
		services.NewCodes(codeStore, nil),
	)
	return f, mgr, userStore, codeStore
}

func step(t *testing.T, mgr state.Manager[Form], userID int64, text string) *fakeTeleContext {
	t.Helper()
	fc := newFakeTeleContext(userID, text)
	if err := mgr.ManagerHandler(fc); err != nil {
		t.Fatalf("handler(%q): %v", text, err)
	}
	return fc
}

func TestMenuTransitions(t *testing.T) {
	const userID = int64(7)

	tests := []struct {
		name string
		from state.State
		text string
		want state.State
	}{
		{"menu to payment", StateChoosing, "Paiement", StatePaymentMethod},
		{"menu to payment english", StateChoosing, "payment", StatePaymentMethod},
		{"menu to registration", StateChoosing, "Inscription", StateRegName},
		{"menu back redisplays menu", StateChoosing, "Retour", StateChoosing},
		{"menu help ends conversation", StateChoosing, "Aide", state.StateIdle},
		{"menu garbage ends conversation", StateChoosing, "n'importe quoi", state.StateIdle},
		{"method back to menu", StatePaymentMethod, "Retour", StateChoosing},
		{"method mvola", StatePaymentMethod, "Via Mvola", StatePaymentNumber},
		{"method airtel", StatePaymentMethod, "Via Airtel Money", StatePaymentNumber},
		{"method garbage back to menu", StatePaymentMethod, "n'importe quoi", StateChoosing},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, mgr, _, _ := newTestFlows()
			mgr.SetState(userID, tc.from)
			step(t, mgr, userID, tc.text)
			if got := mgr.State(userID); got != tc.want {
				t.Fatalf("state after %q = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestUnknownPaymentMethodRedisplaysMenu(t *testing.T) {
	const userID = int64(7)

	_, mgr, _, _ := newTestFlows()
	mgr.SetState(userID, StatePaymentMethod)
	fc := step(t, mgr, userID, "n'importe quoi")

	if got := mgr.State(userID); got != StateChoosing {
		t.Fatalf("state = %q, want %q", got, StateChoosing)
	}
	last := fc.lastSent()
	if last.text != msgUnknownOption {
		t.Fatalf("reply = %q, want %q", last.text, msgUnknownOption)
	}
	if last.keyboard() == nil {
		t.Fatal("error notice should carry the main-menu keyboard")
	}
}

func TestPaymentConversationAccumulatesForm(t *testing.T) {
	const userID = int64(7)

	_, mgr, _, codeStore := newTestFlows()
	mgr.SetState(userID, StateChoosing)

	step(t, mgr, userID, "Paiement")
	step(t, mgr, userID, "Via Mvola")
	if got := mgr.Form(userID).PayMethod; got != labelMvola {
		t.Fatalf("form method = %q, want %q", got, labelMvola)
	}

	step(t, mgr, userID, "0341234567")
	if got := mgr.Form(userID).PayNumber; got != "0341234567" {
		t.Fatalf("form number = %q, want 0341234567", got)
	}

	fc := step(t, mgr, userID, "AB123")
	if mgr.InProgress(userID) {
		t.Fatal("session should be cleared after finalize")
	}
	if got := fc.lastSent().text; got != msgPaymentReceived {
		t.Fatalf("reply = %q, want payment confirmation", got)
	}

	pending, err := codeStore.ListByStatus(context.Background(), models.CodePending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].MemberID != "AB123" {
		t.Fatalf("pending rows = %v, want one for AB123", pending)
	}
	if pending[0].PaymentMethod != labelMvola || pending[0].PaymentNumber != "0341234567" {
		t.Fatalf("pending row lost form data: %+v", pending[0])
	}
}

func TestRegistrationConversationAccumulatesForm(t *testing.T) {
	const userID = int64(7)

	_, mgr, userStore, _ := newTestFlows()
	mgr.SetState(userID, StateChoosing)

	step(t, mgr, userID, "Inscription")
	step(t, mgr, userID, "Rakoto")
	step(t, mgr, userID, "Jean")
	step(t, mgr, userID, "0331112233")
	step(t, mgr, userID, "AB123")

	if mgr.InProgress(userID) {
		t.Fatal("session should be cleared after finalize")
	}
	u, ok := userStore.users["AB123"]
	if !ok {
		t.Fatal("member AB123 was not created")
	}
	if u.Name != "Rakoto" || u.Surname != "Jean" || u.Phone != "0331112233" {
		t.Fatalf("stored member lost form data: %+v", u)
	}
	if u.TelegramID != userID {
		t.Fatalf("telegram id = %d, want %d", u.TelegramID, userID)
	}
	if u.Status != models.UserActive {
		t.Fatalf("status = %q, want active", u.Status)
	}
}

func TestStartRestartsFromAnyState(t *testing.T) {
	const userID = int64(7)

	f, mgr, _, _ := newTestFlows()
	mgr.SetState(userID, StatePaymentNumber)
	mgr.Update(userID, func(s *state.Session[Form]) {
		s.Form.PayMethod = labelMvola
	})

	fc := newFakeTeleContext(userID, "/start")
	if err := f.Start(fc); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := mgr.State(userID); got != StateChoosing {
		t.Fatalf("state = %q, want %q", got, StateChoosing)
	}
	if got := mgr.Form(userID).PayMethod; got != "" {
		t.Fatalf("form should be reset, still has method %q", got)
	}
	if fc.lastSent().keyboard() == nil {
		t.Fatal("welcome should carry the main-menu keyboard")
	}
}
