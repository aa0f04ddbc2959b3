package flows

import (
	"fmt"
	"strings"

	"github.com/mihaja/abobot/app/models"
	"github.com/mihaja/abobot/app/services"
	"github.com/mihaja/abobot/core/logger"
	tg "github.com/mihaja/abobot/core/telegram"
	"github.com/mihaja/abobot/core/telegram/commands"
	tghelpers "github.com/mihaja/abobot/core/telegram/helpers"
	"github.com/mihaja/abobot/core/telegram/keyboard"
	"github.com/mihaja/abobot/core/telegram/state"

	"log/slog"
	tele "gopkg.in/telebot.v4"
)

// Conversation states.
const (
	StateChoosing      state.State = "choosing"
	StatePaymentMethod state.State = "payment_method"
	StatePaymentNumber state.State = "payment_number"
	StatePaymentRef    state.State = "payment_ref"
	StateRegName       state.State = "reg_name"
	StateRegSurname    state.State = "reg_surname"
	StateRegPhone      state.State = "reg_phone"
	StateRegID         state.State = "reg_id"
)

// Form accumulates the answers of one conversation.
type Form struct {
	Name      string
	Surname   string
	Phone     string
	MemberID  string
	PayMethod string
	PayNumber string
}

// Flows wires the conversational front of the bot: main menu, registration
// and payment dialogues, subscription status.
type Flows struct {
	sessions state.Manager[Form]
	users    *services.Users
	codes    *services.Codes
}

// New builds the Flows front.
func New(sessions state.Manager[Form], users *services.Users, codes *services.Codes) *Flows {
	f := &Flows{sessions: sessions, users: users, codes: codes}
	sessions.Handle(StateChoosing, f.handleChoosing)
	sessions.Handle(StatePaymentMethod, f.handlePaymentMethod)
	sessions.Handle(StatePaymentNumber, f.handlePaymentNumber)
	sessions.Handle(StatePaymentRef, f.handlePaymentRef)
	sessions.Handle(StateRegName, f.handleRegName)
	sessions.Handle(StateRegSurname, f.handleRegSurname)
	sessions.Handle(StateRegPhone, f.handleRegPhone)
	sessions.Handle(StateRegID, f.handleRegID)
	return f
}

// Sessions exposes the session manager for routing.
func (f *Flows) Sessions() state.Manager[Form] { return f.sessions }

// Register binds the public commands and the idle-text fallback.
func (f *Flows) Register(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     f.Start,
		Description: "Menu principal",
	})
	reg.RegisterCommand("/aide", commands.Command{
		Handler:     f.Help,
		Description: "Comment utiliser le bot",
		Aliases:     []string{"/help"},
	})
	reg.SetTextFallback(func(c tele.Context) error {
		return tghelpers.SendText(c, msgUnknownOption)
	})
}

func mainMenu() *tele.ReplyMarkup {
	return keyboard.ReplyButtons(
		[]string{labelPay, labelSignup},
		[]string{labelHelp, labelStatus},
	)
}

// Start restarts the conversation from any state and shows the main menu.
func (f *Flows) Start(c tele.Context) error {
	f.sessions.Clear(c.Sender().ID)
	f.sessions.SetState(c.Sender().ID, StateChoosing)
	return tghelpers.SendText(c, msgWelcome, &tele.SendOptions{ReplyMarkup: mainMenu()})
}

// Help sends usage instructions and ends any running conversation.
func (f *Flows) Help(c tele.Context) error {
	f.sessions.Clear(c.Sender().ID)
	return tghelpers.SendText(c, msgHelp, &tele.SendOptions{ReplyMarkup: keyboard.RemoveKeyboard()})
}

func (f *Flows) handleChoosing(c tele.Context) error {
	userID := c.Sender().ID
	intent := ParseIntent(c.Text())
	logger.Debug(tghelpers.BuildContext(c), "flows", "menu.choice",
		slog.String("intent", intent.String()))

	switch intent {
	case IntentPay:
		f.sessions.SetState(userID, StatePaymentMethod)
		kb := keyboard.ReplyButtons([]string{labelMvola, labelAirtel, labelBack})
		return tghelpers.SendText(c, msgPickMethod, &tele.SendOptions{ReplyMarkup: kb})
	case IntentRegister:
		f.sessions.SetState(userID, StateRegName)
		return tghelpers.SendText(c, msgAskName, &tele.SendOptions{ReplyMarkup: keyboard.RemoveKeyboard()})
	case IntentHelp:
		return f.Help(c)
	case IntentStatus:
		return f.status(c)
	case IntentBack:
		return f.Start(c)
	default:
		f.sessions.Clear(userID)
		return tghelpers.SendText(c, msgUnknownOption)
	}
}

func (f *Flows) handlePaymentMethod(c tele.Context) error {
	userID := c.Sender().ID
	switch ParseIntent(c.Text()) {
	case IntentBack:
		return f.Start(c)
	case IntentMvola:
		return f.acceptMethod(c, labelMvola)
	case IntentAirtel:
		return f.acceptMethod(c, labelAirtel)
	default:
		// Unknown method sends the member back to the menu, not out of
		// the conversation.
		f.sessions.SetState(userID, StateChoosing)
		return tghelpers.SendText(c, msgUnknownOption, &tele.SendOptions{ReplyMarkup: mainMenu()})
	}
}

func (f *Flows) acceptMethod(c tele.Context, method string) error {
	userID := c.Sender().ID
	f.sessions.Update(userID, func(s *state.Session[Form]) {
		s.Form.PayMethod = method
		s.State = StatePaymentNumber
	})
	return tghelpers.SendText(c, msgAskNumber, &tele.SendOptions{ReplyMarkup: keyboard.RemoveKeyboard()})
}

func (f *Flows) handlePaymentNumber(c tele.Context) error {
	userID := c.Sender().ID
	number := strings.TrimSpace(c.Text())
	f.sessions.Update(userID, func(s *state.Session[Form]) {
		s.Form.PayNumber = number
		s.State = StatePaymentRef
	})
	return tghelpers.SendText(c, msgAskReference)
}

func (f *Flows) handlePaymentRef(c tele.Context) error {
	userID := c.Sender().ID
	memberID := strings.TrimSpace(c.Text())
	form := f.sessions.Form(userID)
	f.sessions.Clear(userID)

	ctx := tghelpers.BuildContext(c)
	err := f.codes.SubmitPayment(ctx, services.Payment{
		MemberID:      memberID,
		PaymentMethod: form.PayMethod,
		PaymentNumber: form.PayNumber,
	})
	if err != nil {
		logger.Error(ctx, "flows", "payment.submit_failed",
			slog.String("member_id", memberID),
			slog.String("err", err.Error()))
		return tghelpers.SendText(c, msgInternalError)
	}
	return tghelpers.SendText(c, msgPaymentReceived)
}

func (f *Flows) handleRegName(c tele.Context) error {
	f.sessions.Update(c.Sender().ID, func(s *state.Session[Form]) {
		s.Form.Name = strings.TrimSpace(c.Text())
		s.State = StateRegSurname
	})
	return tghelpers.SendText(c, msgAskSurname)
}

func (f *Flows) handleRegSurname(c tele.Context) error {
	f.sessions.Update(c.Sender().ID, func(s *state.Session[Form]) {
		s.Form.Surname = strings.TrimSpace(c.Text())
		s.State = StateRegPhone
	})
	return tghelpers.SendText(c, msgAskPhone)
}

func (f *Flows) handleRegPhone(c tele.Context) error {
	f.sessions.Update(c.Sender().ID, func(s *state.Session[Form]) {
		s.Form.Phone = strings.TrimSpace(c.Text())
		s.State = StateRegID
	})
	return tghelpers.SendText(c, msgAskMemberID)
}

func (f *Flows) handleRegID(c tele.Context) error {
	userID := c.Sender().ID
	memberID := strings.TrimSpace(c.Text())
	form := f.sessions.Form(userID)
	f.sessions.Clear(userID)

	ctx := tghelpers.BuildContext(c)
	_, err := f.users.Register(ctx, services.Registration{
		MemberID:   memberID,
		Name:       form.Name,
		Surname:    form.Surname,
		Phone:      form.Phone,
		TelegramID: userID,
	})
	if err != nil {
		logger.Error(ctx, "flows", "register.failed",
			slog.String("member_id", memberID),
			slog.String("err", err.Error()))
		return tghelpers.SendText(c, msgInternalError)
	}

	confirm := fmt.Sprintf(
		"Inscription réussie !\nNom : %s\nPrénom : %s\nTéléphone : %s\nVotre ID : %s\nPour revenir au menu, tapez /start.",
		form.Name, form.Surname, form.Phone, memberID,
	)
	return tghelpers.SendText(c, confirm)
}

// status reports the sender's subscription and redisplays the menu.
func (f *Flows) status(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	u, err := tghelpers.CurrentUser[models.User](ctx, f.users, c.Sender().ID)
	if err != nil {
		return tghelpers.SendText(c, msgNoAccount, &tele.SendOptions{ReplyMarkup: mainMenu()})
	}

	info, ok, err := f.codes.UserCodeInfo(ctx, u.MemberID)
	if err != nil {
		logger.Error(ctx, "flows", "status.failed",
			slog.String("member_id", u.MemberID),
			slog.String("err", err.Error()))
		return tghelpers.SendText(c, msgInternalError)
	}

	var text string
	switch {
	case ok:
		valid, verr := f.codes.UserHasValidCode(ctx, u.MemberID)
		if verr != nil {
			return tghelpers.SendText(c, msgInternalError)
		}
		if valid {
			text = fmt.Sprintf("Abonnement actif.\nVotre code : %s\nValide jusqu'au %s.",
				info.Code, services.FormatDate(info.ExpiresAt))
		} else {
			text = fmt.Sprintf("Abonnement expiré depuis le %s.\nVotre code : %s",
				services.FormatDate(info.ExpiresAt), info.Code)
		}
	default:
		pending, perr := f.hasPending(c, u.MemberID)
		if perr != nil {
			return tghelpers.SendText(c, msgInternalError)
		}
		if pending {
			text = msgPendingReview
		} else {
			text = msgNoSubscription
		}
	}
	return tghelpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: mainMenu()})
}

func (f *Flows) hasPending(c tele.Context, memberID string) (bool, error) {
	ctx := tghelpers.BuildContext(c)
	rows, err := f.codes.ListPending(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.MemberID == memberID {
			return true, nil
		}
	}
	return false, nil
}
