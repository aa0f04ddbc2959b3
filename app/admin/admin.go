package admin

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mihaja/abobot/app/models"
	"github.com/mihaja/abobot/app/services"
	"github.com/mihaja/abobot/app/storage"
	"github.com/mihaja/abobot/core/logger"
	tg "github.com/mihaja/abobot/core/telegram"
	"github.com/mihaja/abobot/core/telegram/callbacks"
	"github.com/mihaja/abobot/core/telegram/commands"
	"github.com/mihaja/abobot/core/telegram/format"
	tghelpers "github.com/mihaja/abobot/core/telegram/helpers"
	"github.com/mihaja/abobot/core/telegram/keyboard"
	"github.com/mihaja/abobot/core/telegram/middleware"

	"log/slog"
	tele "gopkg.in/telebot.v4"
)

// Callback keys of the admin panel.
const (
	cbPanel   = "admpanel"
	cbUsers   = "admusers"
	cbPending = "admpending"
	cbClose   = "admclose"
	cbToggle  = "admtoggle"
	cbApprove = "admapprove"
	cbReject  = "admreject"
)

const (
	msgDenied        = "Accès refusé."
	msgPanel         = "Panneau d'administration"
	msgNoUsers       = "Aucun membre inscrit."
	msgNoPending     = "Aucun paiement en attente."
	msgUserNotFound  = "Membre introuvable."
	msgNothingToDo   = "Aucun paiement en attente pour ce membre."
	msgInternalError = "Une erreur est survenue."
)

// Admin drives member administration and payment validation through an
// inline panel. All entry points are guarded by the injected allow-list;
// callbacks are guarded again because they bypass the command middleware.
type Admin struct {
	users  *services.Users
	codes  *services.Codes
	access middleware.AdminOptions
}

// New builds the admin panel for the given allow-list.
func New(users *services.Users, codes *services.Codes, adminIDs []int64) *Admin {
	return &Admin{
		users: users,
		codes: codes,
		access: middleware.AdminOptions{
			AdminIDs: adminIDs,
			OnReject: func(c tele.Context) error {
				return tghelpers.SendText(c, msgDenied)
			},
		},
	}
}

// Access exposes the allow-list options for command routing.
func (a *Admin) Access() middleware.AdminOptions { return a.access }

// Register binds the /admin command and the panel callbacks.
func (a *Admin) Register(reg *tg.Registry) {
	reg.RegisterCommand("/admin", commands.Command{
		Handler:     a.Panel,
		Description: "Panneau d'administration",
		AdminOnly:   true,
		Hidden:      true,
	})
	_ = reg.RegisterCallback(cbPanel, a.guarded(a.showPanel))
	_ = reg.RegisterCallback(cbUsers, a.guarded(a.listUsers))
	_ = reg.RegisterCallback(cbPending, a.guarded(a.listPending))
	_ = reg.RegisterCallback(cbClose, a.guarded(a.closePanel))
	_ = reg.RegisterCallback(cbToggle, a.guarded(a.toggleUser))
	_ = reg.RegisterCallback(cbApprove, a.guarded(a.approve))
	_ = reg.RegisterCallback(cbReject, a.guarded(a.reject))
}

// guarded re-checks the allow-list on callback entry.
func (a *Admin) guarded(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !a.access.Allowed(c.Sender().ID) {
			if a.access.OnReject != nil {
				return a.access.OnReject(c)
			}
			return nil
		}
		return h(c)
	}
}

// esc protects user-entered text rendered with Markdown parse mode.
func esc(s string) string {
	out, err := format.EscapeMarkdown(s, format.MarkdownV1)
	if err != nil {
		return s
	}
	return out
}

func panelMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "Membres", Unique: cbUsers},
		{Text: "Paiements en attente", Unique: cbPending},
		{Text: "Fermer", Unique: cbClose},
	})
}

// Panel opens the admin panel in response to /admin.
func (a *Admin) Panel(c tele.Context) error {
	return tghelpers.SendMD(c, "*"+msgPanel+"*", panelMarkup())
}

func (a *Admin) showPanel(c tele.Context) error {
	return tghelpers.EditOrSendMD(c, "*"+msgPanel+"*", panelMarkup())
}

func (a *Admin) closePanel(c tele.Context) error {
	return c.Delete()
}

func (a *Admin) listUsers(c tele.Context) error {
	return a.renderUsers(c, "")
}

// renderUsers (re)draws the member list with one toggle button per member.
func (a *Admin) renderUsers(c tele.Context, notice string) error {
	ctx := tghelpers.BuildContext(c)
	users, err := a.users.List(ctx)
	if err != nil {
		logger.Error(ctx, "admin", "users.list_failed", slog.String("err", err.Error()))
		return tghelpers.EditOrSendMD(c, msgInternalError, panelMarkup())
	}
	if len(users) == 0 {
		return tghelpers.EditOrSendMD(c, msgNoUsers, backMarkup())
	}

	rows := make([][]keyboard.InlineBtn, 0, len(users)+1)
	for _, u := range users {
		label := fmt.Sprintf("%s — %s %s (%s)", u.MemberID, u.Name, u.Surname, u.Status)
		rows = append(rows, []keyboard.InlineBtn{
			{Text: label, Unique: cbToggle, Data: u.MemberID},
		})
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: "Retour", Unique: cbPanel}})

	text := fmt.Sprintf("*Membres (%d)*, touchez pour activer ou désactiver", len(users))
	if notice != "" {
		text = notice + "\n\n" + text
	}
	return tghelpers.EditOrSendMD(c, text, keyboard.InlineButtonsRows(rows...))
}

func (a *Admin) toggleUser(c tele.Context) error {
	memberID := callbacks.PayloadString(c)
	ctx := tghelpers.BuildContext(c)

	next, err := a.users.Toggle(ctx, memberID)
	if errors.Is(err, storage.ErrNotFound) {
		return a.renderUsers(c, msgUserNotFound)
	}
	if err != nil {
		logger.Error(ctx, "admin", "toggle.failed",
			slog.String("member_id", memberID),
			slog.String("err", err.Error()))
		return tghelpers.EditOrSendMD(c, msgInternalError, backMarkup())
	}

	label := "inactif"
	if next == models.UserActive {
		label = "actif"
	}
	return a.renderUsers(c, fmt.Sprintf("%s est maintenant %s.", esc(memberID), label))
}

func backMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Retour", Unique: cbPanel}})
}

func (a *Admin) listPending(c tele.Context) error {
	return a.renderPending(c, "")
}

// renderPending (re)draws the pending payments with approve/reject buttons.
func (a *Admin) renderPending(c tele.Context, notice string) error {
	ctx := tghelpers.BuildContext(c)
	rows, err := a.codes.ListPending(ctx)
	if err != nil {
		logger.Error(ctx, "admin", "pending.list_failed", slog.String("err", err.Error()))
		return tghelpers.EditOrSendMD(c, msgInternalError, panelMarkup())
	}
	if len(rows) == 0 {
		text := msgNoPending
		if notice != "" {
			text = notice + "\n\n" + text
		}
		return tghelpers.EditOrSendMD(c, text, backMarkup())
	}

	var b strings.Builder
	if notice != "" {
		b.WriteString(notice)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "*Paiements en attente (%d)* :\n", len(rows))

	kbRows := make([][]keyboard.InlineBtn, 0, len(rows)+1)
	for _, ac := range rows {
		fmt.Fprintf(&b, "- %s : %s, n° %s\n", esc(ac.MemberID), esc(ac.PaymentMethod), esc(ac.PaymentNumber))
		kbRows = append(kbRows, []keyboard.InlineBtn{
			{Text: "Valider " + ac.MemberID, Unique: cbApprove, Data: ac.MemberID},
			{Text: "Rejeter " + ac.MemberID, Unique: cbReject, Data: ac.MemberID},
		})
	}
	kbRows = append(kbRows, []keyboard.InlineBtn{{Text: "Retour", Unique: cbPanel}})

	return tghelpers.EditOrSendMD(c, b.String(), keyboard.InlineButtonsRows(kbRows...))
}

func (a *Admin) approve(c tele.Context) error {
	memberID := callbacks.PayloadString(c)
	ctx := tghelpers.BuildContext(c)

	ac, err := a.codes.Approve(ctx, memberID)
	if errors.Is(err, storage.ErrNotFound) {
		return a.renderPending(c, msgNothingToDo)
	}
	if err != nil {
		logger.Error(ctx, "admin", "approve.failed",
			slog.String("member_id", memberID),
			slog.String("err", err.Error()))
		return tghelpers.EditOrSendMD(c, msgInternalError, backMarkup())
	}

	notice := fmt.Sprintf("Paiement de %s validé.", esc(memberID))
	if derr := a.deliverCode(c, memberID, ac); derr != nil {
		logger.Warn(ctx, "admin", "approve.delivery_failed",
			slog.String("member_id", memberID),
			slog.Bool("delivered", false),
			slog.String("err", derr.Error()))
		notice += " Envoi du code impossible : " + derr.Error()
	} else {
		logger.LogEvent(ctx, logger.SVCCodes, slog.LevelInfo, "code.delivered",
			slog.String("member_id", memberID),
			slog.Bool("delivered", true))
	}
	return a.renderPending(c, notice)
}

// deliverCode sends the validated code and its expiry straight to the member.
func (a *Admin) deliverCode(c tele.Context, memberID string, ac models.AccessCode) error {
	ctx := tghelpers.BuildContext(c)
	u, err := a.users.Get(ctx, memberID)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	expiry := services.FormatDate(time.Unix(ac.Stamp, 0).Add(services.ValidityWindow))
	text := fmt.Sprintf(
		"Votre paiement est validé !\nVotre code d'abonnement est : `%s`\nValide jusqu'au %s.\nGardez ce code pour l'utiliser dans Termux.",
		ac.Code, expiry,
	)
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if _, err := c.Bot().Send(&tele.User{ID: u.TelegramID}, text, opts); err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	return nil
}

func (a *Admin) reject(c tele.Context) error {
	memberID := callbacks.PayloadString(c)
	ctx := tghelpers.BuildContext(c)

	err := a.codes.Reject(ctx, memberID)
	if errors.Is(err, storage.ErrNotFound) {
		return a.renderPending(c, msgNothingToDo)
	}
	if err != nil {
		logger.Error(ctx, "admin", "reject.failed",
			slog.String("member_id", memberID),
			slog.String("err", err.Error()))
		return tghelpers.EditOrSendMD(c, msgInternalError, backMarkup())
	}
	return a.renderPending(c, fmt.Sprintf("Paiement de %s rejeté.", esc(memberID)))
}
