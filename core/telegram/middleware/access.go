package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines how admin-only checks should behave. AdminIDs is the
// injected allow-list of administrator Telegram identities; an empty list
// denies every admin-only call.
type AdminOptions struct {
	AdminIDs []int64
	OnReject tele.HandlerFunc
}

// Allowed reports whether the given sender ID is on the allow-list.
func (o AdminOptions) Allowed(id int64) bool {
	for _, admin := range o.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

// WithAdminCheck wraps a command handler enforcing admin-only execution when required.
func WithAdminCheck(opts AdminOptions, cmd struct {
	AdminOnly bool
	Handler   tele.HandlerFunc
}) tele.HandlerFunc {
	if !cmd.AdminOnly {
		return cmd.Handler
	}
	return func(c tele.Context) error {
		if !opts.Allowed(c.Sender().ID) {
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
		return cmd.Handler(c)
	}
}

// AdminOnlyMiddleware ensures that only allow-listed users can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !opts.Allowed(c.Sender().ID) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
