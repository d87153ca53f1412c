package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines how admin-only checks should behave. Without an
// AdminID nobody counts as admin.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// IsAdmin reports whether c was sent by the configured admin.
func (o AdminOptions) IsAdmin(c tele.Context) bool {
	return o.AdminID != 0 && c.Sender() != nil && c.Sender().ID == o.AdminID
}

// AdminOnlyMiddleware ensures that only the admin user can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !opts.IsAdmin(c) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
