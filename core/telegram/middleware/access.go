package middleware

import tele "gopkg.in/telebot.v4"

// AdminOnly lets updates from adminID through and hands the rest to reject,
// or drops them when reject is nil. adminID 0 disables the check.
func AdminOnly(adminID int64, reject tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if adminID == 0 {
				return next(c)
			}
			if u := c.Sender(); u != nil && u.ID == adminID {
				return next(c)
			}
			if reject == nil {
				return nil
			}
			return reject(c)
		}
	}
}
