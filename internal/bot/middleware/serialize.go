package middleware

import (
	"foodbot/internal/session"

	tele "gopkg.in/telebot.v4"
)

// Serialize runs the whole handler inside the sender's lock so that a user's
// events are processed one at a time in arrival order. Workflow steps
// read-then-write session state and must not interleave; without this a
// double-tap on "confirm order" can place two orders. Updates from different
// users run concurrently.
func Serialize(locker *session.Locker) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return next(c)
			}
			unlock := locker.Lock(sender.ID)
			defer unlock()
			return next(c)
		}
	}
}
