package helpers

import tele "gopkg.in/telebot.v4"

const userKey = "current_user"

// StoreUser attaches the resolved domain user of the update to c.
func StoreUser[T any](c tele.Context, u T) {
	if c == nil {
		return
	}
	c.Set(userKey, u)
}

// CurrentUser returns the domain user stored by StoreUser. The generic type T
// lets each bot keep its own user model.
func CurrentUser[T any](c tele.Context) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	u, ok := c.Get(userKey).(T)
	return u, ok
}
