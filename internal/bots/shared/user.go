// Package shared holds the pieces both bots are built from: user sync,
// error presentation, navigation buttons and run wiring.
package shared

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/logger"
	tghelpers "github.com/m3rciful/tabletop/core/telegram/helpers"
	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/model"
)

// UserStore creates and refreshes Telegram accounts.
type UserStore interface {
	Upsert(ctx context.Context, id int64, username string, admin bool) (model.User, error)
}

// userTTL bounds how long a synced account is trusted without touching the database.
const userTTL = 10 * time.Minute

// UserSync registers every sender in the users table and exposes the row to
// handlers through CurrentUser. Senders listed in adminIDs are marked admins.
type UserSync struct {
	users    UserStore
	adminIDs []int64
	seen     *cache.Cache
}

// NewUserSync builds the middleware state.
func NewUserSync(users UserStore, adminIDs []int64) *UserSync {
	return &UserSync{
		users:    users,
		adminIDs: adminIDs,
		seen:     cache.New(userTTL, 2*userTTL),
	}
}

// Middleware resolves the sender before next runs.
func (u *UserSync) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil || sender.IsBot {
			return next(c)
		}
		user, err := u.resolve(tghelpers.BuildContext(c), sender)
		if err != nil {
			return err
		}
		tghelpers.StoreUser(c, user)
		return next(c)
	}
}

func (u *UserSync) resolve(ctx context.Context, sender *tele.User) (model.User, error) {
	key := strconv.FormatInt(sender.ID, 10)
	if v, ok := u.seen.Get(key); ok {
		cached := v.(model.User)
		if sameUsername(cached.Username, sender.Username) {
			return cached, nil
		}
	}
	user, err := u.users.Upsert(ctx, sender.ID, sender.Username, slices.Contains(u.adminIDs, sender.ID))
	if err != nil {
		logger.SVCUsers.LogAttrs(ctx, slog.LevelError, "user.sync",
			slog.String("status", "fail"),
			slog.Int64("user_id", sender.ID),
			slog.String("err", err.Error()),
		)
		return model.User{}, err
	}
	logger.SVCUsers.LogAttrs(ctx, slog.LevelDebug, "user.sync",
		slog.String("status", "ok"),
		slog.Int64("user_id", user.ID),
		slog.Bool("admin", user.Admin),
	)
	u.seen.Set(key, user, cache.DefaultExpiration)
	return user, nil
}

func sameUsername(stored *string, current string) bool {
	if stored == nil {
		return current == ""
	}
	return *stored == current
}

var errNoUser = apperr.New(apperr.KindNotFound, "bots.user", "sender is not registered")

// CurrentUser returns the account resolved by UserSync.
func CurrentUser(c tele.Context) (model.User, error) {
	if u, ok := tghelpers.CurrentUser[model.User](c); ok {
		return u, nil
	}
	return model.User{}, errNoUser
}
