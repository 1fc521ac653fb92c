package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/logger"
	"github.com/m3rciful/tabletop/core/metrics"
	tghelpers "github.com/m3rciful/tabletop/core/telegram/helpers"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
// Each user gets a token bucket refilled once per Interval holding Burst tokens.
type RateLimitOptions struct {
	Interval  time.Duration
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// RateLimiter keeps one limiter per user and forgets idle users.
type RateLimiter struct {
	opts     RateLimitOptions
	limiters *cache.Cache
}

// NewRateLimiter builds a limiter. A non-positive Interval disables limiting.
func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	idle := 10 * opts.Interval * time.Duration(opts.Burst)
	if idle < time.Minute {
		idle = time.Minute
	}
	return &RateLimiter{opts: opts, limiters: cache.New(idle, 2*idle)}
}

// Allow reports whether userID may proceed now.
func (r *RateLimiter) Allow(userID int64) bool {
	if r.opts.Interval <= 0 {
		return true
	}
	key := strconv.FormatInt(userID, 10)
	var lim *rate.Limiter
	if v, ok := r.limiters.Get(key); ok {
		lim = v.(*rate.Limiter)
	} else {
		lim = rate.NewLimiter(rate.Every(r.opts.Interval), r.opts.Burst)
		if err := r.limiters.Add(key, lim, cache.DefaultExpiration); err != nil {
			// Another update of the same user won the race.
			if v, ok := r.limiters.Get(key); ok {
				lim = v.(*rate.Limiter)
			}
		}
	}
	// Sliding idle window.
	r.limiters.Set(key, lim, cache.DefaultExpiration)
	return lim.Allow()
}

// Middleware drops updates of users above their rate.
func (r *RateLimiter) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		user := c.Sender()
		if user == nil || r.opts.Interval <= 0 {
			return next(c)
		}

		// Determine update kind and apply configured exclusions
		upd := c.Update()
		kind := "other"
		switch {
		case upd.Callback != nil:
			kind = "callback"
		case upd.Message != nil:
			kind = "message"
		case upd.Query != nil:
			kind = "inline_query"
		}
		if _, skip := r.opts.Exclude[kind]; skip {
			return next(c)
		}

		if r.Allow(user.ID) {
			return next(c)
		}

		metrics.Default().IncRateLimited()
		attrs := []slog.Attr{
			slog.String("status", "rate_limited"),
			slog.Int64("user_id", user.ID),
			slog.String("kind", kind),
		}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.Int64("chat_id", chat.ID))
		}
		logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit", attrs...)
		if r.opts.OnLimited != nil {
			_ = r.opts.OnLimited(c)
		}
		return nil
	}
}

// RateLimitMiddleware returns a middleware that enforces the configured rate per user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	return NewRateLimiter(opts).Middleware
}
