// Package metrics holds the Prometheus collectors shared by the bots and services.
// All methods are safe on a nil *Registry so wiring metrics stays optional.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tabletop"

// Registry groups the application collectors.
type Registry struct {
	HandlerTotal    *prometheus.CounterVec
	HandlerDuration *prometheus.HistogramVec
	RateLimited     prometheus.Counter
	SendFailures    prometheus.Counter

	InvitesCreated    *prometheus.CounterVec
	InviteRedemptions *prometheus.CounterVec
	Notifications     *prometheus.CounterVec
	SheetUploads      *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Registry {
	f := promauto.With(reg)
	return &Registry{
		HandlerTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_total",
			Help:      "Telegram updates handled, by handler and outcome.",
		}, []string{"handler", "outcome"}),
		HandlerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Telegram handler latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"handler"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Updates dropped by the per-user rate limiter.",
		}),
		SendFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Outbound Telegram calls that failed after retries.",
		}),
		InvitesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invites_created_total",
			Help:      "Invitations issued, by granted role.",
		}, []string{"role"}),
		InviteRedemptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invite_redemptions_total",
			Help:      "Invitation redemption attempts, by outcome.",
		}, []string{"outcome"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Direct notifications sent by services, by kind and status.",
		}, []string{"kind", "status"}),
		SheetUploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheet_uploads_total",
			Help:      "Character sheet uploads, by outcome.",
		}, []string{"outcome"}),
	}
}

var defaultRegistry atomic.Pointer[Registry]

// SetDefault installs the registry used by package-level telegram helpers.
func SetDefault(r *Registry) { defaultRegistry.Store(r) }

// Default returns the installed registry or nil.
func Default() *Registry { return defaultRegistry.Load() }

// ObserveHandler records one handled update.
func (r *Registry) ObserveHandler(handler, outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.HandlerTotal.WithLabelValues(handler, outcome).Inc()
	r.HandlerDuration.WithLabelValues(handler).Observe(took.Seconds())
}

// IncRateLimited counts a dropped update.
func (r *Registry) IncRateLimited() {
	if r == nil {
		return
	}
	r.RateLimited.Inc()
}

// IncSendFailure counts an outbound call that exhausted its retries.
func (r *Registry) IncSendFailure() {
	if r == nil {
		return
	}
	r.SendFailures.Inc()
}

// IncInviteCreated counts an issued invitation.
func (r *Registry) IncInviteCreated(role string) {
	if r == nil {
		return
	}
	r.InvitesCreated.WithLabelValues(role).Inc()
}

// IncRedemption counts a redemption attempt.
func (r *Registry) IncRedemption(outcome string) {
	if r == nil {
		return
	}
	r.InviteRedemptions.WithLabelValues(outcome).Inc()
}

// IncNotification counts a service notification.
func (r *Registry) IncNotification(kind, status string) {
	if r == nil {
		return
	}
	r.Notifications.WithLabelValues(kind, status).Inc()
}

// IncSheetUpload counts a character sheet upload.
func (r *Registry) IncSheetUpload(outcome string) {
	if r == nil {
		return
	}
	r.SheetUploads.WithLabelValues(outcome).Inc()
}
