package telegram

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/tabletop/core/config"
)

// DefaultPollTimeout is used when telegram.longpoll_timeout_seconds is unset.
const DefaultPollTimeout = 10 * time.Second

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// PollTimeout converts the configured long polling timeout.
func PollTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return DefaultPollTimeout
	}
	return time.Duration(seconds) * time.Second
}

// BuildPoller returns a webhook listener or a long poller. Each bot of the
// process needs its own webhook port.
func BuildPoller(opts PollerOptions) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", opts.Webhook.Listen, opts.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: PollTimeout(opts.LongPollTimeoutSeconds)}
}
