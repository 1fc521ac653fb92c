package middleware

import tele "gopkg.in/telebot.v4"

const countersKey = "reply_counters"

// replyCounters track what a handler sent back, for the handler summary log.
type replyCounters struct {
	messages int
	keyboard bool
}

// countingContext counts successful sends and edits made through it.
type countingContext struct {
	tele.Context
	n *replyCounters
}

func (m countingContext) count(err error, opts []any) error {
	if err != nil {
		return err
	}
	m.n.messages++
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			m.n.keyboard = m.n.keyboard || (v != nil && v.ReplyMarkup != nil)
		case *tele.ReplyMarkup:
			m.n.keyboard = m.n.keyboard || v != nil
		}
	}
	return nil
}

func (m countingContext) Send(what any, opts ...any) error {
	return m.count(m.Context.Send(what, opts...), opts)
}

func (m countingContext) Reply(what any, opts ...any) error {
	return m.count(m.Context.Reply(what, opts...), opts)
}

func (m countingContext) Edit(what any, opts ...any) error {
	return m.count(m.Context.Edit(what, opts...), opts)
}

func (m countingContext) EditOrSend(what any, opts ...any) error {
	return m.count(m.Context.EditOrSend(what, opts...), opts)
}

func (m countingContext) EditOrReply(what any, opts ...any) error {
	return m.count(m.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts the messages each handler sends or edits.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &replyCounters{}
		c.Set(countersKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// GetCounters returns how many messages the handler sent and whether any had a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	n, ok := c.Get(countersKey).(*replyCounters)
	if !ok {
		return 0, false
	}
	return n.messages, n.keyboard
}
