package callbacks

import (
	"strconv"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"
)

// PayloadInt64 parses callback payload as int64.
func PayloadInt64(c tele.Context) (int64, error) {
	p := CallbackPayload(c)
	return strconv.ParseInt(p, 10, 64)
}

// PayloadUUID parses callback payload as a UUID.
func PayloadUUID(c tele.Context) (uuid.UUID, error) {
	return uuid.Parse(CallbackPayload(c))
}
