package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextValues(t *testing.T) {
	ctx := WithUpdateMeta(context.Background(), 5, 7, 9)
	ctx = WithHandler(ctx, "/start")
	ctx = WithHandler(ctx, "")
	ctx = WithDialog(ctx, "CampaignManage")

	assert.Equal(t, 5, UpdateIDFrom(ctx))
	assert.Equal(t, int64(7), UserIDFrom(ctx))
	assert.Equal(t, int64(9), ChatIDFrom(ctx))
	assert.Equal(t, "/start", HandlerFrom(ctx))
	assert.Equal(t, "CampaignManage", DialogFrom(ctx))
	assert.Equal(t, "", RIDFrom(ctx))
	assert.Same(t, L, fromContext(context.Background()))
}

func TestSanitizeLimit(t *testing.T) {
	assert.Equal(t, "ab\tc", Sanitize("a\x00b\tc\x7f"))
	assert.Equal(t, "Dra", SanitizeLimit("\u200bDragon", 3))
	assert.Equal(t, "", SanitizeLimit("x", 0))
}

func TestCompactRID(t *testing.T) {
	assert.Equal(t, "a.z.10", CompactRID("10:35:36"))
	assert.Equal(t, "not-a-rid", CompactRID("not-a-rid"))
	assert.Equal(t, "1:x:3", CompactRID("1:x:3"))
}

func TestStructuredHandlerAddsDialog(t *testing.T) {
	ctx := WithDialog(context.Background(), "InviteMenu")
	lines := capture(t, formatKV, func(log *slog.Logger) {
		LogEvent(ctx, log, slog.LevelInfo, "invite.create", slog.String("status", "ok"))
	})

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "dialog=InviteMenu")
	assert.Contains(t, lines[0], "event=invite.create")
}
