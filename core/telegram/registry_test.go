package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandValidates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Main menu"}))

	assert.Error(t, reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "x"}))
	assert.Error(t, reg.RegisterCommand("/help", commands.Command{Handler: noop}))
	assert.Error(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "again"}))

	name, cmd, ok := reg.LookupCommand("start")
	require.True(t, ok)
	assert.Equal(t, "/start", name)
	assert.Equal(t, "Main menu", cmd.Description)
}

func TestListCommandsHidesAdminOnly(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Main menu"}))
	require.NoError(t, reg.RegisterCommand("/academy", commands.Command{Handler: noop, Description: "Academy", AdminOnly: true}))
	require.NoError(t, reg.RegisterCommand("/cancel", commands.Command{Handler: noop, Description: "Close"}))

	assert.Equal(t, []tele.Command{
		{Text: "/cancel", Description: "Close"},
		{Text: "/start", Description: "Main menu"},
	}, reg.ListCommands(true))
	assert.Len(t, reg.ListCommands(false), 3)
}

func TestRegisterCallbackRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("cl_open", noop))
	assert.Error(t, reg.RegisterCallback("cl_open", noop))
	assert.Error(t, reg.RegisterCallback("", noop))
	assert.Error(t, reg.RegisterCallback("cl_new", nil))

	_, ok := reg.GetCallback("cl_open")
	assert.True(t, ok)
	assert.Equal(t, 1, reg.CallbackCount())
}
