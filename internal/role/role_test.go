package role

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tabletop/internal/apperr"
)

type holder Role

func (h holder) RoleValue() Role { return Role(h) }

func TestParseAcceptsBoundaryForms(t *testing.T) {
	cases := []struct {
		in   any
		want Role
	}{
		{Owner, Owner},
		{1, Editor},
		{int64(0), Participant},
		{float64(2), Owner},
		{"master", Editor},
		{" Player ", Participant},
		{"EDITOR", Editor},
		{"owner", Owner},
		{"participant", Participant},
		{"1", Editor},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		require.NoError(t, err, "input %#v", tc.in)
		assert.Equal(t, tc.want, got, "input %#v", tc.in)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []any{"admin", 3, -1, 1.5, nil, []string{"owner"}} {
		_, err := Parse(in)
		require.Error(t, err, "input %#v", in)
		assert.True(t, errors.Is(err, apperr.ErrValidation), "input %#v", in)
	}
}

func TestAuthorizeIsMonotonic(t *testing.T) {
	all := []Role{Participant, Editor, Owner}
	for _, held := range all {
		for _, min := range all {
			assert.Equal(t, held >= min, Authorize(holder(held), min), "held=%s min=%s", held, min)
		}
	}
	assert.False(t, Authorize(nil, Participant))
}

func TestPolicyTable(t *testing.T) {
	assert.True(t, Allowed(holder(Editor), ActionEditInfo))
	assert.False(t, Allowed(holder(Editor), ActionDelete))
	assert.False(t, Allowed(holder(Editor), ActionInviteMaster))
	assert.True(t, Allowed(holder(Editor), ActionInvitePlayer))
	assert.True(t, Allowed(holder(Owner), ActionManageMasters))
	assert.False(t, Allowed(holder(Participant), ActionManage))
	assert.True(t, Allowed(holder(Editor), ActionManagePlayers))
	assert.False(t, Allowed(holder(Participant), ActionManageItems))
	assert.Equal(t, Owner, Require(Action("unknown")))
	assert.Equal(t, ActionInviteMaster, InviteAction(Master))
	assert.Equal(t, ActionInvitePlayer, InviteAction(Player))
}

func TestScanFromDriverValues(t *testing.T) {
	var r Role
	require.NoError(t, r.Scan(int64(2)))
	assert.Equal(t, Owner, r)
	require.NoError(t, r.Scan([]byte("1")))
	assert.Equal(t, Editor, r)
	require.Error(t, r.Scan(nil))
}
