package role

// Action is a campaign operation guarded by the policy table.
type Action string

const (
	ActionManage        Action = "campaign.manage"
	ActionEditInfo      Action = "campaign.edit_info"
	ActionDelete        Action = "campaign.delete"
	ActionInvitePlayer  Action = "invite.player"
	ActionInviteMaster  Action = "invite.master"
	ActionManageMasters Action = "masters.manage"
	ActionChangeRole    Action = "member.change_role"
	ActionManagePlayers Action = "players.manage"
	ActionManageItems   Action = "items.manage"
)

// policy is the single source of truth for minimum roles.
var policy = map[Action]Role{
	ActionManage:        Editor,
	ActionEditInfo:      Editor,
	ActionDelete:        Owner,
	ActionInvitePlayer:  Editor,
	ActionInviteMaster:  Owner,
	ActionManageMasters: Owner,
	ActionChangeRole:    Owner,
	ActionManagePlayers: Editor,
	ActionManageItems:   Editor,
}

// Require returns the minimum role for action. Unknown actions require Owner.
func Require(a Action) Role {
	if r, ok := policy[a]; ok {
		return r
	}
	return Owner
}

// Allowed reports whether h may perform a.
func Allowed(h Holder, a Action) bool {
	return Authorize(h, Require(a))
}

// InviteAction maps the role being granted to the action that grants it.
func InviteAction(granted Role) Action {
	if granted >= Editor {
		return ActionInviteMaster
	}
	return ActionInvitePlayer
}
