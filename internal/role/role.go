// Package role defines campaign roles and the permission policy built on them.
package role

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/tabletop/internal/apperr"
)

// Role is a member's rank inside a campaign. Higher values carry more rights.
type Role int

const (
	Participant Role = 0
	Editor      Role = 1
	Owner       Role = 2

	// Player and Master are the names the bots use for Participant and Editor.
	Player = Participant
	Master = Editor
)

var names = map[string]Role{
	"participant": Participant,
	"player":      Participant,
	"editor":      Editor,
	"master":      Editor,
	"owner":       Owner,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r >= Participant && r <= Owner
}

// String implements fmt.Stringer using the bot-facing names.
func (r Role) String() string {
	switch r {
	case Participant:
		return "player"
	case Editor:
		return "master"
	case Owner:
		return "owner"
	}
	return "role(" + strconv.Itoa(int(r)) + ")"
}

// Parse converts untrusted input into a Role. It accepts a Role, any integer,
// a JSON number, a numeric string or a role name.
func Parse(v any) (Role, error) {
	const op = "role.parse"
	var n int64
	switch x := v.(type) {
	case Role:
		n = int64(x)
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case float64:
		if x != float64(int64(x)) {
			return 0, apperr.Validation(op, fmt.Sprintf("non-integer role %v", x))
		}
		n = int64(x)
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		if r, ok := names[s]; ok {
			return r, nil
		}
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, apperr.Validation(op, fmt.Sprintf("unknown role %q", x))
		}
		n = parsed
	default:
		return 0, apperr.Validation(op, fmt.Sprintf("unsupported role type %T", v))
	}
	r := Role(n)
	if !r.Valid() {
		return 0, apperr.Validation(op, fmt.Sprintf("role %d out of range", n))
	}
	return r, nil
}

// Value implements driver.Valuer.
func (r Role) Value() (driver.Value, error) {
	return int64(r), nil
}

// Scan implements sql.Scanner.
func (r *Role) Scan(src any) error {
	if src == nil {
		return fmt.Errorf("role: NULL role")
	}
	if b, ok := src.([]byte); ok {
		src = string(b)
	}
	parsed, err := Parse(src)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Holder is anything that carries a role, typically a participation.
type Holder interface {
	RoleValue() Role
}

// Authorize reports whether h holds at least min.
func Authorize(h Holder, min Role) bool {
	if h == nil {
		return false
	}
	return h.RoleValue() >= min
}
