// Package selection drives the interactive main-character menus: a primary
// menu of roster entries, then a second menu to tell the aliased pair apart
// when its representative was picked.
package selection

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Selection errors.
var (
	ErrSessionNotFound  = errors.New("selection session not found or expired")
	ErrInvalidSelection = errors.New("invalid selection")
	ErrTooManyMains     = errors.New("too many main characters selected")
	ErrWrongStep        = errors.New("selection submitted for the wrong step")
)

// State is a step of the selection flow.
type State int

// Selection states.
const (
	AwaitingPrimarySelection State = iota
	AwaitingDisambiguation
	Resolved
)

func (s State) String() string {
	switch s {
	case AwaitingPrimarySelection:
		return "primary"
	case AwaitingDisambiguation:
		return "alias"
	case Resolved:
		return "resolved"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func parseState(s string) (State, bool) {
	switch s {
	case "primary":
		return AwaitingPrimarySelection, true
	case "alias":
		return AwaitingDisambiguation, true
	default:
		return 0, false
	}
}

// Session is one member's run through the menus. A member may have several
// open at once; whichever resolves last wins.
type Session struct {
	ID        string    `json:"id"`
	GuildID   string    `json:"guild_id"`
	MemberID  string    `json:"member_id"`
	State     State     `json:"state"`
	Accepted  []string  `json:"accepted,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CustomIDPrefix marks components owned by the selection flow.
const CustomIDPrefix = "mains:"

// CustomID is the component id of the menu for the given step.
func CustomID(state State, sessionID string) string {
	return CustomIDPrefix + state.String() + ":" + sessionID
}

// ParseCustomID splits a component id built by CustomID.
func ParseCustomID(customID string) (State, string, error) {
	rest, ok := strings.CutPrefix(customID, CustomIDPrefix)
	if !ok {
		return 0, "", errors.Wrapf(ErrInvalidSelection, "foreign component %q", customID)
	}
	step, id, ok := strings.Cut(rest, ":")
	if !ok || id == "" {
		return 0, "", errors.Wrapf(ErrInvalidSelection, "malformed component %q", customID)
	}
	state, ok := parseState(step)
	if !ok {
		return 0, "", errors.Wrapf(ErrInvalidSelection, "unknown step %q", step)
	}
	return state, id, nil
}
