package moderation

import (
	"errors"
	"strconv"
	"strings"

	"github.com/listarchive/listarchive/pkg/policy"
)

var (
	// ErrForbidden is returned when a non-admin requests a moderation action.
	ErrForbidden = policy.ErrForbidden

	// ErrUnknownAction is returned for an action name outside of the Action enum.
	ErrUnknownAction = errors.New("no such moderation action")
)

// Action is a moderation action.
type Action int

// Moderation actions.  Log lists the audit log and never mutates the archive.
const (
	Hide Action = iota + 1
	Unhide
	Delete
	DelAtt
	Edit
	Log
)

var actionNames = map[Action]string{
	Hide:   "hide",
	Unhide: "unhide",
	Delete: "delete",
	DelAtt: "delatt",
	Edit:   "edit",
	Log:    "log",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "Action(" + strconv.Itoa(int(a)) + ")"
}

// ParseAction returns the Action for a request action name.
func ParseAction(name string) (Action, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for a, n := range actionNames {
		if n == name {
			return a, nil
		}
	}
	return 0, ErrUnknownAction
}

// ValidationError reports an invalid edit request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
