// Package policy decides who may read archived documents.
package policy

import (
	"errors"
	"strings"
)

// ErrForbidden is returned when the caller lacks the capabilities for an operation.  Read paths
// never surface it; they report not-found instead.
var ErrForbidden = errors.New("forbidden")

// AllLists is the list membership wildcard.
const AllLists = "*"

// Capabilities describes what a caller may do, as resolved from their session.
type Capabilities struct {
	User          string
	Authenticated bool
	Admin         bool
	// Lists holds list ids the caller is a member of, without angle brackets.
	Lists []string
}

// Anonymous returns the capabilities of a caller without a session.
func Anonymous() Capabilities {
	return Capabilities{}
}

// Member returns true if the caller is a member of the list, accepting list ids with or without
// angle brackets.  Admins are members of every list.
func (c Capabilities) Member(listID string) bool {
	if c.Admin {
		return true
	}
	if !c.Authenticated {
		return false
	}
	want := BareListID(listID)
	for _, l := range c.Lists {
		if l == AllLists || strings.EqualFold(BareListID(l), want) {
			return true
		}
	}
	return false
}

// BareListID strips whitespace and angle brackets from a list id.
func BareListID(listID string) string {
	listID = strings.TrimSpace(listID)
	listID = strings.TrimPrefix(listID, "<")
	return strings.TrimSuffix(listID, ">")
}
