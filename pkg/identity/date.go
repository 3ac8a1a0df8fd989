package identity

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// zonelessLayouts are tried when net/mail rejects a date, typically because the zone is missing.
// A missing zone is treated as UTC.
var zonelessLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05",
	"Mon, 2 Jan 2006 15:04",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04",
	"Mon, 02 Jan 2006 15:04:05",
	"02 Jan 2006 15:04:05",
}

var errNoDate = errors.New("date header is empty")

// ParseDate parses an RFC 5322 date header value.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errNoDate
	}
	t, err := mail.ParseDate(value)
	if err == nil {
		return t, nil
	}
	// Drop trailing comments such as "(UTC)" before retrying.
	if i := strings.IndexByte(value, '('); i > 0 {
		value = strings.TrimSpace(value[:i])
	}
	for _, layout := range zonelessLayouts {
		if t, lerr := time.ParseInLocation(layout, value, time.UTC); lerr == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
