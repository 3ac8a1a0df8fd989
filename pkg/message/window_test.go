package message_test

import (
	"testing"
	"time"

	"github.com/listarchive/listarchive/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	now := time.Date(2022, 3, 15, 10, 0, 0, 0, time.UTC)
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tcs := []struct {
		input string
		want  message.Window
	}{
		{"", message.Window{}},
		{"2019-09", message.Window{Since: day(2019, 9, 1), Until: day(2019, 10, 1)}},
		{"2019-12", message.Window{Since: day(2019, 12, 1), Until: day(2020, 1, 1)}},
		{"2022-02-28", message.Window{Since: day(2022, 2, 28), Until: day(2022, 3, 1)}},
		{"lte=3d", message.Window{Since: now.AddDate(0, 0, -3)}},
		{"lte=2w", message.Window{Since: now.AddDate(0, 0, -14)}},
		{"lte=1M", message.Window{Since: now.AddDate(0, -1, 0)}},
		{"gte=0d", message.Window{Until: now}},
		{"gte=1y", message.Window{Until: now.AddDate(-1, 0, 0)}},
		{"dfr=2021-01-01|dto=2021-01-31", message.Window{Since: day(2021, 1, 1), Until: day(2021, 2, 1)}},
		{"dfr=2021-01-01", message.Window{Since: day(2021, 1, 1)}},
		{"dto=2021-01-31", message.Window{Until: day(2021, 2, 1)}},
	}
	for _, tc := range tcs {
		t.Run(tc.input, func(t *testing.T) {
			got, err := message.ParseWindow(tc.input, now)
			require.NoError(t, err)
			assert.True(t, tc.want.Since.Equal(got.Since), "since: got %v, want %v", got.Since, tc.want.Since)
			assert.True(t, tc.want.Until.Equal(got.Until), "until: got %v, want %v", got.Until, tc.want.Until)
		})
	}
}

func TestParseWindowErrors(t *testing.T) {
	for _, input := range []string{
		"yesterday",
		"2019-13",
		"lte=",
		"lte=d",
		"lte=3x",
		"gte=-1d",
		"dfr=2021-01-01|xyz=2021-02-01",
		"dfr=January",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := message.ParseWindow(input, time.Now())
			assert.Error(t, err)
		})
	}
}

func TestWindowQuery(t *testing.T) {
	w := message.Window{Since: time.Unix(10, 0), Until: time.Unix(20, 0)}
	q := w.Query("<dev.example.org>")
	assert.Equal(t, "<dev.example.org>", q.ListRaw)
	assert.Equal(t, w.Since, q.Since)
	assert.Equal(t, w.Until, q.Until)
}
