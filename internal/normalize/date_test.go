package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"15-03-2024",
		"15/03/2024",
		"15.03.2024",
		"2024-03-15",
		"2024/03/15",
	} {
		got, err := ParseDate(in)
		require.NoError(t, err, "input %q", in)
		assert.True(t, SameDay(got, want), "input %q: got %s", in, got)
	}
}

func TestParseDateExcelSerial(t *testing.T) {
	// 45366 is 2024-03-15 in the 1900 date system.
	got, err := ParseDate("45366")
	require.NoError(t, err)
	assert.True(t, SameDay(got, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)), "got %s", got)
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "not a date", "99/99/9999", "0"} {
		_, err := ParseDate(in)
		assert.Error(t, err, "input %q", in)
	}
}
