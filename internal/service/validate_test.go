package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventDate(t *testing.T) {
	want := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	for _, in := range []string{
		"2026-05-01T09:30:00Z",
		"2026-05-01T11:30:00+02:00",
		"2026-05-01T09:30:00.000Z",
		"2026-05-01T09:30:00",
		"2026-05-01T09:30",
	} {
		got, err := parseEventDate(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(want), "%s parsed as %s", in, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	day, err := parseEventDate("2026-05-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), day)

	for _, in := range []string{"", "   ", "tomorrow", "2026-13-01", "01/05/2026"} {
		_, err := parseEventDate(in)
		assert.Error(t, err, in)
	}
}

func TestParseCapacity(t *testing.T) {
	cases := []struct {
		in   interface{}
		want *int
		ok   bool
	}{
		{nil, nil, true},
		{"", nil, true},
		{float64(1), intPtr(1), true},
		{float64(250), intPtr(250), true},
		{7, intPtr(7), true},
		{" 12 ", intPtr(12), true},
		{float64(0), nil, false},
		{float64(-3), nil, false},
		{1.5, nil, false},
		{"ten", nil, false},
		{true, nil, false},
		{[]int{1}, nil, false},
	}
	for _, tc := range cases {
		got, ok := parseCapacity(tc.in)
		assert.Equal(t, tc.ok, ok, "%#v", tc.in)
		assert.Equal(t, tc.want, got, "%#v", tc.in)
	}
}

func TestIsEmail(t *testing.T) {
	assert.True(t, isEmail("ada@campus.test"))
	assert.False(t, isEmail(""))
	assert.False(t, isEmail("ada"))
	assert.False(t, isEmail("ada@"))
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, normalizeTags([]string{" a", "b ", "", "a"}))
	assert.Equal(t, []string{}, normalizeTags(nil))
}

func TestValidationError(t *testing.T) {
	verr := newValidationError("Invalid input data")
	assert.NoError(t, verr.OrNil())

	verr.Add("email", "Please include a valid email")
	err := verr.OrNil()
	require.Error(t, err)
	assert.Equal(t, "Invalid input data (email: Please include a valid email)", err.Error())

	got, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Len(t, got.Fields, 1)
}
