package testutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Dec parses s or fails the test immediately.
func Dec(t testing.TB, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err, "bad decimal literal %q", s)
	return d
}

// AssertDecimalEqual compares numerically, so "1.20" equals "1.2".
func AssertDecimalEqual(t testing.TB, actual decimal.Decimal, expected string, msgAndArgs ...any) bool {
	t.Helper()
	want := Dec(t, expected)
	if actual.Equal(want) {
		return true
	}
	return assert.Fail(t, "decimals differ",
		append([]any{"expected %s, got %s", want.String(), actual.String()}, msgAndArgs...)...)
}
