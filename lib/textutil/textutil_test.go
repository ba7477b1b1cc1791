package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "remseats", NormalizeName("  Rem Seats\n"))
	require.Equal(t, "", NormalizeName(" \t"))
}

func TestMatchName(t *testing.T) {
	testCases := []struct {
		name     string
		matcher  string
		expected bool
	}{
		{name: "Rem", matcher: "rem", expected: true},
		{name: "Seats Rem", matcher: "Rem", expected: true},
		{name: "Remm", matcher: "Rem", expected: true},
		{name: "Cap", matcher: "Rem", expected: false},
		{name: "", matcher: "Rem", expected: false},
		{name: "Rem", matcher: "", expected: false},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, MatchName(test.name, test.matcher, 0.9), "%q ~ %q", test.name, test.matcher)
	}
}
