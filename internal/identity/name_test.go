package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitName(t *testing.T) {
	cases := []struct {
		name  string
		first string
		last  string
	}{
		{"Nok Chaiyo", "Nok", "Chaiyo"},
		{"Anna Maria Silva", "Anna Maria", "Silva"},
		{"Madonna", "Madonna", ""},
		{"", "", ""},
		{" Chaiyo", " Chaiyo", ""},
	}
	for _, tc := range cases {
		first, last := SplitName(tc.name)
		require.Equal(t, tc.first, first, tc.name)
		require.Equal(t, tc.last, last, tc.name)
	}
}
