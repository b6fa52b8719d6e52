package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlaceholderEmailDeterministic(t *testing.T) {
	a := PlaceholderEmail(ProviderLine, "U4af4980629")
	b := PlaceholderEmail(ProviderLine, "U4af4980629")
	require.Equal(t, a, b)
	require.Equal(t, "line_U4af4980629@line.placeholder.invalid", a)
}

func TestPlaceholderEmailUniquePerSubject(t *testing.T) {
	a := PlaceholderEmail(ProviderLine, "U111")
	b := PlaceholderEmail(ProviderLine, "U222")
	require.NotEqual(t, a, b)
}
