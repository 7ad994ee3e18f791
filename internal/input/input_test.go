package input

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadValidatesAndDedups(t *testing.T) {
	t.Parallel()

	r, err := NewReader(`^[A-Z]{2}\d{6}$`, nil)
	require.NoError(t, err)

	src := strings.NewReader("AB123456\nnot-a-key\nCD789012\nAB123456\n\nEF345678\n")
	keys, err := r.Read(src)
	require.NoError(t, err)
	require.Equal(t, []string{"AB123456", "CD789012", "EF345678"}, keys)
}

func TestReadTakesFirstColumn(t *testing.T) {
	t.Parallel()

	r, err := NewReader("", nil)
	require.NoError(t, err)

	src := strings.NewReader("AB123456,Chez Nous,Lyon\nCD789012,Aubergine,Paris\n")
	keys, err := r.Read(src)
	require.NoError(t, err)
	require.Equal(t, []string{"AB123456", "CD789012"}, keys)
}

func TestReadEmptyInput(t *testing.T) {
	t.Parallel()

	r, err := NewReader("", nil)
	require.NoError(t, err)

	keys, err := r.Read(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestNewReaderRejectsBadPattern(t *testing.T) {
	t.Parallel()

	_, err := NewReader(`(`, nil)
	require.Error(t, err)
}

func TestReadFileMissing(t *testing.T) {
	t.Parallel()

	r, err := NewReader("", nil)
	require.NoError(t, err)

	_, err = r.ReadFile("does-not-exist.csv")
	require.Error(t, err)
}
