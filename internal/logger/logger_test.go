package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	var b strings.Builder
	for i := 1; i <= 7; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	lines, err := Tail(path, 3)
	require.NoError(t, err)
	require.Equal(t, []string{"line 5", "line 6", "line 7"}, lines)

	lines, err = Tail(path, 100)
	require.NoError(t, err)
	require.Len(t, lines, 7)
	require.Equal(t, "line 1", lines[0])

	_, err = Tail(filepath.Join(t.TempDir(), "missing.log"), 10)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenFile_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	for _, line := range []string{"first\n", "second\n"} {
		f, err := OpenFile(path)
		require.NoError(t, err)
		_, err = f.WriteString(line)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	lines, err := Tail(path, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, lines)
}
