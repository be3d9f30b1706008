package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJournal_RecordAndLoad(t *testing.T) {
	ctx := context.Background()
	j, err := OpenJournal(ctx, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Record(ctx, "s1", NewTurn(RoleQuestion, "q1"), NewTurn(RoleAnswer, "a1")))
	require.NoError(t, j.Record(ctx, "s2", NewTurn(RoleQuestion, "other")))
	require.NoError(t, j.Record(ctx, "s1", NewTurn(RoleQuestion, "q2")))

	turns, err := j.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	require.Equal(t, []string{"q1", "a1", "q2"}, []string{turns[0].Content, turns[1].Content, turns[2].Content})
	require.Equal(t, RoleAnswer, turns[1].Role)

	none, err := j.Load(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, none)
}
