package keyboard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChoicesOneOptionPerRow(t *testing.T) {
	m := Choices("Drill (#7)", "Saw (#9)", "cancel")
	require.True(t, m.OneTimeKeyboard)
	require.True(t, m.ResizeKeyboard)
	require.Len(t, m.ReplyKeyboard, 3)
	for i, want := range []string{"Drill (#7)", "Saw (#9)", "cancel"} {
		require.Len(t, m.ReplyKeyboard[i], 1)
		require.Equal(t, want, m.ReplyKeyboard[i][0].Text)
	}
}

func TestForceReplyAndRemove(t *testing.T) {
	require.True(t, ForceReply().ForceReply)
	require.True(t, RemoveKeyboard().RemoveKeyboard)
}
