package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	cmd := Command{Aliases: []string{"verleihen", "/verleihen", " ", "/borrow"}}
	require.Equal(t, []string{"/lend", "/verleihen", "/borrow"}, cmd.Names("/lend"))
}

func TestVisible(t *testing.T) {
	require.True(t, Command{}.Visible())
	require.False(t, Command{Hidden: true}.Visible())
	require.False(t, Command{AdminOnly: true}.Visible())
}
