package helpers

import (
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/leihbot/core/logger"
)

func newContext(updateID int, chatID, userID int64) tele.Context {
	return (&tele.Bot{}).NewContext(tele.Update{ID: updateID, Message: &tele.Message{
		Chat:   &tele.Chat{ID: chatID},
		Sender: &tele.User{ID: userID},
	}})
}

func TestBuildContextIsCached(t *testing.T) {
	c := newContext(3, -100, 42)
	ctx := BuildContext(c)
	require.Equal(t, "3:-100:42", logger.RIDFrom(ctx))
	require.EqualValues(t, -100, logger.ChatIDFrom(ctx))
	require.EqualValues(t, 42, logger.UserIDFrom(ctx))
	require.Equal(t, "3:-100:42", c.Get("rid"))

	withHandler := WithHandler(c, "lend")
	require.Equal(t, "lend", logger.HandlerFrom(withHandler))
	require.Equal(t, "lend", logger.HandlerFrom(BuildContext(c)))
}

func TestCounters(t *testing.T) {
	c := newContext(1, 1, 1)
	ResetCounters(c)
	countOutbound(c, nil)
	countOutbound(c, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	msgs, kb := Counters(c)
	require.Equal(t, 2, msgs)
	require.False(t, kb)

	countOutbound(c, &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{ForceReply: true}})
	msgs, kb = Counters(c)
	require.Equal(t, 3, msgs)
	require.True(t, kb)
}

func TestSendKey(t *testing.T) {
	require.Equal(t, "-100", sendKey(newContext(1, -100, 1)))
	require.Empty(t, sendKey((&tele.Bot{}).NewContext(tele.Update{})))
}
