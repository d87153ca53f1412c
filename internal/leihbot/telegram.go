package leihbot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/leihbot/core/conversation"
	tg "github.com/m3rciful/leihbot/core/telegram"
	"github.com/m3rciful/leihbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/leihbot/core/telegram/helpers"
	"github.com/m3rciful/leihbot/core/telegram/keyboard"
	"github.com/m3rciful/leihbot/internal/loan"
)

// SessionKey identifies a conversation: the chat, or the forum topic inside it.
func SessionKey(chatID int64, threadID int) string {
	key := strconv.FormatInt(chatID, 10)
	if threadID != 0 {
		key += ":" + strconv.Itoa(threadID)
	}
	return key
}

// DisplayName prefers the full name and falls back to the username.
func DisplayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	first, last := strings.TrimSpace(u.FirstName), strings.TrimSpace(u.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	}
	return u.Username
}

// MessageFrom converts a telebot update into a conversation message.
func MessageFrom(c tele.Context) conversation.Message {
	msg := conversation.Message{
		Sender: DisplayName(c.Sender()),
		Text:   c.Text(),
		Target: c,
	}
	var chatID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	threadID := 0
	if m := c.Message(); m != nil {
		msg.MessageID = m.ID
		if m.TopicMessage {
			threadID = m.ThreadID
		}
	}
	msg.SessionKey = SessionKey(chatID, threadID)
	return msg
}

// TelegramReplier answers through the tele.Context carried in Message.Target.
type TelegramReplier struct{}

var _ conversation.Replier = TelegramReplier{}

// Reply quotes the triggering message, attaching the keyboard the reply asks for.
func (TelegramReplier) Reply(_ context.Context, msg conversation.Message, r conversation.Reply) error {
	c, ok := msg.Target.(tele.Context)
	if !ok || c == nil {
		return fmt.Errorf("leihbot: message %d carries no telegram context", msg.MessageID)
	}
	return tghelpers.ReplyText(c, r.Text, sendOptions(r))
}

func sendOptions(r conversation.Reply) *tele.SendOptions {
	opts := &tele.SendOptions{}
	if r.Markdown {
		opts.ParseMode = tele.ModeMarkdown
	}
	switch {
	case len(r.Options) > 0:
		opts.ReplyMarkup = keyboard.Choices(r.Options...)
	case r.ForceReply:
		opts.ReplyMarkup = keyboard.ForceReply()
	case r.RemoveKeyboard:
		opts.ReplyMarkup = keyboard.RemoveKeyboard()
	}
	return opts
}

// HandleText passes a non-command message to the conversation engine.
func (b *Bot) HandleText(c tele.Context) error {
	return b.Handle(tghelpers.BuildContext(c), MessageFrom(c))
}

type handlerFunc func(ctx context.Context, msg conversation.Message) error

func adapt(fn handlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		return fn(tghelpers.BuildContext(c), MessageFrom(c))
	}
}

// listing answers with the loans that are still pending, already completed,
// or both.
func (b *Bot) listing(pending, completed bool) handlerFunc {
	f, err := loan.FilterFor(pending, completed)
	return func(ctx context.Context, msg conversation.Message) error {
		if err != nil {
			return err
		}
		return b.List(ctx, msg, f)
	}
}

// Register adds the lending commands with their German aliases to reg.
func (b *Bot) Register(reg *tg.Registry) {
	reg.RegisterCommand("/lend", commands.Command{
		Handler:     adapt(b.Lend),
		Description: "Record a new loan",
		Aliases:     []string{"/verleihen"},
	})
	reg.RegisterCommand("/return", commands.Command{
		Handler:     adapt(b.Return),
		Description: "Mark a loan as returned",
		Aliases:     []string{"/rueckgabe"},
	})
	reg.RegisterCommand("/note", commands.Command{
		Handler:     adapt(b.Note),
		Description: "Add a note to an open loan",
	})
	reg.RegisterCommand("/list_open", commands.Command{
		Handler:     adapt(b.listing(true, false)),
		Description: "List lent items",
		Aliases:     []string{"/list_ausstehend"},
	})
	reg.RegisterCommand("/list_closed", commands.Command{
		Handler:     adapt(b.listing(false, true)),
		Description: "List returned items",
		Aliases:     []string{"/list_zurueckgegeben"},
	})
	reg.RegisterCommand("/list_all", commands.Command{
		Handler:     adapt(b.listing(true, true)),
		Description: "List lent and returned items",
		Aliases:     []string{"/list_alle"},
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     adapt(b.Cancel),
		Description: "Abort the current conversation",
		Aliases:     []string{"/abbrechen"},
	})
	reg.RegisterCommand("/pending", commands.Command{
		Handler:     adapt(b.Pending),
		Description: "Show conversations waiting for an answer",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler: adapt(func(ctx context.Context, msg conversation.Message) error {
			return b.Help(ctx, msg, helpLines(reg))
		}),
		Description: "Show available commands",
		Aliases:     []string{"/start"},
	})
}

func helpLines(reg *tg.Registry) []string {
	list := reg.ListCommands(true)
	lines := make([]string, 0, len(list))
	for _, c := range list {
		lines = append(lines, "/"+c.Text+" - "+c.Description)
	}
	return lines
}
