package leihbot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/leihbot/core/conversation"
	"github.com/m3rciful/leihbot/internal/loan"
)

// List replies with the session's loans matching f. Listing never touches a
// pending conversation.
func (b *Bot) List(ctx context.Context, msg conversation.Message, f loan.Filter) error {
	loans, err := b.store.Select(ctx, msg.SessionKey, f)
	if err != nil {
		if rerr := b.reply(ctx, msg, conversation.Reply{Text: "Loading loans failed, please try again later."}); rerr != nil {
			return fmt.Errorf("list %s: %w (reply: %v)", f, err, rerr)
		}
		return fmt.Errorf("list %s: %w", f, err)
	}
	b.logDebug(ctx, "loan.listed", msg,
		slog.String("filter", f.String()),
		slog.Int("count", len(loans)),
	)
	return b.reply(ctx, msg, conversation.Reply{
		Text:     loan.RenderList(f, loans, b.loc),
		Markdown: true,
	})
}

// Pending reports the sessions that currently wait for an answer.
func (b *Bot) Pending(ctx context.Context, msg conversation.Message) error {
	sessions := b.conv.Registry().Sessions()
	text := fmt.Sprintf("Pending conversations: %d", len(sessions))
	if len(sessions) > 0 {
		lines := make([]string, 0, len(sessions))
		for _, s := range sessions {
			line := s
			if run, step, ok := b.conv.Registry().Pending(s); ok {
				line = fmt.Sprintf("%s: %s/%s since %s", s, run.Chain().Name(), step.Name, run.StartedAt.In(b.loc).Format("02.01.2006 15:04"))
			}
			lines = append(lines, line)
		}
		text += "\n" + strings.Join(lines, "\n")
	}
	return b.reply(ctx, msg, conversation.Reply{Text: text})
}

// Help lists the available commands.
func (b *Bot) Help(ctx context.Context, msg conversation.Message, commands []string) error {
	text := "I keep track of lent items in this chat."
	if len(commands) > 0 {
		text += "\n\n" + strings.Join(commands, "\n")
	}
	return b.reply(ctx, msg, conversation.Reply{Text: text})
}
