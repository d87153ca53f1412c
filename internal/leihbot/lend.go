package leihbot

import (
	"context"
	"log/slog"

	"github.com/m3rciful/leihbot/core/conversation"
	"github.com/m3rciful/leihbot/internal/loan"
)

// Lend starts the lending conversation: item, borrower, then store.
func (b *Bot) Lend(ctx context.Context, msg conversation.Message) error {
	return b.start(ctx, msg, b.lendChain)
}

func (b *Bot) newLendChain() *conversation.Chain {
	return conversation.MustChain("lend",
		conversation.Step{
			Name:     "item",
			Prompt:   conversation.Ask("What is being lent?"),
			Callback: b.lendItem,
		},
		conversation.Step{
			Name:     "borrower",
			Prompt:   conversation.Ask("Who is borrowing it?"),
			Callback: b.lendBorrower,
		},
		conversation.Step{
			Name:     "store",
			Callback: b.lendStore,
		},
	).OnStart(func(_ context.Context, run *conversation.Run, msg conversation.Message) error {
		b.drafts.put(run, loan.New(run.SessionKey, run.Initiator, b.now()))
		return nil
	}).OnFinish(func(_ context.Context, run *conversation.Run, _ error) {
		b.drafts.drop(run)
	})
}

func (b *Bot) lendItem(_ context.Context, run *conversation.Run, msg conversation.Message) error {
	if b.isCancel(msg.Text) {
		return conversation.Cancel("item")
	}
	l, err := b.drafts.get(run)
	if err != nil {
		return err
	}
	if err := l.SetItem(msg.Text); err != nil {
		return conversation.Fail(conversation.KindInvalidState, "item", err)
	}
	return nil
}

func (b *Bot) lendBorrower(_ context.Context, run *conversation.Run, msg conversation.Message) error {
	if b.isCancel(msg.Text) {
		return conversation.Cancel("borrower")
	}
	l, err := b.drafts.get(run)
	if err != nil {
		return err
	}
	if err := l.SetBorrower(msg.Text); err != nil {
		return conversation.Fail(conversation.KindInvalidState, "borrower", err)
	}
	return nil
}

func (b *Bot) lendStore(ctx context.Context, run *conversation.Run, msg conversation.Message) error {
	l, err := b.drafts.get(run)
	if err != nil {
		return err
	}
	id, err := b.store.Insert(ctx, l)
	if err != nil {
		return storeFailure("store", err)
	}
	b.logDebug(ctx, "loan.lent", msg, slog.Int64("loan_id", id))
	return b.confirm(ctx, msg, conversation.Reply{
		Text:     "Got it, the new loan was saved!\n" + loan.Render(*l, b.loc),
		Markdown: true,
	})
}
