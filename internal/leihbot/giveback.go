package leihbot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/leihbot/core/conversation"
	"github.com/m3rciful/leihbot/internal/loan"
)

// Return starts the return conversation: pick an open loan, confirm, close.
func (b *Bot) Return(ctx context.Context, msg conversation.Message) error {
	return b.start(ctx, msg, b.returnChain)
}

// Note starts the conversation that attaches a note to an open loan.
func (b *Bot) Note(ctx context.Context, msg conversation.Message) error {
	return b.start(ctx, msg, b.noteChain)
}

func (b *Bot) newReturnChain() *conversation.Chain {
	return conversation.MustChain("return",
		b.selectStep("Which item is being returned?"),
		conversation.Step{
			Name:       "confirm",
			PromptFunc: b.confirmPrompt,
			Callback:   b.confirmReturn,
		},
		conversation.Step{
			Name:     "close",
			Callback: b.closeLoan,
		},
	).OnFinish(func(_ context.Context, run *conversation.Run, _ error) {
		b.drafts.drop(run)
	})
}

func (b *Bot) newNoteChain() *conversation.Chain {
	return conversation.MustChain("note",
		b.selectStep("Which loan gets a note?"),
		conversation.Step{
			Name:     "text",
			Prompt:   conversation.Ask("Send the note."),
			Callback: b.noteText,
		},
		conversation.Step{
			Name:     "save",
			Callback: b.saveNote,
		},
	).OnFinish(func(_ context.Context, run *conversation.Run, _ error) {
		b.drafts.drop(run)
	})
}

// selectStep offers the open loans of the session and loads the chosen one as
// the run's draft.
func (b *Bot) selectStep(question string) conversation.Step {
	return conversation.Step{
		Name: "select",
		PromptFunc: func(ctx context.Context, _ *conversation.Run, msg conversation.Message) (conversation.Prompt, error) {
			open, err := b.store.Select(ctx, msg.SessionKey, loan.FilterOpen)
			if err != nil {
				return conversation.Prompt{}, storeFailure("select", err)
			}
			if len(open) == 0 {
				return conversation.Prompt{}, conversation.Fail(conversation.KindInvalidState, "select", errNoOpenLoans)
			}
			options := make([]string, 0, len(open)+1)
			for _, l := range open {
				options = append(options, l.Label())
			}
			options = append(options, b.cancelWords[0])
			return conversation.Choose(question, options...), nil
		},
		Callback: b.selectLoan,
	}
}

func (b *Bot) selectLoan(ctx context.Context, run *conversation.Run, msg conversation.Message) error {
	if b.isCancel(msg.Text) {
		return conversation.Cancel("select")
	}
	id, err := loan.ParseLabel(msg.Text)
	if err != nil {
		return conversation.Fail(conversation.KindMalformedReference, "select", err)
	}
	l, err := b.store.Get(ctx, run.SessionKey, id)
	if err != nil {
		return storeFailure("select", err)
	}
	if !loan.FilterOpen.Match(*l) {
		return conversation.Fail(conversation.KindInvalidState, "select", fmt.Errorf("%w: #%d", loan.ErrAlreadyClosed, id))
	}
	b.drafts.put(run, l)
	return nil
}

func (b *Bot) confirmPrompt(_ context.Context, run *conversation.Run, _ conversation.Message) (conversation.Prompt, error) {
	l, err := b.drafts.get(run)
	if err != nil {
		return conversation.Prompt{}, err
	}
	return conversation.Choose(
		fmt.Sprintf("Has %s been returned? Answer %q to confirm.", l.Label(), b.confirmWord),
		b.confirmWord, b.cancelWords[0],
	), nil
}

func (b *Bot) confirmReturn(_ context.Context, _ *conversation.Run, msg conversation.Message) error {
	switch {
	case b.isCancel(msg.Text):
		return conversation.Cancel("confirm")
	case !equalFold(msg.Text, b.confirmWord):
		return conversation.Failf(conversation.KindMalformedReference, "confirm", "unexpected answer %q", msg.Text)
	}
	return nil
}

func (b *Bot) closeLoan(ctx context.Context, run *conversation.Run, msg conversation.Message) error {
	l, err := b.drafts.get(run)
	if err != nil {
		return err
	}
	if err := l.Close(b.now(), msg.Sender); err != nil {
		return storeFailure("close", err)
	}
	// The store only closes rows that are still open.
	closed, err := b.store.Close(ctx, run.SessionKey, l.ID, *l.EndedAt, l.Acceptor)
	if err != nil {
		return storeFailure("close", err)
	}
	b.logDebug(ctx, "loan.returned", msg, slog.Int64("loan_id", closed.ID))
	return b.confirm(ctx, msg, conversation.Reply{
		Text:           loan.Render(*closed, b.loc),
		Markdown:       true,
		RemoveKeyboard: true,
	})
}

func (b *Bot) noteText(_ context.Context, run *conversation.Run, msg conversation.Message) error {
	if b.isCancel(msg.Text) {
		return conversation.Cancel("text")
	}
	l, err := b.drafts.get(run)
	if err != nil {
		return err
	}
	l.SetNotes(msg.Text)
	return nil
}

func (b *Bot) saveNote(ctx context.Context, run *conversation.Run, msg conversation.Message) error {
	l, err := b.drafts.get(run)
	if err != nil {
		return err
	}
	saved, err := b.store.SetNotes(ctx, run.SessionKey, l.ID, l.Notes)
	if err != nil {
		return storeFailure("note", err)
	}
	b.logDebug(ctx, "loan.noted", msg, slog.Int64("loan_id", saved.ID))
	return b.confirm(ctx, msg, conversation.Reply{
		Text:     "Note saved.\n" + loan.Render(*saved, b.loc),
		Markdown: true,
	})
}
