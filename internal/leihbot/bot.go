// Package leihbot wires the lending conversations onto the conversation engine.
package leihbot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/leihbot/core/conversation"
	"github.com/m3rciful/leihbot/core/logger"
	"github.com/m3rciful/leihbot/internal/loan"
)

const component = "leihbot"

var errNoOpenLoans = errors.New("no open loans")

// Options configures a Bot.
type Options struct {
	Store   loan.Store
	Replier conversation.Replier

	// PendingTTL bounds how long a prompt waits for its answer; 0 disables expiry.
	PendingTTL time.Duration
	// Location renders timestamps; nil means UTC.
	Location *time.Location
	// CancelWords abort a conversation when sent as an answer. The first one is
	// offered on keyboards.
	CancelWords []string
	// ConfirmWord approves a return.
	ConfirmWord string

	Now func() time.Time
}

// Bot owns the lending conversations of all sessions.
type Bot struct {
	store   loan.Store
	replier conversation.Replier
	conv    *conversation.Dispatcher
	drafts  *drafts
	loc     *time.Location
	now     func() time.Time

	cancelWords []string
	confirmWord string

	lendChain   *conversation.Chain
	returnChain *conversation.Chain
	noteChain   *conversation.Chain
}

// New builds a Bot and its chains.
func New(opts Options) *Bot {
	b := &Bot{
		store:       opts.Store,
		replier:     opts.Replier,
		drafts:      newDrafts(),
		loc:         opts.Location,
		now:         opts.Now,
		confirmWord: strings.TrimSpace(opts.ConfirmWord),
	}
	if b.loc == nil {
		b.loc = time.UTC
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.confirmWord == "" {
		b.confirmWord = "yes"
	}
	for _, w := range opts.CancelWords {
		if w = strings.TrimSpace(w); w != "" {
			b.cancelWords = append(b.cancelWords, w)
		}
	}
	if len(b.cancelWords) == 0 {
		b.cancelWords = []string{"cancel"}
	}

	b.conv = conversation.NewDispatcher(conversation.Options{
		Replier:    opts.Replier,
		PendingTTL: opts.PendingTTL,
		Describe:   describe,
		Now:        b.now,
	})
	b.lendChain = b.newLendChain()
	b.returnChain = b.newReturnChain()
	b.noteChain = b.newNoteChain()
	return b
}

// Dispatcher exposes the conversation engine, e.g. for the janitor.
func (b *Bot) Dispatcher() *conversation.Dispatcher { return b.conv }

// Handle feeds a non-command message to the session's pending step.
func (b *Bot) Handle(ctx context.Context, msg conversation.Message) error {
	return b.conv.Handle(ctx, msg)
}

// Cancel aborts the session's conversation, if any.
func (b *Bot) Cancel(ctx context.Context, msg conversation.Message) error {
	cancelled, err := b.conv.Cancel(ctx, msg)
	if err != nil || cancelled {
		return err
	}
	return b.reply(ctx, msg, conversation.Reply{Text: "Nothing to cancel.", RemoveKeyboard: true})
}

// RunJanitor evicts abandoned prompts until ctx is done.
func (b *Bot) RunJanitor(ctx context.Context, interval time.Duration) error {
	return b.conv.RunJanitor(ctx, interval)
}

func (b *Bot) start(ctx context.Context, msg conversation.Message, chain *conversation.Chain) error {
	_, err := b.conv.Start(ctx, msg, chain)
	return err
}

func (b *Bot) reply(ctx context.Context, msg conversation.Message, r conversation.Reply) error {
	if b.replier == nil {
		return nil
	}
	return b.replier.Reply(ctx, msg, r)
}

// confirm reports a stored change. The change stands even when the reply
// cannot be delivered, so the failure is only logged.
func (b *Bot) confirm(ctx context.Context, msg conversation.Message, r conversation.Reply) error {
	if err := b.reply(ctx, msg, r); err != nil {
		logger.Warn(ctx, component, "reply.fail", logAttrs(msg, slog.String("err", err.Error()))...)
	}
	return nil
}

func (b *Bot) isCancel(text string) bool {
	for _, w := range b.cancelWords {
		if equalFold(text, w) {
			return true
		}
	}
	return false
}

func equalFold(answer, word string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), word)
}

// storeFailure classifies a store error for the conversation engine.
func storeFailure(op string, err error) error {
	switch {
	case errors.Is(err, loan.ErrAlreadyClosed), errors.Is(err, loan.ErrNotFound), errors.Is(err, loan.ErrIncomplete):
		return conversation.Fail(conversation.KindInvalidState, op, err)
	}
	return conversation.Fail(conversation.KindPersistence, op, err)
}

// describe tells the user why a run stopped, naming the lending cause when known.
func describe(err error) conversation.Reply {
	text := ""
	switch {
	case errors.Is(err, errNoOpenLoans):
		text = "No open loans."
	case errors.Is(err, loan.ErrAlreadyClosed):
		text = "This item has already been returned, nothing was changed."
	case errors.Is(err, loan.ErrNotFound):
		text = "There is no such loan, nothing was changed."
	case errors.Is(err, loan.ErrMalformedLabel):
		text = "Please pick one of the offered entries. The operation was cancelled."
	case errors.Is(err, loan.ErrIncomplete):
		text = "That answer was empty. The operation was cancelled."
	}
	if text == "" {
		return conversation.DefaultDescribe(err)
	}
	return conversation.Reply{Text: text, RemoveKeyboard: true}
}

func logAttrs(msg conversation.Message, extra ...slog.Attr) []slog.Attr {
	return append([]slog.Attr{slog.String("session", msg.SessionKey)}, extra...)
}

func (b *Bot) logDebug(ctx context.Context, event string, msg conversation.Message, extra ...slog.Attr) {
	logger.Debug(ctx, component, event, logAttrs(msg, extra...)...)
}
