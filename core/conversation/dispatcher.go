package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/leihbot/core/logger"
)

const component = "conversation"

// Options configures a Dispatcher.
type Options struct {
	Replier Replier
	// PendingTTL bounds how long a registered step waits for an answer; 0 disables expiry.
	PendingTTL time.Duration

	// Fallback renders the reply for a message with no pending step.
	Fallback func(msg Message) Reply
	// Describe renders the reply for a run halted by err.
	Describe func(err error) Reply

	Now      func() time.Time
	NewRunID func() string
}

// Dispatcher is the single entry point for inbound conversational messages.
type Dispatcher struct {
	opts     Options
	registry *Registry
	locks    *sessionLocks

	// live holds the generation of the newest unfinished run per session.
	mu   sync.Mutex
	gen  uint64
	live map[string]uint64

	janitor atomic.Bool
}

// NewDispatcher builds a dispatcher, filling zero options with defaults.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	if opts.Fallback == nil {
		opts.Fallback = DefaultFallback
	}
	if opts.Describe == nil {
		opts.Describe = DefaultDescribe
	}
	return &Dispatcher{
		opts:     opts,
		registry: NewRegistry(opts.PendingTTL, opts.Now),
		locks:    newSessionLocks(),
		live:     make(map[string]uint64),
	}
}

// DefaultFallback answers messages that arrive outside a conversation.
func DefaultFallback(msg Message) Reply {
	return Reply{Text: "Unknown command: " + msg.Text}
}

// DefaultDescribe tells the user why a run stopped.
func DefaultDescribe(err error) Reply {
	text := "Something went wrong, the operation was cancelled."
	switch KindOf(err) {
	case KindCancelled:
		text = "Cancelled."
	case KindExpired:
		text = "This conversation has expired, please start again."
	case KindMalformedReference:
		text = "I could not recognise that entry, the operation was cancelled."
	case KindInvalidState:
		text = "That is not possible right now, the operation was cancelled."
	case KindPersistence:
		text = "Saving failed, the operation was cancelled."
	}
	return Reply{Text: text, RemoveKeyboard: true}
}

// Registry exposes the pending-step registry for inspection.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Start triggers chain against msg, usually a command. Calling Start from a
// callback of the same session is allowed and replaces the caller's run.
func (d *Dispatcher) Start(ctx context.Context, msg Message, chain *Chain) (*Run, error) {
	if chain == nil {
		return nil, fmt.Errorf("conversation: nil chain")
	}
	if msg.SessionKey == "" {
		return nil, fmt.Errorf("conversation: message without session key")
	}
	ctx, unlock := d.locks.acquire(ctx, msg.SessionKey)
	defer unlock()

	run := &Run{
		ID:         d.opts.NewRunID(),
		SessionKey: msg.SessionKey,
		Initiator:  msg.Sender,
		StartedAt:  d.opts.Now(),
		chain:      chain,
	}
	d.claim(run)
	ctx = logger.WithRunID(logger.WithSession(ctx, run.SessionKey), run.ID)
	logger.Debug(ctx, component, "run.started", runAttrs(run, nil)...)

	// A new run wins over a step still waiting in this session.
	if prev, ok := d.registry.remove(run.SessionKey); ok {
		d.finish(ctx, prev.run, ErrSuperseded)
	}

	if chain.onStart != nil {
		if err := chain.onStart(ctx, run, msg); err != nil {
			return run, d.halt(ctx, run, chain.First(), msg, err)
		}
	}
	return run, d.enter(ctx, run, chain.First(), msg)
}

// Handle consumes the session's pending step, if any, and advances its run.
// Errors returned are failures already reported to the user; cancellations,
// expiry and unknown input return nil.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) error {
	if msg.SessionKey == "" {
		return fmt.Errorf("conversation: message without session key")
	}
	ctx, unlock := d.locks.acquire(ctx, msg.SessionKey)
	defer unlock()

	p, state := d.registry.take(msg.SessionKey)
	switch state {
	case takeMissing:
		logger.Debug(ctx, component, "input.unknown",
			slog.String("session", msg.SessionKey),
			slog.String("payload", logger.SanitizeLimit(msg.Text, 64)),
		)
		return d.reply(ctx, msg, d.opts.Fallback(msg))
	case takeExpired:
		d.finish(ctx, p.run, ErrExpired)
		return d.reply(ctx, msg, d.opts.Describe(ErrExpired))
	}

	ctx = logger.WithRunID(logger.WithSession(ctx, msg.SessionKey), p.run.ID)
	if err := d.invoke(ctx, p.run, p.step, msg); err != nil {
		return d.halt(ctx, p.run, p.step, msg, err)
	}

	// The callback may have started another run for this session, which
	// may even have finished already.
	if !d.current(p.run) {
		d.finish(ctx, p.run, ErrSuperseded)
		return nil
	}
	if p.step.next == nil {
		d.finish(ctx, p.run, nil)
		return nil
	}
	return d.enter(ctx, p.run, p.step.next, msg)
}

// Cancel drops the session's pending step and finishes its run as cancelled.
// It reports whether a live step was pending; the user is only told when one was.
func (d *Dispatcher) Cancel(ctx context.Context, msg Message) (bool, error) {
	if msg.SessionKey == "" {
		return false, fmt.Errorf("conversation: message without session key")
	}
	ctx, unlock := d.locks.acquire(ctx, msg.SessionKey)
	defer unlock()

	p, state := d.registry.take(msg.SessionKey)
	switch state {
	case takeMissing:
		return false, nil
	case takeExpired:
		d.finish(ctx, p.run, ErrExpired)
		return false, nil
	}
	err := Cancel("command")
	d.finish(ctx, p.run, err)
	logger.Debug(ctx, component, "run.cancelled", runAttrs(p.run, p.step)...)
	return true, d.reply(ctx, msg, d.opts.Describe(err))
}

// Sweep evicts expired pending steps and finishes their runs.
func (d *Dispatcher) Sweep(ctx context.Context) int {
	expired := d.registry.sweep(time.Time{})
	for _, p := range expired {
		d.finish(ctx, p.run, ErrExpired)
	}
	if len(expired) > 0 {
		logger.Info(ctx, component, "registry.sweep",
			slog.Int("count", len(expired)),
			slog.Int("pending_count", d.registry.Len()),
		)
	}
	return len(expired)
}

// RunJanitor sweeps the registry every interval until ctx is done. Only one
// janitor runs per dispatcher; further calls return at once.
func (d *Dispatcher) RunJanitor(ctx context.Context, interval time.Duration) error {
	if !d.janitor.CompareAndSwap(false, true) {
		return nil
	}
	defer d.janitor.Store(false)
	if interval <= 0 || d.opts.PendingTTL <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Sweep(ctx)
		}
	}
}

// enter registers a non-terminal step and prompts, or runs a terminal step.
func (d *Dispatcher) enter(ctx context.Context, run *Run, step *Step, msg Message) error {
	if step.Terminal() {
		if err := d.invoke(ctx, run, step, msg); err != nil {
			return d.halt(ctx, run, step, msg, err)
		}
		d.finish(ctx, run, nil)
		return nil
	}

	prompt, err := step.resolvePrompt(ctx, run, msg)
	if err != nil {
		return d.halt(ctx, run, step, msg, err)
	}
	prev, replaced := d.registry.put(run.SessionKey, pending{run: run, step: step})
	if replaced && prev.run != run {
		d.finish(ctx, prev.run, ErrSuperseded)
	}
	logger.Debug(ctx, component, "step.registered", runAttrs(run, step)...)
	return d.reply(ctx, msg, prompt.reply())
}

func (d *Dispatcher) invoke(ctx context.Context, run *Run, step *Step, msg Message) error {
	start := time.Now()
	err := step.Callback(ctx, run, msg)
	attrs := append(runAttrs(run, step),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	)
	logger.Debug(ctx, component, "step.executed", attrs...)
	return err
}

func (d *Dispatcher) halt(ctx context.Context, run *Run, step *Step, msg Message, err error) error {
	d.finish(ctx, run, err)
	if rerr := d.reply(ctx, msg, d.opts.Describe(err)); rerr != nil {
		err = errors.Join(err, rerr)
	}
	if errors.Is(err, ErrCancelled) {
		return nil
	}
	attrs := append(runAttrs(run, step), slog.String("err", err.Error()))
	logger.Warn(ctx, component, "run.halted", attrs...)
	return err
}

// finish runs the chain's finish hook once per run.
func (d *Dispatcher) finish(ctx context.Context, run *Run, err error) {
	if run == nil {
		return
	}
	run.finishOnce.Do(func() {
		d.release(run)
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
			if outcome == "" {
				outcome = "fail"
			}
		}
		attrs := append(runAttrs(run, nil),
			slog.String("outcome", outcome),
			slog.Duration("duration", logger.RoundMS(d.opts.Now().Sub(run.StartedAt))),
		)
		logger.Debug(ctx, component, "run.finished", attrs...)
		if run.chain != nil && run.chain.onFinish != nil {
			run.chain.onFinish(ctx, run, err)
		}
	})
}

// claim makes run the newest run of its session.
func (d *Dispatcher) claim(run *Run) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	run.gen = d.gen
	d.live[run.SessionKey] = run.gen
}

// current reports whether no newer run was started in run's session.
func (d *Dispatcher) current(run *Run) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live[run.SessionKey] == run.gen
}

func (d *Dispatcher) release(run *Run) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.live[run.SessionKey] == run.gen {
		delete(d.live, run.SessionKey)
	}
}

func (d *Dispatcher) reply(ctx context.Context, msg Message, r Reply) error {
	if d.opts.Replier == nil || r.Text == "" {
		return nil
	}
	if err := d.opts.Replier.Reply(ctx, msg, r); err != nil {
		return fmt.Errorf("conversation: reply: %w", err)
	}
	return nil
}

func runAttrs(run *Run, step *Step) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("session", run.SessionKey),
		slog.String("run_id", run.ID),
	}
	if run.chain != nil {
		attrs = append(attrs, slog.String("chain", run.chain.name))
	}
	if step != nil {
		attrs = append(attrs, slog.String("step", step.Name))
	}
	return attrs
}
