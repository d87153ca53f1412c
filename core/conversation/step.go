package conversation

import (
	"context"
	"sync"
	"time"
)

// Callback consumes the message that answers a step. A nil error lets the run
// continue with the successor; any error stops the run.
type Callback func(ctx context.Context, run *Run, msg Message) error

// PromptFunc builds a prompt at registration time.
type PromptFunc func(ctx context.Context, run *Run, msg Message) (Prompt, error)

// Prompt is the question emitted when a step is registered.
type Prompt struct {
	Text       string
	Options    []string
	ForceReply bool
	Markdown   bool
}

// Ask returns a free-text prompt that forces a reply.
func Ask(text string) Prompt {
	return Prompt{Text: text, ForceReply: true}
}

// Choose returns a prompt offering the given reply labels.
func Choose(text string, options ...string) Prompt {
	return Prompt{Text: text, Options: options}
}

func (p Prompt) reply() Reply {
	return Reply{
		Text:       p.Text,
		Options:    append([]string(nil), p.Options...),
		ForceReply: p.ForceReply && len(p.Options) == 0,
		Markdown:   p.Markdown,
	}
}

// Step is one unit of a chain. Steps are plain values until NewChain links them.
type Step struct {
	Name string
	// Prompt is emitted when the step is registered. PromptFunc, when set, takes precedence.
	Prompt     Prompt
	PromptFunc PromptFunc
	Callback   Callback

	next  *Step
	chain *Chain
	index int
}

// Terminal reports whether the step has no successor.
func (s *Step) Terminal() bool { return s.next == nil }

// Next returns the successor, or nil for a terminal step.
func (s *Step) Next() *Step { return s.next }

// Chain returns the chain owning the step.
func (s *Step) Chain() *Chain { return s.chain }

// Index returns the position of the step in its chain.
func (s *Step) Index() int { return s.index }

func (s *Step) resolvePrompt(ctx context.Context, run *Run, msg Message) (Prompt, error) {
	if s.PromptFunc != nil {
		return s.PromptFunc(ctx, run, msg)
	}
	return s.Prompt, nil
}

// Run is one triggered execution of a chain for a session.
type Run struct {
	ID         string
	SessionKey string
	// Initiator is the display name of whoever started the run.
	Initiator string
	StartedAt time.Time

	chain *Chain
	// gen orders the runs started by one dispatcher.
	gen        uint64
	finishOnce sync.Once
}

// Chain returns the chain being executed.
func (r *Run) Chain() *Chain { return r.chain }
