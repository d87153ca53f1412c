package conversation

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidChain is returned by NewChain for malformed step lists.
var ErrInvalidChain = errors.New("conversation: invalid chain")

// StartFunc runs before the first step of a run is entered.
type StartFunc func(ctx context.Context, run *Run, msg Message) error

// FinishFunc runs exactly once per run. err is nil for a run that completed
// its terminal step.
type FinishFunc func(ctx context.Context, run *Run, err error)

// Chain is an immutable, linked sequence of steps.
type Chain struct {
	name     string
	steps    []*Step
	onStart  StartFunc
	onFinish FinishFunc
}

// NewChain copies and links the steps: steps[i] is followed by steps[i+1],
// the last step is terminal.
func NewChain(name string, steps ...Step) (*Chain, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: %s: no steps", ErrInvalidChain, name)
	}
	c := &Chain{name: name, steps: make([]*Step, len(steps))}
	for i := range steps {
		s := steps[i]
		if s.Callback == nil {
			return nil, fmt.Errorf("%w: %s: step %d (%s) has no callback", ErrInvalidChain, name, i, s.Name)
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("step%d", i)
		}
		s.chain = c
		s.index = i
		s.next = nil
		c.steps[i] = &s
	}
	for i := 0; i < len(c.steps)-1; i++ {
		s := c.steps[i]
		if s.PromptFunc == nil && s.Prompt.Text == "" {
			return nil, fmt.Errorf("%w: %s: step %d (%s) needs a prompt", ErrInvalidChain, name, i, s.Name)
		}
		s.next = c.steps[i+1]
	}
	return c, nil
}

// MustChain is NewChain for statically defined chains.
func MustChain(name string, steps ...Step) *Chain {
	c, err := NewChain(name, steps...)
	if err != nil {
		panic(err)
	}
	return c
}

// OnStart sets the hook run when a new run begins.
func (c *Chain) OnStart(fn StartFunc) *Chain {
	c.onStart = fn
	return c
}

// OnFinish sets the hook run when a run ends for any reason.
func (c *Chain) OnFinish(fn FinishFunc) *Chain {
	c.onFinish = fn
	return c
}

// Name returns the chain name.
func (c *Chain) Name() string { return c.name }

// Len returns the number of steps.
func (c *Chain) Len() int { return len(c.steps) }

// Step returns the i-th step.
func (c *Chain) Step(i int) *Step { return c.steps[i] }

// First returns the step entered when the chain is triggered.
func (c *Chain) First() *Step { return c.steps[0] }
