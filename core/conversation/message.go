package conversation

import "context"

// Message is one inbound chat message as seen by the dispatcher.
type Message struct {
	// SessionKey identifies the conversing chat or thread.
	SessionKey string
	// Sender is the display name of the author.
	Sender    string
	Text      string
	MessageID int
	// Target carries the transport handle a Replier needs to answer.
	Target any
}

// Reply describes an outbound message.
type Reply struct {
	Text string
	// Options are suggested reply labels, rendered as a one-time keyboard.
	Options []string
	// ForceReply asks the client to treat the next message as an answer.
	ForceReply     bool
	RemoveKeyboard bool
	Markdown       bool
}

// Replier sends replies back through the transport.
type Replier interface {
	Reply(ctx context.Context, msg Message, r Reply) error
}

// ReplierFunc adapts a function to the Replier interface.
type ReplierFunc func(ctx context.Context, msg Message, r Reply) error

// Reply calls f.
func (f ReplierFunc) Reply(ctx context.Context, msg Message, r Reply) error {
	return f(ctx, msg, r)
}
