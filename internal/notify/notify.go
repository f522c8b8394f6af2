// Package notify bridges the system to the host's chat platform. Adapters
// hide each platform's wire format behind a small send/listen surface.
package notify

import "context"

// Action kinds a host can take on an actionable message.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Action is a structured host decision on a message we sent with buttons.
// Context carries the text of the message the action was taken on.
type Action struct {
	Kind    string
	Context string
}

// Outbound is a message to the host channel. WithActions asks the adapter to
// attach approve/reject controls where the platform supports them.
type Outbound struct {
	Text        string
	WithActions bool
}

// Inbound is a host message or action. ReplyToText carries the text of the
// message being replied to when the platform exposes structural replies;
// otherwise correlation falls back to scanning Text itself.
type Inbound struct {
	Text        string
	ReplyToText string
	Action      *Action
}

// Adapter is a chat platform connection.
type Adapter interface {
	// Connect establishes the session.
	Connect(ctx context.Context) error

	// Listen returns the inbound stream. The channel closes when the
	// context is cancelled or the connection is lost.
	Listen(ctx context.Context) (<-chan Inbound, error)

	// Send posts a message to the host channel and returns a platform
	// message reference.
	Send(ctx context.Context, out Outbound) (string, error)

	Close() error
}
