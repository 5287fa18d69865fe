package platform

import "context"

// ControlStyle selects the visual style of an interactive control.
type ControlStyle int

const (
	ControlPrimary ControlStyle = iota
	ControlSuccess
	ControlDanger
	ControlSecondary
)

// Control is an actionable button attached to a message.
type Control struct {
	ID    string
	Label string
	Style ControlStyle
}

// Field is one name/value pair rendered inside a status embed.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is the platform-neutral shape of an outbound message. Title and
// Fields render as a rich embed when present; Controls attach as buttons.
type Message struct {
	Content  string
	Title    string
	Body     string
	Color    int
	Fields   []Field
	Controls []Control
}

// Client is the narrow surface the ticket engine consumes from the chat
// platform. Implementations must be safe for concurrent use.
type Client interface {
	// CreateThread opens a new thread under the channel and returns its id.
	CreateThread(ctx context.Context, channelID, title string) (string, error)

	// AddThreadMember adds the user to the thread.
	AddThreadMember(ctx context.Context, threadID, userID string) error

	// SendMessage posts a message and returns its id.
	SendMessage(ctx context.Context, channelID string, msg Message) (string, error)

	// EditMessage replaces a message's content, embed and controls.
	EditMessage(ctx context.Context, channelID, messageID string, msg Message) error

	// PinMessage pins the message in its channel.
	PinMessage(ctx context.Context, channelID, messageID string) error

	// DisableControls marks every actionable control on the message
	// disabled, leaving content and embed untouched.
	DisableControls(ctx context.Context, channelID, messageID string) error

	// LockThread locks and archives the thread.
	LockThread(ctx context.Context, threadID string) error
}
