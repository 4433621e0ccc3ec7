package chat

import "encoding/json"

// Speaker is who a message is attributed to.
type Speaker string

const (
	You   Speaker = "You"
	Agent Speaker = "Agent"
)

// Placeholder is shown in the agent slot while a request is in flight.
const Placeholder = "Agent is typing..."

// DoneText replaces the reply after a confirmed action when the server did
// not send a reply of its own.
const DoneText = "Done"

// BlockKind labels a read-only block rendered under a message.
type BlockKind int

const (
	// PreviewBlock shows what a pending action would do.
	PreviewBlock BlockKind = iota
	// ResultBlock shows the outcome of an executed action.
	ResultBlock
	// ErrorBlock shows why executing a confirmed action failed.
	ErrorBlock
)

// Block is a detail block attached to a message.
type Block struct {
	Kind BlockKind
	// Body is the rendered text of the block.
	Body string
	// Raw is the JSON payload behind a result block; it is what gets persisted.
	Raw json.RawMessage
}

// ConfirmState tracks the "Confirm and Execute" control.
type ConfirmState int

const (
	ConfirmPending ConfirmState = iota
	ConfirmRunning
	ConfirmDone
	// ConfirmFailed is terminal; the control never retries.
	ConfirmFailed
)

// Label is the text the control shows in each state.
func (s ConfirmState) Label() string {
	switch s {
	case ConfirmPending:
		return "Confirm and Execute"
	case ConfirmRunning:
		return "Executing..."
	case ConfirmDone:
		return "Executed"
	case ConfirmFailed:
		return "Error"
	}
	return ""
}

// Confirmation is an action awaiting the user's approval.
type Confirmation struct {
	// Message is the user message that produced the action.
	Message string
	Action  json.RawMessage
	State   ConfirmState
}

// Message is one rendered chat line.
type Message struct {
	Speaker Speaker
	Text    string
	Loading bool
	Blocks  []Block
	Confirm *Confirmation
}

func (m Message) result() json.RawMessage {
	for _, b := range m.Blocks {
		if b.Kind == ResultBlock {
			return b.Raw
		}
	}
	return nil
}
