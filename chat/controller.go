// Package chat holds the chat state machine: the ordered message list, the
// in-flight guard and the three ways a reply can be rendered. It does no I/O
// itself beyond the injected agent and history store, and must be driven
// from a single goroutine.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/kir-gadjello/aperture/agent"
	"github.com/kir-gadjello/aperture/history"
)

var (
	ErrEmptyMessage   = errors.New("chat: empty message")
	ErrBusy           = errors.New("chat: a request is already in flight")
	ErrNoConfirmation = errors.New("chat: no pending confirmation")
	ErrUndoDisabled   = errors.New("chat: undo is not enabled")
)

// Backend is the part of agent.Client the controller needs.
type Backend interface {
	Chat(ctx context.Context, message string) (agent.Reply, error)
	Confirm(ctx context.Context, message string, action json.RawMessage) (agent.Reply, error)
	Undo(ctx context.Context) (agent.UndoResult, error)
}

// Turn is one submitted message waiting for its reply.
type Turn struct {
	Message string
	// Index of the placeholder message that receives the reply.
	Index int
}

// ConfirmTurn is one confirmed action waiting for its execution result.
type ConfirmTurn struct {
	Message string
	Action  json.RawMessage
	Index   int
}

// Outcome tells the view what to animate after a reply was applied.
type Outcome struct {
	Index int
	// Reveal is the text to animate into message Index; empty means the text
	// is shown as-is.
	Reveal string
	// Persist is set when the turn succeeded and history should be saved once
	// the reveal finishes.
	Persist bool
	// KeepBlocks is how many of the message's blocks stay on screen while
	// Reveal plays. The rest appear after FinishReveal.
	KeepBlocks int
}

const (
	undoLabel        = "Undo"
	undoRunningLabel = "Undoing..."
)

// Controller owns the chat transcript.
type Controller struct {
	agent  Backend
	store  history.Store
	logger *log.Logger

	messages  []Message
	inFlight  bool
	revealing map[int]bool

	undoEnabled bool
	undoRunning bool
	status      string
}

// Option configures a Controller.
type Option func(*Controller)

// WithUndo wires the undo control.
func WithUndo() Option {
	return func(c *Controller) { c.undoEnabled = true }
}

// WithLogger sets where store warnings go. Defaults to log.Default().
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func New(a Backend, store history.Store, opts ...Option) *Controller {
	c := &Controller{agent: a, store: store, logger: log.Default(), revealing: make(map[int]bool)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Messages returns the transcript. Callers must not modify it.
func (c *Controller) Messages() []Message { return c.messages }

// InputEnabled reports whether the input may accept a new message. It stays
// off from Begin until the reply has been revealed.
func (c *Controller) InputEnabled() bool { return !c.inFlight && len(c.revealing) == 0 }

// Revealing reports whether the text of message index is still being revealed.
func (c *Controller) Revealing(index int) bool { return c.revealing[index] }

// FinishReveal marks the reveal started by an Outcome for index as done.
func (c *Controller) FinishReveal(index int) { delete(c.revealing, index) }

// Status is the latest one-line notice (undo results and the like).
func (c *Controller) Status() string { return c.status }

// UndoEnabled reports whether the undo control exists.
func (c *Controller) UndoEnabled() bool { return c.undoEnabled }

// UndoLabel is the current text of the undo control.
func (c *Controller) UndoLabel() string {
	if c.undoRunning {
		return undoRunningLabel
	}
	return undoLabel
}

// UndoRunning reports whether the undo control is disabled by a request.
func (c *Controller) UndoRunning() bool { return c.undoRunning }

// Restore replays saved history. Unreadable history is logged and ignored.
func (c *Controller) Restore() {
	if c.store == nil {
		return
	}
	entries, err := c.store.Load()
	if err != nil {
		c.logger.Printf("Warning: ignoring saved chat history: %v", err)
		return
	}
	for _, e := range entries {
		m := Message{Speaker: Speaker(e.Who), Text: e.Text}
		if len(e.Details) > 0 {
			m.Blocks = append(m.Blocks, Block{Kind: ResultBlock, Body: agent.Indent(e.Details), Raw: e.Details})
		}
		c.messages = append(c.messages, m)
	}
}

// Persist saves the transcript, replacing what was stored. Failures are
// logged only.
func (c *Controller) Persist() {
	if c.store == nil {
		return
	}
	if err := c.store.Save(c.Entries()); err != nil {
		c.logger.Printf("Warning: failed to save chat history: %v", err)
	}
}

// Entries projects the transcript into history entries, skipping
// placeholders that never got a reply.
func (c *Controller) Entries() []history.Entry {
	entries := make([]history.Entry, 0, len(c.messages))
	for _, m := range c.messages {
		if m.Loading {
			continue
		}
		entries = append(entries, history.Entry{
			Who:     string(m.Speaker),
			Text:    m.Text,
			Details: m.result(),
		})
	}
	return entries
}

// Begin validates input and appends the user message and the placeholder.
func (c *Controller) Begin(input string) (Turn, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}
	if !c.InputEnabled() {
		return Turn{}, ErrBusy
	}

	c.inFlight = true
	c.messages = append(c.messages,
		Message{Speaker: You, Text: text},
		Message{Speaker: Agent, Text: Placeholder, Loading: true},
	)
	return Turn{Message: text, Index: len(c.messages) - 1}, nil
}

// Send performs the request for turn. It does not touch controller state and
// may run on another goroutine.
func (c *Controller) Send(ctx context.Context, turn Turn) (agent.Reply, error) {
	return c.agent.Chat(ctx, turn.Message)
}

// Complete applies the reply (or error) for turn. The input is re-enabled on
// every path.
func (c *Controller) Complete(turn Turn, reply agent.Reply, err error) Outcome {
	c.inFlight = false

	m := &c.messages[turn.Index]
	m.Loading = false

	if err != nil {
		m.Text = "Error: " + err.Error()
		return Outcome{Index: turn.Index}
	}

	m.Text = reply.Text
	switch reply.Kind {
	case agent.NeedsConfirmation:
		m.Blocks = append(m.Blocks, Block{Kind: PreviewBlock, Body: agent.Indent(reply.Preview)})
		m.Confirm = &Confirmation{Message: turn.Message, Action: reply.Action, State: ConfirmPending}
	case agent.ActionResult:
		m.Blocks = append(m.Blocks, Block{Kind: ResultBlock, Body: agent.Indent(reply.Result), Raw: reply.Result})
	case agent.Plain:
	}

	if reply.Text != "" {
		c.revealing[turn.Index] = true
	}
	return Outcome{Index: turn.Index, Reveal: reply.Text, Persist: true}
}

// PendingConfirmation returns the index of the newest message whose action
// still waits for confirmation.
func (c *Controller) PendingConfirmation() (int, bool) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.revealing[i] {
			continue
		}
		if cf := c.messages[i].Confirm; cf != nil && cf.State == ConfirmPending {
			return i, true
		}
	}
	return 0, false
}

// BeginConfirm activates the confirm control of message index.
func (c *Controller) BeginConfirm(index int) (ConfirmTurn, error) {
	if index < 0 || index >= len(c.messages) {
		return ConfirmTurn{}, ErrNoConfirmation
	}
	cf := c.messages[index].Confirm
	if cf == nil || cf.State != ConfirmPending || c.revealing[index] {
		return ConfirmTurn{}, ErrNoConfirmation
	}
	cf.State = ConfirmRunning
	return ConfirmTurn{Message: cf.Message, Action: cf.Action, Index: index}, nil
}

// SendConfirm executes the confirmed action. Like Send it is free of state.
func (c *Controller) SendConfirm(ctx context.Context, turn ConfirmTurn) (agent.Reply, error) {
	return c.agent.Confirm(ctx, turn.Message, turn.Action)
}

// CompleteConfirm renders the execution result under the preview and swaps
// the message text for the execution reply.
func (c *Controller) CompleteConfirm(turn ConfirmTurn, reply agent.Reply, err error) Outcome {
	m := &c.messages[turn.Index]

	if err != nil {
		m.Confirm.State = ConfirmFailed
		m.Blocks = append(m.Blocks, Block{Kind: ErrorBlock, Body: "Error: " + err.Error()})
		return Outcome{Index: turn.Index}
	}

	m.Confirm.State = ConfirmDone
	m.Blocks = append(m.Blocks, Block{Kind: ResultBlock, Body: agent.Indent(reply.Result), Raw: reply.Result})

	text := reply.Text
	if text == "" {
		text = DoneText
	}
	m.Text = text
	c.revealing[turn.Index] = true
	return Outcome{Index: turn.Index, Reveal: text, Persist: true, KeepBlocks: len(m.Blocks) - 1}
}

// BeginUndo disables the undo control for the duration of a request.
func (c *Controller) BeginUndo() error {
	if !c.undoEnabled {
		return ErrUndoDisabled
	}
	if c.undoRunning {
		return ErrBusy
	}
	c.undoRunning = true
	return nil
}

func (c *Controller) SendUndo(ctx context.Context) (agent.UndoResult, error) {
	return c.agent.Undo(ctx)
}

// CompleteUndo records the undo outcome in Status, restores the control and
// reports whether the undo succeeded.
func (c *Controller) CompleteUndo(res agent.UndoResult, err error) bool {
	c.undoRunning = false

	switch {
	case err != nil:
		c.status = fmt.Sprintf("Undo failed: %v", err)
		return false
	case !res.OK:
		msg := res.Message
		if msg == "" {
			msg = "nothing to undo"
		}
		c.status = "Undo failed: " + msg
		return false
	case res.RestoredLabel() != "":
		c.status = "Undo complete: restored " + res.RestoredLabel()
	default:
		c.status = "Undo complete"
	}
	return true
}
