package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind selects how a reply is rendered.
type Kind int

const (
	// Plain replies carry only text.
	Plain Kind = iota
	// ActionResult replies report an action the server already executed.
	ActionResult
	// NeedsConfirmation replies carry a proposed action that runs only after the
	// user confirms it.
	NeedsConfirmation
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case ActionResult:
		return "action_result"
	case NeedsConfirmation:
		return "needs_confirmation"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Reply is a decoded /agent/chat response. Exactly one of the payload fields
// is meaningful for a given Kind: Result for ActionResult, Action and Preview
// for NeedsConfirmation.
type Reply struct {
	Kind    Kind
	Text    string
	Result  json.RawMessage
	Action  json.RawMessage
	Preview json.RawMessage
}

// wireReply matches the JSON sent by the server.
type wireReply struct {
	Reply                string          `json:"reply"`
	ActionResult         json.RawMessage `json:"action_result,omitempty"`
	RequiresConfirmation bool            `json:"requires_confirmation,omitempty"`
	RawAction            json.RawMessage `json:"raw_action,omitempty"`
	Preview              json.RawMessage `json:"preview,omitempty"`
}

// DecodeReply parses a response body and classifies it. Confirmation wins over
// an executed result; requires_confirmation without raw_action is ignored.
func DecodeReply(data []byte) (Reply, error) {
	var w wireReply
	if err := json.Unmarshal(data, &w); err != nil {
		return Reply{}, fmt.Errorf("decode reply: %w", err)
	}

	r := Reply{Text: w.Reply}
	switch {
	case w.RequiresConfirmation && present(w.RawAction):
		r.Kind = NeedsConfirmation
		r.Action = w.RawAction
		if present(w.Preview) {
			r.Preview = w.Preview
		}
	case Truthy(w.ActionResult):
		r.Kind = ActionResult
		r.Result = w.ActionResult
	default:
		r.Kind = Plain
	}
	return r, nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Truthy reports whether raw holds a value other than null, false, 0 or "".
func Truthy(raw json.RawMessage) bool {
	if !present(raw) {
		return false
	}
	switch string(bytes.TrimSpace(raw)) {
	case "false", "0", `""`:
		return false
	}
	return true
}

// Indent pretty-prints a JSON value with two-space indentation. Invalid input
// is returned unchanged.
func Indent(raw json.RawMessage) string {
	if !present(raw) {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// UndoResult is the /agent/undo response.
type UndoResult struct {
	OK       bool            `json:"ok"`
	Restored json.RawMessage `json:"restored,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// RestoredLabel describes what the undo restored, or "" when the server did
// not say.
func (u UndoResult) RestoredLabel() string {
	if !present(u.Restored) {
		return ""
	}
	var s string
	if err := json.Unmarshal(u.Restored, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, u.Restored); err != nil {
		return string(u.Restored)
	}
	return buf.String()
}
