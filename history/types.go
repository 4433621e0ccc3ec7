package history

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Key names the single slot chat history lives in.
const Key = "aperture.chat.history"

// ErrCorrupt is returned by Load when the slot holds something that is not a
// list of entries.
var ErrCorrupt = errors.New("history: stored value is not a list of entries")

// Entry is one persisted chat line.
type Entry struct {
	Who     string          `json:"who"`
	Text    string          `json:"text"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Store persists the whole chat history as one value. Save overwrites
// whatever was stored before.
type Store interface {
	Load() ([]Entry, error)
	Save(entries []Entry) error
}

func encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(entries)
}

func decode(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	// "null" decodes without error but is not a list either.
	if entries == nil {
		return nil, ErrCorrupt
	}
	return entries, nil
}
