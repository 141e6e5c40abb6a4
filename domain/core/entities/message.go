package entities

import (
	"encoding/json"
	"time"

	"treeview-ai/domain/core/valueobjects"
)

// Message is one transcript entry. RawReply carries the opaque assistant
// payload that the interpreter turns into operations.
type Message struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	IsUser    bool            `json:"is_user"`
	CreatedAt time.Time       `json:"created_at"`
	RawReply  json.RawMessage `json:"raw_reply,omitempty"`

	// Local-only transcript state.
	Pending   bool `json:"pending,omitempty"`
	Failed    bool `json:"failed,omitempty"`
	Synthetic bool `json:"synthetic,omitempty"`
}

// Session is the persisted record the view is mounted on.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Graph     Snapshot  `json:"graph"`
	UpdatedAt time.Time `json:"updated_at"`
	// Unplaced lists stored nodes that had no coordinates.
	Unplaced []valueobjects.NodeID `json:"unplaced,omitempty"`
}
