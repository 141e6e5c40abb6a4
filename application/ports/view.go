package ports

import (
	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/core/valueobjects"
)

// Frame is what the render layer draws.
type Frame struct {
	SessionID   string                `json:"session_id"`
	Version     int                   `json:"version"`
	Graph       entities.Snapshot     `json:"graph"`
	Highlighted []valueobjects.NodeID `json:"highlighted"`
}

// Level grades a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Notification is an outcome the user may be told about. How it is shown
// is up to the view.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// View receives everything the engine wants displayed. Implementations
// must not block.
type View interface {
	Render(frame Frame)
	FitView(sessionID string)
	Notify(sessionID string, n Notification)
	AppendMessage(sessionID string, m entities.Message)
}

// NopView discards everything.
type NopView struct{}

func (NopView) Render(Frame)                           {}
func (NopView) FitView(string)                         {}
func (NopView) Notify(string, Notification)            {}
func (NopView) AppendMessage(string, entities.Message) {}
