// Package ports declares the collaborators the session view engine talks to.
package ports

import (
	"context"

	"treeview-ai/domain/core/entities"
)

// SessionBridge loads and saves the persisted graph of a session.
// GetSession fails with NotFound for unknown ids and Transient otherwise.
type SessionBridge interface {
	GetSession(ctx context.Context, id string) (entities.Session, error)
	SaveSession(ctx context.Context, id string, graph entities.Snapshot) (entities.Session, error)
}

// ChatBridge exchanges messages with the assistant.
type ChatBridge interface {
	FetchHistory(ctx context.Context, sessionID string) ([]entities.Message, error)
	SendMessage(ctx context.Context, sessionID, text string, graph entities.Snapshot) (entities.Message, error)
}
