package reconcile

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"treeview-ai/application/ports"
	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/operations"
	pkgerrors "treeview-ai/pkg/errors"
)

// MountResult summarizes a session load.
type MountResult struct {
	Session  entities.Session `json:"session"`
	Messages int              `json:"messages"`
	Replayed int              `json:"replayed"`
	// HistoryError is set when the graph loaded but the transcript did not.
	HistoryError string `json:"history_error,omitempty"`
}

// Mount attaches the view to a session: state from any previous session is
// discarded, then the persisted graph and chat history are fetched
// concurrently. The graph is applied first; assistant replies newer than
// the snapshot are replayed silently on top.
//
// A session error leaves the view empty. A history error still applies the
// graph and is returned to the caller.
func (c *Controller) Mount(ctx context.Context, sessionID string) (MountResult, error) {
	if sessionID == "" {
		return MountResult{}, pkgerrors.NewValidation("session id is required")
	}

	var gen uint64
	if err := c.do(ctx, func() {
		c.resetState(sessionID)
		gen = c.mountGen
		c.render()
	}); err != nil {
		return MountResult{}, err
	}

	ctx, span := c.tracer.Start(ctx, "reconcile.mount")
	defer span.End()

	var (
		session    entities.Session
		history    []entities.Message
		historyErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		session, err = c.sessions.GetSession(gctx, sessionID)
		return err
	})
	g.Go(func() error {
		// History failure must not cancel the session fetch.
		history, historyErr = c.chat.FetchHistory(ctx, sessionID)
		return nil
	})
	if err := g.Wait(); err != nil {
		c.logger.Warn("failed to load session",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return MountResult{}, err
	}

	var result MountResult
	var stale bool
	err := c.do(ctx, func() {
		if c.mountGen != gen {
			stale = true
			return
		}
		result = c.hydrate(ctx, session, history, historyErr == nil)
	})
	if err != nil {
		return MountResult{}, err
	}
	if stale {
		return MountResult{}, pkgerrors.NewConflict("session view was remounted while loading")
	}
	if historyErr != nil {
		c.logger.Warn("failed to load chat history",
			zap.String("session_id", sessionID),
			zap.Error(historyErr))
		result.HistoryError = pkgerrors.Message(historyErr)
		return result, historyErr
	}
	return result, nil
}

func (c *Controller) hydrate(ctx context.Context, session entities.Session, history []entities.Message, replay bool) MountResult {
	result := MountResult{Session: session}

	c.applyBatch(ctx, []operations.Operation{operations.ReplaceAll{Snapshot: session.Graph, Unplaced: session.Unplaced}}, batchContext{source: SourceHistory, silent: true})

	if !replay {
		return result
	}
	for _, m := range history {
		c.transcript = append(c.transcript, m)
		c.view.AppendMessage(c.sessionID, m)
		result.Messages++

		if m.IsUser || len(m.RawReply) == 0 {
			continue
		}
		if !session.UpdatedAt.IsZero() && !m.CreatedAt.After(session.UpdatedAt) {
			continue
		}
		batch, err := c.interp.Parse(m.RawReply)
		if err != nil {
			c.metrics.RecordParseFailure()
			continue
		}
		if batch.Empty() {
			continue
		}
		c.applyBatch(ctx, batch.Operations, batchContext{source: SourceHistory, silent: c.isSilent(m.CreatedAt, true)})
		result.Replayed++
	}
	c.logger.Info("session mounted",
		zap.String("session_id", c.sessionID),
		zap.Int("nodes", c.graph.NodeCount()),
		zap.Int("messages", result.Messages),
		zap.Int("replayed", result.Replayed))
	return result
}

// Save persists the current graph. Failures are Transient and leave the
// in-memory graph untouched.
func (c *Controller) Save(ctx context.Context) (entities.Session, error) {
	var (
		sessionID string
		snap      entities.Snapshot
	)
	if err := c.do(ctx, func() {
		sessionID = c.sessionID
		snap = c.graph.Snapshot()
	}); err != nil {
		return entities.Session{}, err
	}
	if sessionID == "" {
		return entities.Session{}, pkgerrors.NewValidation("no session mounted")
	}

	ctx, span := c.tracer.Start(ctx, "reconcile.save")
	defer span.End()

	saved, saveErr := c.sessions.SaveSession(ctx, sessionID, snap)

	err := c.do(ctx, func() {
		if c.sessionID != sessionID {
			return
		}
		if saveErr != nil {
			c.notify(ports.LevelError, "Failed to save tree")
			return
		}
		c.notify(ports.LevelSuccess, "Tree saved")
	})
	if saveErr != nil {
		c.logger.Warn("failed to save session",
			zap.String("session_id", sessionID),
			zap.Error(saveErr))
		if !pkgerrors.IsTransient(saveErr) {
			saveErr = pkgerrors.NewTransient("save session", saveErr)
		}
		return entities.Session{}, saveErr
	}
	return saved, err
}
