package reconcile

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"treeview-ai/application/interpreter"
	"treeview-ai/application/ports"
	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/operations"
	pkgerrors "treeview-ai/pkg/errors"
)

// CommandResult is what a submitted command produced.
type CommandResult struct {
	UserMessage entities.Message       `json:"user_message"`
	Reply       entities.Message       `json:"reply"`
	Batch       operations.BatchResult `json:"batch"`
	Dropped     []interpreter.Dropped  `json:"dropped,omitempty"`
	// Discarded is set when the reply arrived for a session that is no
	// longer mounted.
	Discarded bool `json:"discarded"`
	// PlainText is set when the reply carried no interpretable payload.
	PlainText bool `json:"plain_text"`
}

// SubmitCommand sends user text to the assistant together with the current
// graph and applies the reply. Only one command may be outstanding; a
// second one fails with Conflict until the first reply has been handled.
func (c *Controller) SubmitCommand(ctx context.Context, text string) (CommandResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return CommandResult{}, pkgerrors.NewValidation("message is required")
	}

	var (
		token     uint64
		sessionID string
		issuedAt  time.Time
		snap      entities.Snapshot
		userMsg   entities.Message
		gateErr   error
	)
	if err := c.do(ctx, func() {
		switch {
		case c.sessionID == "":
			gateErr = pkgerrors.NewValidation("no session mounted")
			return
		case c.inFlight != 0:
			gateErr = pkgerrors.NewConflict("a command is already in flight")
			return
		}
		c.sendSeq++
		token = c.sendSeq
		c.inFlight = token
		issuedAt = c.clock.Now()
		c.boundary = issuedAt
		sessionID = c.sessionID
		snap = c.graph.Snapshot()
		userMsg = entities.Message{
			ID:        uuid.NewString(),
			Text:      text,
			IsUser:    true,
			CreatedAt: issuedAt,
			Pending:   true,
		}
		c.appendMessage(userMsg)
	}); err != nil {
		return CommandResult{}, err
	}
	if gateErr != nil {
		return CommandResult{}, gateErr
	}

	ctx, span := c.tracer.Start(ctx, "reconcile.submit_command")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	reply, sendErr := c.chat.SendMessage(ctx, sessionID, text, snap)

	result := CommandResult{UserMessage: userMsg, Reply: reply}
	// The reply must be handled even if ctx was cancelled while waiting.
	err := c.do(context.WithoutCancel(ctx), func() {
		if c.inFlight == token {
			c.inFlight = 0
		}
		if c.sessionID != sessionID {
			result.Discarded = true
			c.logger.Info("discarding reply for unmounted session",
				zap.String("reply_session_id", sessionID),
				zap.String("session_id", c.sessionID))
			return
		}
		silent := c.isSilent(issuedAt, false)

		if sendErr != nil {
			c.updateMessage(userMsg.ID, func(m *entities.Message) {
				m.Pending = false
				m.Failed = true
			})
			if !silent {
				c.notify(ports.LevelError, "Failed to send message")
			}
			return
		}
		c.updateMessage(userMsg.ID, func(m *entities.Message) { m.Pending = false })
		result.UserMessage.Pending = false
		c.receive(ctx, reply, issuedAt, SourceCommand, &result)
	})
	if err != nil {
		return result, err
	}
	if sendErr != nil {
		c.logger.Warn("failed to send command",
			zap.String("session_id", sessionID),
			zap.Error(sendErr))
		if !pkgerrors.IsTransient(sendErr) {
			sendErr = pkgerrors.NewTransient("send message", sendErr)
		}
		return result, sendErr
	}
	return result, nil
}

// DeliverReply applies an assistant reply that arrived outside a command,
// for example pushed by the server. Replies for another session are
// discarded; stale ones apply silently.
func (c *Controller) DeliverReply(ctx context.Context, sessionID string, reply entities.Message) (CommandResult, error) {
	result := CommandResult{Reply: reply}
	err := c.do(ctx, func() {
		if c.sessionID != sessionID {
			result.Discarded = true
			return
		}
		origin := reply.CreatedAt
		if origin.IsZero() {
			origin = c.clock.Now()
		}
		c.receive(ctx, reply, origin, SourcePush, &result)
	})
	return result, err
}

// receive records a reply in the transcript and applies its operations.
// Must run on the loop.
func (c *Controller) receive(ctx context.Context, reply entities.Message, origin time.Time, source string, result *CommandResult) {
	silent := c.isSilent(origin, false)

	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = c.clock.Now()
	}

	raw := any(reply.RawReply)
	if len(reply.RawReply) == 0 {
		raw = reply.Text
	}
	batch, err := c.interp.Parse(raw)
	if reply.Text == "" {
		reply.Text = batch.Text
	}
	c.appendMessage(reply)
	result.Reply = reply
	result.Dropped = batch.Dropped

	if err != nil {
		result.PlainText = true
		if !pkgerrors.IsMalformed(err) {
			c.logger.Warn("failed to interpret reply", zap.Error(err))
		}
		c.metrics.RecordParseFailure()
		return
	}
	if batch.Empty() {
		return
	}
	result.Batch = c.applyBatch(ctx, batch.Operations, batchContext{source: source, silent: silent})
}
