package reconcile

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"treeview-ai/application/ports"
	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/operations"
	pkgerrors "treeview-ai/pkg/errors"
)

// isSilent decides whether operations originating at origin may signal.
// Replayed history never signals; anything older than the latest user
// command boundary is stale.
func (c *Controller) isSilent(origin time.Time, replay bool) bool {
	return replay || origin.Before(c.boundary)
}

// signal surfaces the outcome of a non-silent batch: a synthetic assistant
// note per slot conflict and one notification for the batch. Direct user
// edits only report failures.
func (c *Controller) signal(result operations.BatchResult, bc batchContext) {
	if result.Silent || len(result.Outcomes) == 0 {
		return
	}
	fromAssistant := bc.source != SourceUser

	for _, o := range result.Failures() {
		if fromAssistant && pkgerrors.IsSlotOccupied(o.Err) {
			c.appendMessage(entities.Message{
				ID:        uuid.NewString(),
				Text:      o.Message,
				CreatedAt: c.clock.Now(),
				Synthetic: true,
			})
		}
	}

	structural := 0
	for _, o := range result.Outcomes {
		if o.Status == operations.StatusApplied && o.Kind.Structural() {
			structural++
		}
	}

	switch failures := result.Failures(); {
	case len(failures) == 1:
		c.notify(ports.LevelError, failures[0].Message)
	case len(failures) > 1:
		c.notify(ports.LevelError, fmt.Sprintf("%d operations could not be applied", len(failures)))
	case structural > 0 && fromAssistant:
		c.notify(ports.LevelSuccess, fmt.Sprintf("Tree updated (%d %s)", structural, plural(structural, "change", "changes")))
	}
}

func (c *Controller) notify(level ports.Level, msg string) {
	c.view.Notify(c.sessionID, ports.Notification{Level: level, Message: msg})
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
