package reconcile

import (
	"context"

	"treeview-ai/domain/core/entities"
)

// appendMessage adds m to the transcript, or replaces the entry with the
// same id, and forwards it to the view.
func (c *Controller) appendMessage(m entities.Message) {
	for i := range c.transcript {
		if c.transcript[i].ID == m.ID {
			c.transcript[i] = m
			c.view.AppendMessage(c.sessionID, m)
			return
		}
	}
	c.transcript = append(c.transcript, m)
	c.view.AppendMessage(c.sessionID, m)
}

func (c *Controller) updateMessage(id string, update func(*entities.Message)) {
	for i := range c.transcript {
		if c.transcript[i].ID == id {
			update(&c.transcript[i])
			c.view.AppendMessage(c.sessionID, c.transcript[i])
			return
		}
	}
}

// Transcript returns a copy of the chat transcript, optimistic and
// synthetic entries included.
func (c *Controller) Transcript(ctx context.Context) ([]entities.Message, error) {
	var out []entities.Message
	err := c.do(ctx, func() {
		out = append([]entities.Message(nil), c.transcript...)
	})
	return out, err
}
