package operations

import (
	"treeview-ai/domain/core/valueobjects"
	pkgerrors "treeview-ai/pkg/errors"
)

// Status is the result of applying one operation.
type Status string

const (
	StatusApplied  Status = "applied"
	StatusRejected Status = "rejected"
	StatusSkipped  Status = "skipped"
)

// Outcome reports what happened to one operation of a batch.
type Outcome struct {
	Kind    Kind                `json:"kind"`
	Status  Status              `json:"status"`
	NodeID  valueobjects.NodeID `json:"node_id,omitempty"`
	EdgeID  valueobjects.EdgeID `json:"edge_id,omitempty"`
	Message string              `json:"message,omitempty"`
	Err     error               `json:"-"`
}

// ErrorType exposes the error category for logs and metrics.
func (o Outcome) ErrorType() pkgerrors.ErrorType {
	if o.Err == nil {
		return ""
	}
	return pkgerrors.TypeOf(o.Err)
}

// BatchResult collects the outcomes of one batch in application order.
type BatchResult struct {
	Outcomes []Outcome `json:"outcomes"`
	// Silent batches mutate state without user-visible signalling.
	Silent bool `json:"silent"`
}

// Applied counts outcomes with StatusApplied.
func (r BatchResult) Applied() int {
	return r.count(StatusApplied)
}

// Rejected counts outcomes with StatusRejected.
func (r BatchResult) Rejected() int {
	return r.count(StatusRejected)
}

func (r BatchResult) count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Failures returns the rejected outcomes.
func (r BatchResult) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusRejected {
			out = append(out, o)
		}
	}
	return out
}
