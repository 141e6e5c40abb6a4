// Package interpreter turns assistant reply payloads into normalized graph
// operations. Replies come from an external service and may be malformed,
// double-encoded or only partially conforming.
package interpreter

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"treeview-ai/domain/operations"
	"treeview-ai/domain/services"
	"treeview-ai/pkg/utils"
)

// Dropped records an operations entry that could not be admitted.
type Dropped struct {
	Index  int    `json:"index"`
	Action string `json:"action,omitempty"`
	Reason string `json:"reason"`
}

// Batch is the interpretation of one reply.
type Batch struct {
	Operations []operations.Operation `json:"operations"`
	Dropped    []Dropped              `json:"dropped,omitempty"`
	// Authoritative is set when the reply carried a full tree_data graph.
	Authoritative bool `json:"authoritative"`
	// Text is the human-readable part of the reply, if any.
	Text string `json:"text,omitempty"`
}

// Empty reports whether the batch carries no operations.
func (b Batch) Empty() bool {
	return len(b.Operations) == 0
}

// Interpreter parses assistant replies.
type Interpreter struct {
	logger *zap.Logger
}

// New creates an interpreter.
func New(logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{logger: logger}
}

// Parse interprets a raw reply. A Malformed error means the reply is plain
// text: the returned batch then has no operations and Text holds the reply.
func (i *Interpreter) Parse(raw any) (Batch, error) {
	decoded, err := Decode(raw)
	if err != nil {
		return Batch{Text: plainText(raw)}, err
	}

	payload := locate(decoded.Object)
	batch := Batch{Text: replyText(decoded.Object)}

	if td, ok := lookup(payload, "tree_data"); ok {
		if snap, unplaced, ok := DecodeSnapshot(td); ok {
			batch.Operations = []operations.Operation{operations.ReplaceAll{Snapshot: snap, Unplaced: unplaced}}
			batch.Authoritative = true
			return batch, nil
		}
	}

	if raw, ok := lookup(payload, "operations"); ok {
		i.parseOperations(raw, &batch)
	} else if action, ok := firstString(payload, actionKeys); ok {
		// A bare {"action": ...} object is a single operation.
		if _, known := actionAliases[strings.ToLower(action)]; known {
			i.parseOperations([]any{payload}, &batch)
		}
	}

	for _, key := range highlightKeys {
		v, ok := lookup(payload, key)
		if !ok {
			continue
		}
		if refs := stringList(v); len(refs) > 0 {
			batch.Operations = append(batch.Operations, operations.Highlight{Refs: refs})
		}
		break
	}

	if decoded.Decodes > 1 {
		i.logger.Debug("reply was double-encoded", zap.Int("decodes", decoded.Decodes))
	}
	return batch, nil
}

func (i *Interpreter) parseOperations(raw any, batch *Batch) {
	entries, ok := raw.([]any)
	if !ok {
		// A single operation object is accepted in place of an array.
		if m, isMap := decodeNested(raw); isMap {
			entries = []any{m}
		} else {
			batch.Dropped = append(batch.Dropped, Dropped{Index: -1, Reason: "operations is not an array"})
			return
		}
	}

	for idx, entry := range entries {
		m, ok := decodeNested(entry)
		if !ok {
			batch.Dropped = append(batch.Dropped, Dropped{Index: idx, Reason: "entry is not an object"})
			continue
		}
		action, _ := firstString(m, actionKeys)
		op, err := toOperation(action, m)
		if err == nil {
			err = utils.ValidateStruct(op)
		}
		if err != nil {
			i.logger.Info("dropping assistant operation",
				zap.Int("index", idx),
				zap.String("action", action),
				zap.Error(err))
			batch.Dropped = append(batch.Dropped, Dropped{Index: idx, Action: action, Reason: err.Error()})
			continue
		}
		batch.Operations = append(batch.Operations, op)
	}
}

func toOperation(action string, m map[string]any) (operations.Operation, error) {
	canonical, ok := actionAliases[strings.ToLower(strings.TrimSpace(action))]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", action)
	}

	switch canonical {
	case "insert":
		op := operations.Insert{Side: firstSide(m, sideKeys)}
		op.Value, _ = firstString(m, valueKeys)
		op.ParentRef, op.ParentRefKind = firstRef(m, parentKeys)
		if pos, ok := position(m); ok {
			op.Position = pos
		}
		return op, nil
	case "delete":
		op := operations.Delete{}
		op.Ref, op.RefKind = firstRef(m, deleteRefKeys)
		return op, nil
	case "connect":
		op := operations.Connect{Side: firstSide(m, sideKeys)}
		op.SourceRef, op.SourceRefKind = firstRef(m, sourceKeys)
		op.TargetRef, op.TargetRefKind = firstRef(m, targetKeys)
		return op, nil
	case "highlight":
		return operations.Highlight{Refs: refList(m, refListKeys, refOneKeys)}, nil
	case "traverse":
		op := operations.Traverse{Order: string(services.InOrder)}
		if raw, ok := firstString(m, orderKeys); ok {
			order, err := services.ParseTraversalOrder(raw)
			if err != nil {
				return nil, err
			}
			op.Order = string(order)
		}
		op.RootRef, op.RootRefKind = firstRef(m, rootKeys)
		return op, nil
	case "search":
		op := operations.Search{}
		op.Value, _ = firstString(m, valueKeys)
		return op, nil
	default:
		return operations.Clear{}, nil
	}
}

// locate finds the object holding operation fields: the top level, or one
// level down inside a response/action/data envelope.
func locate(top map[string]any) map[string]any {
	if carriesOperations(top) {
		return top
	}
	for _, key := range envelopeKeys {
		v, ok := lookup(top, key)
		if !ok {
			continue
		}
		if inner, ok := decodeNested(v); ok && carriesOperations(inner) {
			return inner
		}
	}
	return top
}

func carriesOperations(m map[string]any) bool {
	for _, key := range append([]string{"tree_data", "operations"}, highlightKeys...) {
		if _, ok := lookup(m, key); ok {
			return true
		}
	}
	return false
}
