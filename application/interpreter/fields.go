package interpreter

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"treeview-ai/domain/core/valueobjects"
)

// Ordered candidate keys per semantic slot. The first key present wins.
var (
	actionKeys    = []string{"action", "op", "operation", "type"}
	valueKeys     = []string{"value", "label", "name", "text", "data"}
	parentKeys    = []string{"parent_id", "parent", "node_id", "target"}
	sideKeys      = []string{"side", "direction", "location", "where", "pos"}
	deleteRefKeys = []string{"node_id", "id", "ref", "value", "label", "target", "node"}
	sourceKeys    = []string{"source", "source_id", "from", "parent_id", "parent"}
	targetKeys    = []string{"target", "target_id", "to", "child", "child_id", "node_id"}
	refListKeys   = []string{"nodes", "node_ids", "ids", "refs", "values", "highlights"}
	refOneKeys    = []string{"node_id", "id", "value", "label", "node"}
	orderKeys     = []string{"traversal_type", "order", "traversal", "mode", "kind"}
	rootKeys      = []string{"root", "root_id", "start", "from", "node_id"}

	highlightKeys = []string{"highlights", "highlighted_nodes"}
	envelopeKeys  = []string{"response", "action", "data"}
	textKeys      = []string{"message", "text", "explanation", "reply", "response", "content"}

	nodeIDKeys    = []string{"id", "node_id", "key"}
	nodeLabelKeys = []string{"label", "value", "name", "text", "title"}
	edgeFromKeys  = []string{"source", "from", "parent", "parent_id", "source_id"}
	edgeToKeys    = []string{"target", "to", "child", "child_id", "target_id"}
)

// actionAliases maps raw action names, lower-cased, to canonical ones.
var actionAliases = map[string]string{
	"insert":    "insert",
	"add":       "insert",
	"create":    "insert",
	"delete":    "delete",
	"remove":    "delete",
	"connect":   "connect",
	"link":      "connect",
	"highlight": "highlight",
	"traverse":  "traverse",
	"traversal": "traverse",
	"search":    "search",
	"find":      "search",
	"clear":     "clear",
	"reset":     "clear",
}

// lookup finds key in m, exactly first and then ignoring case.
func lookup(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// firstString returns the first candidate key holding a non-empty scalar.
func firstString(m map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		v, ok := lookup(m, k)
		if !ok {
			continue
		}
		if s, ok := scalar(v); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// firstRef is firstString for node references. A reference found under an
// id key ("id", "node_id", "parent_id", ...) resolves id-first; any other
// key names a value and resolves label-first.
func firstRef(m map[string]any, keys []string) (string, valueobjects.RefKind) {
	for _, k := range keys {
		v, ok := lookup(m, k)
		if !ok {
			continue
		}
		if s, ok := scalar(v); ok && s != "" {
			return s, refKindOf(k)
		}
	}
	return "", ""
}

func refKindOf(key string) valueobjects.RefKind {
	if key == "id" || strings.HasSuffix(key, "_id") {
		return valueobjects.RefID
	}
	return valueobjects.RefLabel
}

// firstSide returns the side named by the first candidate key whose value
// mentions left or right.
func firstSide(m map[string]any, keys []string) valueobjects.Side {
	for _, k := range keys {
		v, ok := lookup(m, k)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if side := valueobjects.ParseSide(s); side != valueobjects.SideNone {
			return side
		}
	}
	return valueobjects.SideNone
}

// scalar stringifies strings, numbers and booleans. Whole floats lose the
// fractional part so 5 and 5.0 both become "5".
func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// position reads {position:{x,y}} or flat x/y keys.
func position(m map[string]any) (*valueobjects.Position, bool) {
	src := m
	if v, ok := lookup(m, "position"); ok {
		nested, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		src = nested
	}
	xv, okX := lookup(src, "x")
	yv, okY := lookup(src, "y")
	if !okX || !okY {
		return nil, false
	}
	x, okX := number(xv)
	y, okY := number(yv)
	if !okX || !okY {
		return nil, false
	}
	p, err := valueobjects.NewPosition(x, y)
	if err != nil {
		return nil, false
	}
	return &p, true
}

// refList reads a list of references from the first candidate key that
// holds an array, or a single reference.
func refList(m map[string]any, listKeys, oneKeys []string) []string {
	for _, k := range listKeys {
		v, ok := lookup(m, k)
		if !ok {
			continue
		}
		if refs := stringList(v); len(refs) > 0 {
			return refs
		}
	}
	if one, ok := firstString(m, oneKeys); ok {
		return []string{one}
	}
	return nil
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if s, ok := scalar(v); ok && s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			if s, ok := firstString(obj, nodeIDKeys); ok {
				out = append(out, s)
			}
			continue
		}
		if s, ok := scalar(item); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
