package interpreter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	pkgerrors "treeview-ai/pkg/errors"
)

// maxDecodes bounds how many times a string payload is run through a JSON
// decoder. Two covers double-encoded replies.
const maxDecodes = 2

// Decoded is the successful result of the decode chain.
type Decoded struct {
	Object map[string]any
	// Decodes is the number of string decodes that were needed.
	Decodes int
}

// Decode turns a raw reply into a JSON object. Structured values are used
// as is; strings go through at most two JSON decodes. Anything else yields a
// Malformed error and the caller treats the reply as plain text.
func Decode(raw any) (Decoded, error) {
	value, err := structured(raw)
	if err != nil {
		return Decoded{}, err
	}

	for decodes := 0; ; decodes++ {
		switch v := value.(type) {
		case map[string]any:
			return Decoded{Object: v, Decodes: decodes}, nil
		case string:
			if decodes == maxDecodes {
				return Decoded{}, pkgerrors.NewMalformed(fmt.Sprintf("still a string after %d decodes", maxDecodes), nil)
			}
			next, err := decodeString(v)
			if err != nil {
				return Decoded{}, pkgerrors.NewMalformed("reply is not JSON", err)
			}
			value = next
		default:
			return Decoded{}, pkgerrors.NewMalformed(fmt.Sprintf("reply decodes to %T, want an object", v), nil)
		}
	}
}

// structured normalizes the Go-side shapes a reply can arrive in. Raw JSON
// bytes are transport encoding and are unwrapped here without counting
// against the decode budget.
func structured(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, pkgerrors.NewMalformed("empty reply", nil)
	case map[string]any, string:
		return v, nil
	case json.RawMessage:
		return unmarshalBytes(v)
	case []byte:
		return unmarshalBytes(v)
	default:
		// Typed structs and maps are round-tripped into the generic form.
		b, err := json.Marshal(v)
		if err != nil {
			return nil, pkgerrors.NewMalformed("reply is not serializable", err)
		}
		return unmarshalBytes(b)
	}
}

func unmarshalBytes(b []byte) (any, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, pkgerrors.NewMalformed("empty reply", nil)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		// Not JSON at all: hand it to the chain as text.
		return string(b), nil
	}
	if out == nil {
		return nil, pkgerrors.NewMalformed("reply is null", nil)
	}
	return out, nil
}

func decodeString(s string) (any, error) {
	s = stripFence(strings.TrimSpace(s))
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// stripFence removes a surrounding markdown code fence such as ```json.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	body := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[\"") {
		body = body[nl+1:]
	}
	return strings.TrimSpace(body)
}

// decodeNested decodes a field that may itself be string-encoded JSON,
// within the same bound.
func decodeNested(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	if _, ok := v.(string); !ok {
		return nil, false
	}
	d, err := Decode(v)
	if err != nil {
		return nil, false
	}
	return d.Object, true
}
