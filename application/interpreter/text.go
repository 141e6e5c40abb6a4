package interpreter

import (
	"encoding/json"
	"strings"
)

// Text extracts the human-readable part of a reply: a known text field of a
// JSON object, or the reply itself when it is not JSON.
func Text(raw any) string {
	d, err := Decode(raw)
	if err != nil {
		return plainText(raw)
	}
	return replyText(d.Object)
}

func replyText(m map[string]any) string {
	for _, key := range textKeys {
		v, ok := lookup(m, key)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || looksLikeJSON(s) {
			continue
		}
		return s
	}
	return ""
}

func plainText(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.RawMessage:
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return strings.TrimSpace(s)
		}
		return strings.TrimSpace(string(v))
	case []byte:
		return strings.TrimSpace(string(v))
	default:
		return ""
	}
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") || strings.HasPrefix(s, "\"{")
}
