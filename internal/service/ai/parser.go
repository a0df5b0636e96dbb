package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedObject = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Reply is the outcome of scraping a JSON object out of model text. Raw
// always holds the original text so callers can fall back to it.
type Reply struct {
	Object map[string]any
	Raw    string
	OK     bool
}

// String returns the string value of key, or "".
func (r Reply) String(key string) string {
	if !r.OK {
		return ""
	}
	s, _ := r.Object[key].(string)
	return s
}

// ParseReply recovers the first JSON object in text. A fenced block wins;
// otherwise the first brace-balanced span is used. Each candidate is decoded
// as is and then once more with single quotes turned into double quotes.
func ParseReply(text string) Reply {
	reply := Reply{Raw: text}
	if m := fencedObject.FindStringSubmatch(text); m != nil {
		if obj, ok := decodeObject(m[1]); ok {
			reply.Object, reply.OK = obj, true
			return reply
		}
	}
	if span, ok := balancedSpan(text); ok {
		if obj, ok := decodeObject(span); ok {
			reply.Object, reply.OK = obj, true
		}
	}
	return reply
}

// balancedSpan returns text from the first '{' to the brace that closes it.
func balancedSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil && obj != nil {
		return obj, true
	}
	fixed := strings.ReplaceAll(s, "'", `"`)
	if err := json.Unmarshal([]byte(fixed), &obj); err == nil && obj != nil {
		return obj, true
	}
	return nil, false
}
