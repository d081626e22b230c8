package service

import (
	"encoding/json"
	"strings"
)

var redactedKeys = map[string]struct{}{
	"token":            {},
	"password":         {},
	"secret":           {},
	"key":              {},
	"connectionstring": {},
}

const redactedPlaceholder = "[REDACTED]"

// RedactPayload masks sensitive values in a JSON payload before it is
// rendered to a caller. Keys are matched case-insensitively at any nesting
// depth. Redaction is applied on read only, never when persisting. A
// payload that is not valid JSON passes through unchanged: redaction must
// never be the reason a response fails to render.
func RedactPayload(payload string) string {
	if payload == "" {
		return payload
	}

	var value interface{}
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return payload
	}

	out, err := json.Marshal(redactValue(value))
	if err != nil {
		return payload
	}
	return string(out)
}

func redactValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, nested := range v {
			if _, sensitive := redactedKeys[strings.ToLower(key)]; sensitive {
				v[key] = redactedPlaceholder
				continue
			}
			v[key] = redactValue(nested)
		}
		return v
	case []interface{}:
		for i, nested := range v {
			v[i] = redactValue(nested)
		}
		return v
	default:
		return value
	}
}
