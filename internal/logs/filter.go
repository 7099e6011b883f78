package logs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldEquals matches lines whose key attribute equals value. JSON lines are
// decoded; console lines match on the key=value text.
func FieldEquals(key, value string) func(string) bool {
	console := key + "=" + value
	return func(line string) bool {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "{") {
			var entry map[string]any
			if err := json.Unmarshal([]byte(trimmed), &entry); err == nil {
				got, ok := entry[key]
				return ok && fmt.Sprint(got) == value
			}
		}
		return strings.Contains(line, console)
	}
}

// All combines matchers; a line must satisfy each one.
func All(matchers ...func(string) bool) func(string) bool {
	return func(line string) bool {
		for _, m := range matchers {
			if m != nil && !m(line) {
				return false
			}
		}
		return true
	}
}
