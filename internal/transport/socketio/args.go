package socketio

import "strings"

// payload returns the first event argument as an object. Clients send either
// {"value": x} objects or bare values; a bare value is wrapped under "value".
func payload(args []any) map[string]any {
	if len(args) == 0 || args[0] == nil {
		return nil
	}
	if m, ok := args[0].(map[string]any); ok {
		return m
	}
	return map[string]any{"value": args[0]}
}

// getIntFromMap extracts an integer from a JSON-decoded map. JSON numbers
// arrive as float64.
func getIntFromMap(m map[string]any, key string, defaultVal int) int {
	if m == nil {
		return defaultVal
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return defaultVal
}

func getInt64FromMap(m map[string]any, key string) (int64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

func getFloatFromMap(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func getBoolFromMap(m map[string]any, key string) (bool, bool) {
	if m == nil {
		return false, false
	}
	v, ok := m[key].(bool)
	return v, ok
}

func getStringFromMap(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// songID accepts both "songId" and the backend's "song_id".
func songID(m map[string]any) (int64, bool) {
	if id, ok := getInt64FromMap(m, "songId"); ok {
		return id, true
	}
	return getInt64FromMap(m, "song_id")
}
