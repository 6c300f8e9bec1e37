package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/forgo/marquee/api/internal/database"
)

// Thrown messages used inside transactions; matched back to sentinels.
const (
	throwSoldOut      = "tier sold out"
	throwStateChanged = "record state changed"
)

// recordID qualifies a bare id with its table ("abc" -> "event:abc").
// Ids that already name a different table are rejected.
func recordID(table, id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	prefix := table + ":"
	if strings.HasPrefix(id, prefix) {
		return id, len(id) > len(prefix)
	}
	if strings.Contains(id, ":") {
		return "", false
	}
	return prefix + id, true
}

// mapThrown converts transaction THROW messages back into sentinels
func mapThrown(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, throwSoldOut):
		return database.ErrCapacityExceeded
	case strings.Contains(msg, throwStateChanged):
		return database.ErrStateChanged
	}
	return err
}

// convertSurrealID renders a SurrealDB record id as "table:id"
func convertSurrealID(id interface{}) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case models.RecordID:
		return fmt.Sprintf("%s:%v", v.Table, v.ID)
	case *models.RecordID:
		if v != nil {
			return fmt.Sprintf("%s:%v", v.Table, v.ID)
		}
		return ""
	case map[string]interface{}:
		// {"tb": "user", "id": "xyz"} or {"id": {...}} after destructuring
		tb, _ := v["tb"].(string)
		if tb == "" {
			tb, _ = v["Table"].(string)
		}
		idPart := ""
		if raw, ok := v["id"]; ok {
			idPart = convertSurrealID(raw)
		} else if raw, ok := v["ID"]; ok {
			idPart = fmt.Sprintf("%v", raw)
		}
		if tb != "" && idPart != "" && !strings.HasPrefix(idPart, tb+":") {
			return tb + ":" + idPart
		}
		return idPart
	}
	return fmt.Sprintf("%v", id)
}

// resultRecords returns the records of the statement at index idx.
// A negative index counts from the end.
func resultRecords(results []interface{}, idx int) []map[string]interface{} {
	if idx < 0 {
		idx = len(results) + idx
	}
	if idx < 0 || idx >= len(results) {
		return nil
	}

	var raw interface{} = results[idx]
	if resp, ok := raw.(map[string]interface{}); ok {
		if _, hasStatus := resp["status"]; hasStatus {
			raw = resp["result"]
		}
	}

	switch v := raw.(type) {
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]interface{}:
		return []map[string]interface{}{v}
	}
	return nil
}

// asRecord converts a QueryOne result into a map
func asRecord(result interface{}) (map[string]interface{}, error) {
	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}
	return data, nil
}

// toFloat converts any SurrealDB numeric value to float64
func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint64:
		return float64(n)
	case uint32:
		return float64(n)
	}
	return 0
}

// getString extracts a string value from a map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// getStringPtr extracts an optional string value from a map
func getStringPtr(m map[string]interface{}, key string) *string {
	if v, ok := m[key].(string); ok && v != "" {
		return &v
	}
	return nil
}

// getInt extracts an int value from a map
func getInt(m map[string]interface{}, key string) int {
	return int(toFloat(m[key]))
}

// getFloat extracts a float value from a map
func getFloat(m map[string]interface{}, key string) float64 {
	return toFloat(m[key])
}

// getBool extracts a bool value from a map
func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

// parseTime parses time from the formats the driver may return
func parseTime(v interface{}) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case models.CustomDateTime:
		tt := t.Time
		return &tt
	case *models.CustomDateTime:
		if t != nil {
			tt := t.Time
			return &tt
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return &parsed
		}
	}
	return nil
}

// getTime extracts an optional time value from a map
func getTime(m map[string]interface{}, key string) *time.Time {
	return parseTime(m[key])
}

// getTimeValue extracts a time value, zero when absent
func getTimeValue(m map[string]interface{}, key string) time.Time {
	if t := getTime(m, key); t != nil {
		return t.UTC()
	}
	return time.Time{}
}

// getStringSlice extracts a string slice from a map
func getStringSlice(m map[string]interface{}, key string) []string {
	v, ok := m[key].([]interface{})
	if !ok {
		return []string{}
	}
	result := make([]string, 0, len(v))
	for _, item := range v {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

// getIDSlice extracts an array of record links as "table:id" strings
func getIDSlice(m map[string]interface{}, key string) []string {
	v, ok := m[key].([]interface{})
	if !ok {
		return []string{}
	}
	result := make([]string, 0, len(v))
	for _, item := range v {
		if id := convertSurrealID(item); id != "" {
			result = append(result, id)
		}
	}
	return result
}

// getMap extracts a nested object from a map
func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

// getMapSlice extracts an array of objects from a map
func getMapSlice(m map[string]interface{}, key string) []map[string]interface{} {
	v, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	result := make([]map[string]interface{}, 0, len(v))
	for _, item := range v {
		if obj, ok := item.(map[string]interface{}); ok {
			result = append(result, obj)
		}
	}
	return result
}

// rfc3339 formats a time for <datetime> casts
func rfc3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// notFound normalizes the "no rows" result of QueryOne
func notFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}
