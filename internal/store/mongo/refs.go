package mongo

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// normalizeRef reduces a legacy reference field to a plain identifier.
// Stored references come as a bare id, a "collection/id" path, or a
// reference object carrying id, path or a nested delegate.
func normalizeRef(v interface{}) string {
	switch ref := v.(type) {
	case nil:
		return ""
	case string:
		return lastSegment(ref)
	case primitive.ObjectID:
		return ref.Hex()
	case primitive.D:
		return normalizeRef(ref.Map())
	case primitive.M:
		return refFromMap(ref)
	case map[string]interface{}:
		return refFromMap(ref)
	default:
		return ""
	}
}

func refFromMap(m map[string]interface{}) string {
	for _, key := range []string{"id", "Id", "_id"} {
		if id := normalizeRef(m[key]); id != "" {
			return id
		}
	}
	if path, ok := m["path"].(string); ok {
		return lastSegment(path)
	}
	for _, key := range []string{"_delegate", "_key"} {
		if nested, ok := m[key]; ok {
			if id := normalizeRef(nested); id != "" {
				return id
			}
		}
	}
	if segments, ok := m["segments"].(primitive.A); ok && len(segments) > 0 {
		return normalizeRef(segments[len(segments)-1])
	}
	return ""
}

func lastSegment(path string) string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
