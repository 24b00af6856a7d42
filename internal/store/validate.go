package store

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"strings"
)

// maxKeyDepth bounds how deep ValidateKeys walks nested objects.
const maxKeyDepth = 32

// ValidateKeys rejects documents whose keys could be read as query operators
// or field paths by a document database: keys starting with '$', keys
// containing '.', empty keys and keys with NUL bytes. Nested objects and
// objects inside arrays are checked too.
func ValidateKeys(fields map[string]json.RawMessage) error {
	return validateObject(fields, "", 0)
}

func validateObject(fields map[string]json.RawMessage, prefix string, depth int) error {
	if depth > maxKeyDepth {
		return &ValidationError{Key: lastSegment(prefix), Path: prefix, Reason: "is nested too deeply"}
	}
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		raw := fields[key]
		path := key
		if prefix != "" {
			path = prefix + "/" + key
		}
		if reason := unsafeKeyReason(key); reason != "" {
			return &ValidationError{Key: key, Path: path, Reason: reason}
		}
		if err := validateValue(raw, path, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(raw json.RawMessage, path string, depth int) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '{':
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil
		}
		return validateObject(nested, path, depth)
	case '[':
		if depth > maxKeyDepth {
			return &ValidationError{Key: lastSegment(path), Path: path, Reason: "is nested too deeply"}
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		for _, item := range items {
			if err := validateValue(item, path, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func unsafeKeyReason(key string) string {
	switch {
	case key == "":
		return "must not be empty"
	case strings.HasPrefix(key, "$"):
		return `must not start with "$"`
	case strings.Contains(key, "."):
		return `must not contain "."`
	case strings.ContainsRune(key, 0):
		return "must not contain NUL"
	}
	return ""
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
