package profile

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// NormalizeApplicationList converts a raw application group into canonical
// records. Objects are read field by field, bare strings become a record
// carrying only a name, anything else is dropped. Records without an id, or
// whose id repeats an earlier record in the same list, receive one from ids.
// A non-array input yields an empty list.
func NormalizeApplicationList(group string, raw json.RawMessage, ids IDSource) []ApplicationRecord {
	records := []ApplicationRecord{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return records
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return records
	}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		record, ok := applicationFromRaw(item)
		if !ok {
			continue
		}
		if _, dup := seen[record.ID]; record.ID == "" || dup {
			record.ID = ids.RecordID(group, len(records), record)
		}
		seen[record.ID] = struct{}{}
		records = append(records, record)
	}
	return records
}

func applicationFromRaw(raw json.RawMessage) (ApplicationRecord, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ApplicationRecord{}, false
	}
	switch raw[0] {
	case '"':
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return ApplicationRecord{}, false
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return ApplicationRecord{}, false
		}
		return ApplicationRecord{Name: name}, true
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return ApplicationRecord{}, false
		}
		return applicationFromObject(fields), true
	default:
		return ApplicationRecord{}, false
	}
}

func applicationFromObject(fields map[string]json.RawMessage) ApplicationRecord {
	record := ApplicationRecord{
		ID:                    recordID(fields["id"]),
		ContainsSensitiveInfo: flagField(fields, "containsSensitiveInfo"),
		MFA:                   flagField(fields, "mfa"),
		BackedUp:              flagField(fields, "backedUp"),
		BYODAccess:            flagField(fields, "byodAccess"),
	}
	if s, ok := stringField(fields, "name"); ok {
		record.Name = strings.TrimSpace(s)
	}
	if s, ok := stringField(fields, "businessPriority"); ok {
		record.BusinessPriority = parsePriority(s)
	}
	if s, ok := stringField(fields, "offering"); ok {
		record.Offering = parseOffering(s)
	}
	return record
}

// recordID accepts string ids and the numeric ids some older clients sent.
func recordID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	return n.String()
}

// flagField reads a yes/no attribute sent either as a JSON bool or as a
// choice token.
func flagField(fields map[string]json.RawMessage, key string) Choice {
	raw, ok := fields[key]
	if !ok || string(bytes.TrimSpace(raw)) == "null" {
		return ChoiceUnset
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return ChoiceYes
		}
		return ChoiceNo
	}
	if s, ok := stringField(fields, key); ok {
		return parseChoice(s)
	}
	return ChoiceUnset
}
