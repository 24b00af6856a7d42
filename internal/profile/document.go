package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Document is a normalized profile, or a normalized partial profile when it
// came from a save payload. Only keys that were present are populated.
type Document struct {
	LastSavedStage *int
	Attributes     map[string]json.RawMessage
	Controls       map[string]ControlField
	Sections       map[string]map[string]ControlField
	Applications   map[string][]ApplicationRecord
}

// IsEmpty reports whether the document holds no keys at all.
func (d Document) IsEmpty() bool {
	return d.LastSavedStage == nil && len(d.Attributes) == 0 && len(d.Controls) == 0 &&
		len(d.Sections) == 0 && len(d.Applications) == 0
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := Document{}
	if d.LastSavedStage != nil {
		stage := *d.LastSavedStage
		out.LastSavedStage = &stage
	}
	if d.Attributes != nil {
		out.Attributes = make(map[string]json.RawMessage, len(d.Attributes))
		for k, v := range d.Attributes {
			out.Attributes[k] = slices.Clone(v)
		}
	}
	if d.Controls != nil {
		out.Controls = maps.Clone(d.Controls)
	}
	if d.Sections != nil {
		out.Sections = make(map[string]map[string]ControlField, len(d.Sections))
		for k, v := range d.Sections {
			out.Sections[k] = maps.Clone(v)
		}
	}
	if d.Applications != nil {
		out.Applications = make(map[string][]ApplicationRecord, len(d.Applications))
		for k, v := range d.Applications {
			out.Applications[k] = slices.Clone(v)
		}
	}
	return out
}

// Fields encodes the document back into its keyed wire layout, one entry per
// top-level key.
func (d Document) Fields() (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage,
		len(d.Attributes)+len(d.Controls)+len(d.Sections)+len(d.Applications)+1)
	for k, v := range d.Attributes {
		fields[k] = v
	}
	put := func(key string, value any) error {
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		fields[key] = b
		return nil
	}
	for k, v := range d.Controls {
		if err := put(k, v); err != nil {
			return nil, err
		}
	}
	for k, v := range d.Sections {
		if v == nil {
			v = map[string]ControlField{}
		}
		if err := put(k, v); err != nil {
			return nil, err
		}
	}
	for k, v := range d.Applications {
		if v == nil {
			v = []ApplicationRecord{}
		}
		if err := put(k, v); err != nil {
			return nil, err
		}
	}
	if d.LastSavedStage != nil {
		if err := put(KeyLastSavedStage, *d.LastSavedStage); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	fields, err := d.Fields()
	if err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// Normalizer applies the field catalog to whole documents.
type Normalizer struct {
	catalog *Catalog
}

func NewNormalizer(catalog *Catalog) *Normalizer {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Normalizer{catalog: catalog}
}

// Normalize runs every key of fields through the normalizer its catalog kind
// calls for. Each key is handled on its own, so a legacy value never affects
// its neighbours. The identity key is dropped.
func (n *Normalizer) Normalize(fields map[string]json.RawMessage, ids IDSource) Document {
	var doc Document
	for key, raw := range fields {
		switch n.catalog.Classify(key) {
		case KindIdentity:
			continue
		case KindStage:
			if stage, ok := parseStage(raw); ok {
				doc.LastSavedStage = &stage
			}
		case KindControl:
			if doc.Controls == nil {
				doc.Controls = map[string]ControlField{}
			}
			doc.Controls[key] = NormalizeControl(raw)
		case KindControlSection:
			if doc.Sections == nil {
				doc.Sections = map[string]map[string]ControlField{}
			}
			doc.Sections[key] = normalizeSection(raw)
		case KindApplicationGroup:
			if doc.Applications == nil {
				doc.Applications = map[string][]ApplicationRecord{}
			}
			doc.Applications[key] = NormalizeApplicationList(key, raw, ids)
		default:
			if doc.Attributes == nil {
				doc.Attributes = map[string]json.RawMessage{}
			}
			doc.Attributes[key] = compact(raw)
		}
	}
	return doc
}

func normalizeSection(raw json.RawMessage) map[string]ControlField {
	section := map[string]ControlField{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return section
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return section
	}
	for name, value := range entries {
		section[name] = NormalizeControl(value)
	}
	return section
}

// parseStage accepts integral numbers and numeric strings.
func parseStage(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		stage, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, false
		}
		return stage, true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || string(raw) == "null" {
		return 0, false
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return slices.Clone(raw)
	}
	return buf.Bytes()
}
