package profile

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// vendorSentinel prefixes the older client encoding of a Yes answer that
// names a vendor, e.g. "Vendor:ATT".
const vendorSentinel = "Vendor:"

var choiceTokens = map[string]Choice{
	"yes":   ChoiceYes,
	"y":     ChoiceYes,
	"true":  ChoiceYes,
	"no":    ChoiceNo,
	"n":     ChoiceNo,
	"false": ChoiceNo,
}

var priorityTokens = map[string]Priority{
	"critical": PriorityCritical,
	"high":     PriorityHigh,
	"medium":   PriorityMedium,
	"med":      PriorityMedium,
	"low":      PriorityLow,
}

var offeringTokens = map[string]Offering{
	"saas":       OfferingSaaS,
	"onpremise":  OfferingOnPremise,
	"onpremises": OfferingOnPremise,
	"onprem":     OfferingOnPremise,
	"hybrid":     OfferingHybrid,
}

// NormalizeControl converts any accepted wire shape of a control field into
// its canonical form:
//
//   - "Yes" / "No" become a bare choice,
//   - "Vendor:<name>" becomes a Yes naming the vendor,
//   - an object keeps every recognised sub-field and defaults the rest.
//
// Everything else (null, "", numbers, arrays, unknown tokens) yields the
// zero ControlField. The function never fails and is idempotent.
func NormalizeControl(raw json.RawMessage) ControlField {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ControlField{}
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ControlField{}
		}
		return controlFromString(s)
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return ControlField{}
		}
		return controlFromObject(fields)
	default:
		return ControlField{}
	}
}

func controlFromString(s string) ControlField {
	if vendor, ok := cutVendorSentinel(s); ok {
		return ControlField{Choice: ChoiceYes, Vendor: vendor}
	}
	return ControlField{Choice: parseChoice(s)}
}

func controlFromObject(fields map[string]json.RawMessage) ControlField {
	var out ControlField
	vendorSet := false
	if s, ok := stringField(fields, "vendor"); ok {
		out.Vendor = cleanVendor(s)
		vendorSet = true
	}
	if s, ok := stringField(fields, "choice"); ok {
		if vendor, isSentinel := cutVendorSentinel(s); isSentinel {
			out.Choice = ChoiceYes
			if !vendorSet {
				out.Vendor = vendor
			}
		} else {
			out.Choice = parseChoice(s)
		}
	}
	if s, ok := stringField(fields, "businessPriority"); ok {
		out.BusinessPriority = parsePriority(s)
	}
	if s, ok := stringField(fields, "offering"); ok {
		out.Offering = parseOffering(s)
	}
	return out
}

func cutVendorSentinel(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(vendorSentinel) || !strings.EqualFold(s[:len(vendorSentinel)], vendorSentinel) {
		return "", false
	}
	return cleanVendor(s[len(vendorSentinel):]), true
}

func cleanVendor(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func parseChoice(s string) Choice {
	return choiceTokens[token(s)]
}

func parsePriority(s string) Priority {
	return priorityTokens[token(s)]
}

func parseOffering(s string) Offering {
	return offeringTokens[token(s)]
}

// token folds case and drops separators so "On-Premise", "on premise" and
// "ONPREMISE" compare equal.
func token(s string) string {
	folded := cases.Fold().String(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, folded)
}

// stringField reads fields[key] as a JSON string. Missing keys, nulls and
// non-string values report false.
func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
