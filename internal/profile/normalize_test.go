package profile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeControlLegacyShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ControlField
	}{
		{"bare yes", `"Yes"`, ControlField{Choice: ChoiceYes}},
		{"bare no", `"No"`, ControlField{Choice: ChoiceNo}},
		{"lower case", `"yes"`, ControlField{Choice: ChoiceYes}},
		{"vendor sentinel", `"Vendor:Acme"`, ControlField{Choice: ChoiceYes, Vendor: "Acme"}},
		{"vendor sentinel with spaces", `" Vendor: AT&T "`, ControlField{Choice: ChoiceYes, Vendor: "AT&T"}},
		{"vendor sentinel without name", `"Vendor:"`, ControlField{Choice: ChoiceYes}},
		{"unknown token", `"Maybe"`, ControlField{}},
		{"empty string", `""`, ControlField{}},
		{"null", `null`, ControlField{}},
		{"number", `42`, ControlField{}},
		{"bool", `true`, ControlField{}},
		{"array", `["Yes"]`, ControlField{}},
		{"empty input", ``, ControlField{}},
		{"broken json", `{"choice":`, ControlField{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeControl(json.RawMessage(tt.raw)))
		})
	}
}

func TestNormalizeControlObjectKeepsPresentFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ControlField
	}{
		{
			name: "choice only",
			raw:  `{"choice":"No"}`,
			want: ControlField{Choice: ChoiceNo},
		},
		{
			name: "full record",
			raw:  `{"choice":"Yes","vendor":"Cisco","businessPriority":"High","offering":"Hybrid"}`,
			want: ControlField{Choice: ChoiceYes, Vendor: "Cisco", BusinessPriority: PriorityHigh, Offering: OfferingHybrid},
		},
		{
			name: "loose enum spelling",
			raw:  `{"choice":"YES","businessPriority":"critical","offering":"On-Premise"}`,
			want: ControlField{Choice: ChoiceYes, BusinessPriority: PriorityCritical, Offering: OfferingOnPremise},
		},
		{
			name: "vendor kept when choice is no",
			raw:  `{"choice":"No","vendor":"Legacy Corp"}`,
			want: ControlField{Choice: ChoiceNo, Vendor: "Legacy Corp"},
		},
		{
			name: "sentinel inside choice",
			raw:  `{"choice":"Vendor:Zscaler","offering":"SaaS"}`,
			want: ControlField{Choice: ChoiceYes, Vendor: "Zscaler", Offering: OfferingSaaS},
		},
		{
			name: "explicit vendor wins over sentinel",
			raw:  `{"choice":"Vendor:Old","vendor":"New"}`,
			want: ControlField{Choice: ChoiceYes, Vendor: "New"},
		},
		{
			name: "wrong sub-field types degrade",
			raw:  `{"choice":1,"vendor":{"name":"x"},"businessPriority":null,"offering":["SaaS"]}`,
			want: ControlField{},
		},
		{
			name: "unknown keys ignored",
			raw:  `{"choice":"Yes","notes":"n/a"}`,
			want: ControlField{Choice: ChoiceYes},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeControl(json.RawMessage(tt.raw)))
		})
	}
}

func TestNormalizeControlIsIdempotent(t *testing.T) {
	inputs := []string{
		`"Yes"`, `"No"`, `"Vendor:Acme"`, `"Vendor: Fortinet "`, `null`, `""`, `7`,
		`{"choice":"No"}`,
		`{"choice":"Vendor:Zscaler","offering":"saas"}`,
		`{"choice":"yes","vendor":" Palo Alto ","businessPriority":"Med","offering":"onprem"}`,
		`{"vendor":"Vendor:Odd"}`,
	}
	for _, in := range inputs {
		once := NormalizeControl(json.RawMessage(in))
		encoded, err := json.Marshal(once)
		require.NoError(t, err)
		twice := NormalizeControl(encoded)
		assert.Equal(t, once, twice, "input %s", in)
	}
}

func TestNormalizeControlLegacyRoundTrip(t *testing.T) {
	assert.Equal(t,
		ControlField{Choice: ChoiceYes, Vendor: "Acme", BusinessPriority: PriorityUnset, Offering: OfferingUnset},
		NormalizeControl(json.RawMessage(`"Vendor:Acme"`)))
	assert.Equal(t,
		ControlField{Choice: ChoiceNo, Vendor: "", BusinessPriority: PriorityUnset, Offering: OfferingUnset},
		NormalizeControl(json.RawMessage(`"No"`)))
}

func TestControlFieldEncoding(t *testing.T) {
	b, err := json.Marshal(ControlField{Choice: ChoiceYes, Vendor: "ATT"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"choice":"Yes","vendor":"ATT","businessPriority":"","offering":""}`, string(b))
}
