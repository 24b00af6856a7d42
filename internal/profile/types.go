// Package profile holds the canonical profile document model and the
// normalizers that turn every accepted wire shape into it.
package profile

// Choice answers "is this capability present". The zero value is Unset.
type Choice string

const (
	ChoiceUnset Choice = ""
	ChoiceYes   Choice = "Yes"
	ChoiceNo    Choice = "No"
)

// Priority is the business priority assigned to a control or application.
type Priority string

const (
	PriorityUnset    Priority = ""
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// Offering is the delivery model of a vendor solution.
type Offering string

const (
	OfferingUnset     Offering = ""
	OfferingSaaS      Offering = "SaaS"
	OfferingOnPremise Offering = "OnPremise"
	OfferingHybrid    Offering = "Hybrid"
)

// ControlField is the canonical answer to "do you have capability X, with
// which vendor, priority and delivery model". Vendor is only meaningful when
// Choice is Yes.
type ControlField struct {
	Choice           Choice   `json:"choice"`
	Vendor           string   `json:"vendor"`
	BusinessPriority Priority `json:"businessPriority"`
	Offering         Offering `json:"offering"`
}

// ApplicationRecord is one entry of an application group. ID is assigned once
// and is the record's identity across saves.
type ApplicationRecord struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	ContainsSensitiveInfo Choice   `json:"containsSensitiveInfo"`
	MFA                   Choice   `json:"mfa"`
	BackedUp              Choice   `json:"backedUp"`
	BYODAccess            Choice   `json:"byodAccess"`
	BusinessPriority      Priority `json:"businessPriority"`
	Offering              Offering `json:"offering"`
}

// Reserved top-level keys.
const (
	KeyUserID         = "userId"
	KeyLastSavedStage = "lastSavedStage"
)
