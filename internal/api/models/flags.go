package models

// FeatureFlag is one runtime switch.
type FeatureFlag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt *Timestamp  `json:"updatedAt,omitempty"`
}

// FeatureFlagList lists every switch.
type FeatureFlagList struct {
	Items []FeatureFlag `json:"items"`
}

// FeatureFlagUpdate is a single flag update.
type FeatureFlagUpdate struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// FeatureFlagUpdateRequest is the body of PUT /v1/admin/flags.
type FeatureFlagUpdateRequest struct {
	Updates []FeatureFlagUpdate `json:"updates"`
	Reason  string              `json:"reason"`
}
