package rules

import "sessionwatch/pkg/models"

// RuleTag labels an event that matched a detection rule.
type RuleTag struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// Engine tags session events that match loaded detection rules.
type Engine interface {
	Apply(event *models.Event) []RuleTag
}
