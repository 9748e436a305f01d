package domain

import "time"

// PersonalizationRules is the currently active ruleset for one segment.
// Exactly one row exists per segment; each batch cycle or admin override
// replaces it. Admin-created rows differ from LLM-generated ones only in
// the provenance text carried in Reasoning and Explanation.
type PersonalizationRules struct {
	Segment          Segment           `json:"segment"`
	PrioritySections []string          `json:"priority_sections"`
	FeaturedProjects []string          `json:"featured_projects"`
	HighlightSkills  []string          `json:"highlight_skills"`
	StyleOverrides   map[string]string `json:"style_overrides,omitempty"`
	Reasoning        string            `json:"reasoning"`
	Explanation      Explanation       `json:"xai_explanation"`
	CreatedAt        time.Time         `json:"created_at"`
}
