package domain

import "time"

// Segment is one of the five fixed behavioral categories a visitor can be
// classified into.
type Segment string

const (
	SegmentMLEngineer   Segment = "ML_ENGINEER"
	SegmentFullstackDev Segment = "FULLSTACK_DEV"
	SegmentRecruiter    Segment = "RECRUITER"
	SegmentStudent      Segment = "STUDENT"
	SegmentCasual       Segment = "CASUAL"
)

// AllSegments returns the fixed segment list in a stable order.
func AllSegments() []Segment {
	return []Segment{
		SegmentMLEngineer,
		SegmentFullstackDev,
		SegmentRecruiter,
		SegmentStudent,
		SegmentCasual,
	}
}

// Valid reports whether s is a member of the fixed segment enum.
func (s Segment) Valid() bool {
	switch s {
	case SegmentMLEngineer, SegmentFullstackDev, SegmentRecruiter, SegmentStudent, SegmentCasual:
		return true
	}
	return false
}

// Explanation is the structured four-field rationale attached to every
// classification and rule-generation result.
type Explanation struct {
	What           string `json:"what"`
	Why            string `json:"why"`
	SoWhat         string `json:"so_what"`
	Recommendation string `json:"recommendation"`
}

// UserSegment is the latest classification for a single visitor. There is at
// most one row per user; re-analysis overwrites it.
type UserSegment struct {
	UserID       string       `json:"user_id"`
	Segment      Segment      `json:"segment"`
	Confidence   float64      `json:"confidence"`
	Reasoning    string       `json:"reasoning"`
	Explanation  Explanation  `json:"xai_explanation"`
	EventSummary EventSummary `json:"event_summary"`
	AnalyzedAt   time.Time    `json:"analyzed_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
}
