package domain

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the reported result of an accepted match. At most one
// outcome exists per match; a later report amends the earlier one.
type Outcome struct {
	MatchID       uuid.UUID `json:"match_id"`
	Success       bool      `json:"success"`
	ProblemSolved bool      `json:"problem_solved"`
	Notes         string    `json:"notes,omitempty"`
	ReportedAt    time.Time `json:"reported_at"`
}

// LearningSignal is derived from an outcome and the match's stored
// scores, then appended to the calibration log. The log is authoritative;
// calibration statistics are a derived cache.
type LearningSignal struct {
	Seq              int64     `json:"seq"`
	MatchID          uuid.UUID `json:"match_id"`
	SimilarityBucket int       `json:"similarity_bucket"`
	ScoreBucket      int       `json:"score_bucket"`
	Domain           string    `json:"domain"`
	TagOverlap       int       `json:"tag_overlap"`
	Success          bool      `json:"success"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// Valid reports whether a log entry is well formed. Corrupt entries are
// skipped during recompute and counted as data-quality warnings.
func (s *LearningSignal) Valid() bool {
	if s.MatchID == uuid.Nil {
		return false
	}
	if s.SimilarityBucket < 0 || s.ScoreBucket < 0 || s.TagOverlap < 0 {
		return false
	}
	return true
}
