package domain

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchProposed  MatchStatus = "proposed"
	MatchAccepted  MatchStatus = "accepted"
	MatchRejected  MatchStatus = "rejected"
	MatchCompleted MatchStatus = "completed"
)

func ValidMatchStatus(s string) bool {
	switch MatchStatus(s) {
	case MatchProposed, MatchAccepted, MatchRejected, MatchCompleted:
		return true
	}
	return false
}

// CanTransition reports whether the status state machine admits the move.
// proposed -> accepted | rejected, accepted -> completed; rejected and
// completed are terminal. The engine only ever originates proposed;
// transitions come from the outside and are merely recorded here.
func (s MatchStatus) CanTransition(to MatchStatus) bool {
	switch s {
	case MatchProposed:
		return to == MatchAccepted || to == MatchRejected
	case MatchAccepted:
		return to == MatchCompleted
	}
	return false
}

// matchNamespace seeds deterministic match IDs so that re-scoring the
// same (need, capability) pair is idempotent and addressable.
var matchNamespace = uuid.MustParse("8a9e6f5c-1d42-4b6a-9f3e-2c7d8b1a0e54")

// MatchID derives the deterministic ID for a (need, capability) pair.
func MatchID(needID, capabilityID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(matchNamespace, []byte(needID.String()+"/"+capabilityID.String()))
}

// MatchScores are the component scores of one (need, capability) pair.
// Every component and the overall score lie in [0,1].
type MatchScores struct {
	Semantic        float64 `json:"semantic"`
	Complementarity float64 `json:"complementarity"`
	Feasibility     float64 `json:"feasibility"`
	Confidence      float64 `json:"confidence"`
	Overall         float64 `json:"overall"`
}

type Match struct {
	ID           uuid.UUID       `json:"id"`
	NeedID       uuid.UUID       `json:"need_id"`
	RequesterID  uuid.UUID       `json:"requester_id"`
	CapabilityID uuid.UUID       `json:"capability_id"`
	ProviderID   uuid.UUID       `json:"provider_id"`
	Scores       MatchScores     `json:"scores"`
	Status       MatchStatus     `json:"status"`
	Provenance   ProvenanceTrail `json:"provenance"`
	CreatedAt    time.Time       `json:"created_at"`
}
