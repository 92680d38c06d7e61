package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Need is a declared gap a requester wants filled. A need is immutable
// once it has been matched against, so provenance stays reproducible;
// a changed need is a new record.
type Need struct {
	ID          uuid.UUID      `json:"id"`
	RequesterID uuid.UUID      `json:"requester_id"`
	Kind        CapabilityKind `json:"kind"`
	Description string         `json:"description"`
	Embedding   []float32      `json:"-"`
	Tags        []string       `json:"tags"`
	Domain      string         `json:"domain"`
	Urgency     float64        `json:"urgency"`
	Importance  float64        `json:"importance"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (n *Need) Validate() error {
	if n.ID == uuid.Nil {
		return fmt.Errorf("%w: id is required", ErrInvalidNeed)
	}
	if n.RequesterID == uuid.Nil {
		return fmt.Errorf("%w: requester_id is required", ErrInvalidNeed)
	}
	if !ValidCapabilityKind(string(n.Kind)) {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidNeed, n.Kind)
	}
	if n.Urgency < 0 || n.Urgency > 1 {
		return fmt.Errorf("%w: urgency %.2f outside [0,1]", ErrInvalidNeed, n.Urgency)
	}
	if n.Importance < 0 || n.Importance > 1 {
		return fmt.Errorf("%w: importance %.2f outside [0,1]", ErrInvalidNeed, n.Importance)
	}
	if len(n.Tags) == 0 {
		return fmt.Errorf("%w: at least one tag is required", ErrInvalidNeed)
	}
	return nil
}

// TagSet returns the need's tags plus its domain token as a set.
func (n *Need) TagSet() map[string]struct{} {
	set := make(map[string]struct{}, len(n.Tags)+1)
	for _, t := range n.Tags {
		set[t] = struct{}{}
	}
	if n.Domain != "" {
		set["domain:"+n.Domain] = struct{}{}
	}
	return set
}
