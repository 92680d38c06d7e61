package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CapabilityKind string

const (
	KindSkill      CapabilityKind = "skill"
	KindResource   CapabilityKind = "resource"
	KindKnowledge  CapabilityKind = "knowledge"
	KindConnection CapabilityKind = "connection"
)

func ValidCapabilityKind(k string) bool {
	switch CapabilityKind(k) {
	case KindSkill, KindResource, KindKnowledge, KindConnection:
		return true
	}
	return false
}

// Capability is something a provider can offer: a skill, a resource,
// domain knowledge, or a connection. A re-submission with the same ID
// replaces the whole record; there are no partial updates.
type Capability struct {
	ID          uuid.UUID      `json:"id"`
	OwnerID     uuid.UUID      `json:"owner_id"`
	Kind        CapabilityKind `json:"kind"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Embedding   []float32      `json:"-"`
	Proficiency float64        `json:"proficiency"`
	Tags        []string       `json:"tags"`
	Domain      string         `json:"domain"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (c *Capability) Validate() error {
	if c.ID == uuid.Nil {
		return fmt.Errorf("%w: id is required", ErrInvalidCapability)
	}
	if c.OwnerID == uuid.Nil {
		return fmt.Errorf("%w: owner_id is required", ErrInvalidCapability)
	}
	if !ValidCapabilityKind(string(c.Kind)) {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCapability, c.Kind)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCapability)
	}
	if c.Proficiency < 0 || c.Proficiency > 1 {
		return fmt.Errorf("%w: proficiency %.2f outside [0,1]", ErrInvalidCapability, c.Proficiency)
	}
	if len(c.Tags) == 0 {
		return fmt.Errorf("%w: at least one tag is required", ErrInvalidCapability)
	}
	return nil
}

// TagSet returns the capability's tags plus its domain token as a set.
func (c *Capability) TagSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Tags)+1)
	for _, t := range c.Tags {
		set[t] = struct{}{}
	}
	if c.Domain != "" {
		set["domain:"+c.Domain] = struct{}{}
	}
	return set
}
