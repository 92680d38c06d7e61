package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func validCapability() Capability {
	return Capability{
		ID:          uuid.New(),
		OwnerID:     uuid.New(),
		Kind:        KindSkill,
		Name:        "pcb layout",
		Proficiency: 0.9,
		Tags:        []string{"hardware"},
		Domain:      "robotics",
	}
}

func TestCapability_Validate(t *testing.T) {
	c := validCapability()
	if err := c.Validate(); err != nil {
		t.Fatalf("valid capability rejected: %v", err)
	}

	cases := map[string]func(*Capability){
		"nil id":          func(c *Capability) { c.ID = uuid.Nil },
		"nil owner":       func(c *Capability) { c.OwnerID = uuid.Nil },
		"unknown kind":    func(c *Capability) { c.Kind = "telepathy" },
		"empty name":      func(c *Capability) { c.Name = "" },
		"proficiency > 1": func(c *Capability) { c.Proficiency = 1.2 },
		"proficiency < 0": func(c *Capability) { c.Proficiency = -0.1 },
		"no tags":         func(c *Capability) { c.Tags = nil },
	}
	for name, mutate := range cases {
		c := validCapability()
		mutate(&c)
		if err := c.Validate(); !errors.Is(err, ErrInvalidCapability) {
			t.Errorf("%s: expected ErrInvalidCapability, got %v", name, err)
		}
	}
}

func TestCapability_TagSetIncludesDomainToken(t *testing.T) {
	c := validCapability()
	set := c.TagSet()
	if _, ok := set["hardware"]; !ok {
		t.Error("tag set missing declared tag")
	}
	if _, ok := set["domain:robotics"]; !ok {
		t.Error("tag set missing domain token")
	}

	c.Domain = ""
	if len(c.TagSet()) != 1 {
		t.Error("empty domain must not add a token")
	}
}

func TestNeed_Validate(t *testing.T) {
	n := Need{
		ID:          uuid.New(),
		RequesterID: uuid.New(),
		Kind:        KindKnowledge,
		Tags:        []string{"optics"},
		Urgency:     0.4,
		Importance:  0.8,
	}
	if err := n.Validate(); err != nil {
		t.Fatalf("valid need rejected: %v", err)
	}

	cases := map[string]func(*Need){
		"nil id":        func(n *Need) { n.ID = uuid.Nil },
		"nil requester": func(n *Need) { n.RequesterID = uuid.Nil },
		"unknown kind":  func(n *Need) { n.Kind = "wish" },
		"urgency > 1":   func(n *Need) { n.Urgency = 1.5 },
		"importance <0": func(n *Need) { n.Importance = -0.5 },
		"no tags":       func(n *Need) { n.Tags = nil },
	}
	for name, mutate := range cases {
		bad := n
		mutate(&bad)
		if err := bad.Validate(); !errors.Is(err, ErrInvalidNeed) {
			t.Errorf("%s: expected ErrInvalidNeed, got %v", name, err)
		}
	}
}

func TestLearningSignal_Valid(t *testing.T) {
	sig := LearningSignal{MatchID: uuid.New()}
	if !sig.Valid() {
		t.Error("minimal signal should be valid")
	}

	sig.MatchID = uuid.Nil
	if sig.Valid() {
		t.Error("nil match id must be invalid")
	}

	sig = LearningSignal{MatchID: uuid.New(), SimilarityBucket: -1}
	if sig.Valid() {
		t.Error("negative bucket must be invalid")
	}
}
