package domain

import "github.com/google/uuid"

// SynergyPair reports a mutual-benefit pairing: the requester's need is
// well matched by the provider, and one of the provider's open needs is
// well matched by a requester capability.
type SynergyPair struct {
	Key            string    `json:"key"`
	ForwardMatchID uuid.UUID `json:"forward_match_id"`
	ReverseMatchID uuid.UUID `json:"reverse_match_id"`
	ForwardNeedID  uuid.UUID `json:"forward_need_id"`
	ReverseNeedID  uuid.UUID `json:"reverse_need_id"`
	SynergyScore   float64   `json:"synergy_score"`
}

// SynergyKey builds an order-independent key for a need/need combination
// so the same pairing is never reported twice under swapped roles.
func SynergyKey(a, b uuid.UUID) string {
	as, bs := a.String(), b.String()
	if as < bs {
		return as + "|" + bs
	}
	return bs + "|" + as
}
