package domain

import "time"

// OfferOutcome is the resolution of one offer. An offer is finalized exactly
// once; a finalized outcome never changes.
type OfferOutcome string

const (
	OfferPending    OfferOutcome = "pending"
	OfferAccepted   OfferOutcome = "accepted"
	OfferDeclined   OfferOutcome = "declined"
	OfferExpired    OfferOutcome = "expired"
	OfferSuperseded OfferOutcome = "superseded"
)

// Offer is a time-bounded proposal of one job to one vendor.
type Offer struct {
	JobID     string
	VendorID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Outcome   OfferOutcome
}

// Finalized reports whether the offer has reached a terminal outcome.
func (o *Offer) Finalized() bool {
	return o.Outcome != OfferPending
}
