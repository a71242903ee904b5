package station

import "time"

// Event is a typed notification surfaced to the station UI layer. The client
// has no UI dependency; whatever renders the station subscribes to Events()
// and handles each concrete type.
type Event interface {
	isEvent()
}

// OfferReceived fires when a validated NEW_JOB_OFFER arrives
type OfferReceived struct {
	JobID        string
	TrackingCode string
	FileName     string
	TotalPrice   float64
	Earnings     float64
	ExpiresAt    time.Time
}

// OfferWithdrawn fires when the backend cancels the offer or reconciliation
// drops it
type OfferWithdrawn struct {
	JobID  string
	Reason string
}

// OfferExpired fires when the local countdown elapses and the client
// auto-declines
type OfferExpired struct {
	JobID string
}

// JobAssigned fires when the backend acknowledges an accept
type JobAssigned struct {
	JobID string
}

// ResponseRejected fires when the backend rejects a job response as stale
type ResponseRejected struct {
	JobID string
	Error string
}

// ConnectionChanged fires on connect and disconnect
type ConnectionChanged struct {
	Connected bool
}

func (OfferReceived) isEvent()     {}
func (OfferWithdrawn) isEvent()    {}
func (OfferExpired) isEvent()      {}
func (JobAssigned) isEvent()       {}
func (ResponseRejected) isEvent()  {}
func (ConnectionChanged) isEvent() {}
