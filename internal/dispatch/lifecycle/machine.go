// Package lifecycle owns job status transition legality. The status values
// themselves live in the domain package and carry no presentation text;
// human-readable labels come from Label.
package lifecycle

import (
	"fmt"

	"github.com/spoolr-in/spoolr/internal/dispatch/domain"
)

// transitions maps each status to the statuses it may legally enter.
var transitions = map[domain.JobStatus][]domain.JobStatus{
	domain.StatusUploaded:   {domain.StatusProcessing, domain.StatusCancelled},
	domain.StatusProcessing: {domain.StatusAwaitingAcceptance, domain.StatusNoVendors, domain.StatusCancelled},
	domain.StatusAwaitingAcceptance: {
		domain.StatusAccepted,
		domain.StatusVendorRejected,
		domain.StatusVendorTimeout,
		domain.StatusCancelled,
	},
	domain.StatusVendorRejected: {domain.StatusProcessing, domain.StatusNoVendors},
	domain.StatusVendorTimeout:  {domain.StatusProcessing, domain.StatusNoVendors},
	domain.StatusAccepted:       {domain.StatusPrinting, domain.StatusCancelled},
	domain.StatusPrinting:       {domain.StatusReady, domain.StatusCancelled},
	domain.StatusReady:          {domain.StatusCompleted},
	// Terminal states accept no further transitions.
	domain.StatusCompleted: {},
	domain.StatusCancelled: {},
	domain.StatusNoVendors: {},
}

// CanTransition reports whether from → to is a defined transition.
func CanTransition(from, to domain.JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from → to and returns the new status, or
// ErrIllegalTransition.
func Transition(from, to domain.JobStatus) (domain.JobStatus, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, from, to)
	}
	return to, nil
}

// IsTerminal reports whether no transition leaves the status.
func IsTerminal(s domain.JobStatus) bool {
	next, known := transitions[s]
	return known && len(next) == 0
}

// RequiresVendor reports whether a job in this status must carry an assigned
// vendor reference.
func RequiresVendor(s domain.JobStatus) bool {
	switch s {
	case domain.StatusAccepted, domain.StatusPrinting, domain.StatusReady, domain.StatusCompleted:
		return true
	}
	return false
}

// Label maps a status to the text shown to customers and vendors. Kept apart
// from the status enum so wire values and UI copy can evolve independently.
func Label(s domain.JobStatus) string {
	switch s {
	case domain.StatusUploaded:
		return "Uploaded"
	case domain.StatusProcessing:
		return "Searching for a print shop"
	case domain.StatusAwaitingAcceptance:
		return "Waiting for shop confirmation"
	case domain.StatusAccepted:
		return "Accepted by print shop"
	case domain.StatusPrinting:
		return "Printing"
	case domain.StatusReady:
		return "Ready for pickup"
	case domain.StatusCompleted:
		return "Completed"
	case domain.StatusCancelled:
		return "Cancelled"
	case domain.StatusNoVendors:
		return "No print shops available"
	case domain.StatusVendorRejected, domain.StatusVendorTimeout:
		return "Searching for a new print shop"
	default:
		return string(s)
	}
}
