package station

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spoolr-in/spoolr/internal/dispatch/domain"
)

// validation bounds for inbound offers; anything outside them is treated as
// malformed and dropped
const (
	defaultMaxOfferPrice  = 10000.0
	maxOfferWindowSeconds = 600
)

// ValidateOffer checks an inbound NEW_JOB_OFFER for field presence, types
// the JSON decoder already enforced, and bounded price/expiry. Malformed
// offers are logged and dropped by the caller; the connection stays open.
func ValidateOffer(f *domain.OfferFrame, maxPrice float64) error {
	if maxPrice <= 0 {
		maxPrice = defaultMaxOfferPrice
	}

	if _, err := uuid.Parse(f.JobID); err != nil {
		return fmt.Errorf("%w: jobId is not a UUID", domain.ErrInvalidMessage)
	}
	if f.TrackingCode == "" {
		return fmt.Errorf("%w: missing trackingCode", domain.ErrInvalidMessage)
	}
	if f.FileName == "" {
		return fmt.Errorf("%w: missing fileName", domain.ErrInvalidMessage)
	}
	if f.TotalPrice <= 0 || f.TotalPrice > maxPrice {
		return fmt.Errorf("%w: totalPrice %.2f out of bounds", domain.ErrInvalidMessage, f.TotalPrice)
	}
	if f.Earnings < 0 || f.Earnings > maxPrice {
		return fmt.Errorf("%w: earnings %.2f out of bounds", domain.ErrInvalidMessage, f.Earnings)
	}
	if f.OfferExpiresInSeconds <= 0 || f.OfferExpiresInSeconds > maxOfferWindowSeconds {
		return fmt.Errorf("%w: offerExpiresInSeconds %d out of bounds", domain.ErrInvalidMessage, f.OfferExpiresInSeconds)
	}
	if f.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing createdAt", domain.ErrInvalidMessage)
	}
	if f.PrintSpecs.Copies < 1 {
		return fmt.Errorf("%w: printSpecs.copies must be at least 1", domain.ErrInvalidMessage)
	}
	return nil
}

// ValidateCancel checks an inbound OFFER_CANCELLED frame
func ValidateCancel(f *domain.CancelFrame) error {
	if _, err := uuid.Parse(f.JobID); err != nil {
		return fmt.Errorf("%w: jobId is not a UUID", domain.ErrInvalidMessage)
	}
	return nil
}

// offerDeadline converts the relative expiry into an absolute local
// deadline. The server timer is authoritative; this only drives the local
// countdown display and auto-decline.
func offerDeadline(f *domain.OfferFrame, now time.Time) time.Time {
	return now.Add(time.Duration(f.OfferExpiresInSeconds) * time.Second)
}
