package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Push-channel frame types (backend → vendor).
const (
	MsgNewJobOffer      = "NEW_JOB_OFFER"
	MsgOfferCancelled   = "OFFER_CANCELLED"
	MsgJobAccepted      = "JOB_ACCEPTED"
	MsgJobDeclined      = "JOB_DECLINED"
	MsgJobResponseError = "JOB_RESPONSE_ERROR"
)

// Vendor response values.
const (
	ResponseAccept  = "accept"
	ResponseDecline = "decline"
)

// OfferFrame is the NEW_JOB_OFFER push sent when a job is offered to a
// vendor. OfferExpiresInSeconds mirrors the server-side expiry timer; the
// server timer, not the client countdown, is authoritative.
type OfferFrame struct {
	Type                  string     `json:"type"`
	JobID                 string     `json:"jobId"`
	TrackingCode          string     `json:"trackingCode"`
	FileName              string     `json:"fileName"`
	Customer              string     `json:"customer"`
	PrintSpecs            PrintSpecs `json:"printSpecs"`
	TotalPrice            float64    `json:"totalPrice"`
	Earnings              float64    `json:"earnings"`
	CreatedAt             time.Time  `json:"createdAt"`
	IsAnonymous           bool       `json:"isAnonymous"`
	OfferExpiresInSeconds int        `json:"offerExpiresInSeconds"`
}

// CancelFrame is the OFFER_CANCELLED push sent to a vendor whose offer was
// resolved without it (timeout or supersession).
type CancelFrame struct {
	Type    string `json:"type"`
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// AckFrame acknowledges a vendor's job response.
type AckFrame struct {
	Type    string `json:"type"`
	JobID   string `json:"jobId"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JobResponse is a vendor's accept/decline for an offered job.
type JobResponse struct {
	JobID    string `json:"jobId"`
	Response string `json:"response"`
	VendorID string `json:"vendorId"`
}

// Validate checks field presence and the response value.
func (r *JobResponse) Validate() error {
	if r.JobID == "" {
		return fmt.Errorf("%w: missing jobId", ErrInvalidMessage)
	}
	if r.VendorID == "" {
		return fmt.Errorf("%w: missing vendorId", ErrInvalidMessage)
	}
	if r.Response != ResponseAccept && r.Response != ResponseDecline {
		return fmt.Errorf("%w: response must be %q or %q, got %q",
			ErrInvalidMessage, ResponseAccept, ResponseDecline, r.Response)
	}
	return nil
}

// StatusHeartbeat updates a vendor's availability; IsConnected is implied by
// the heartbeat arriving on a live channel.
type StatusHeartbeat struct {
	VendorID     string `json:"vendorId"`
	IsAvailable  bool   `json:"isAvailable"`
	BusinessName string `json:"businessName"`
}

// InboundFrame is the untyped envelope for vendor → backend messages. The
// concrete kind is inferred from field presence.
type InboundFrame struct {
	JobID        string `json:"jobId"`
	Response     string `json:"response"`
	VendorID     string `json:"vendorId"`
	IsAvailable  *bool  `json:"isAvailable"`
	BusinessName string `json:"businessName"`
}

// InboundKind classifies a decoded vendor frame.
type InboundKind int

const (
	KindUnknown InboundKind = iota
	KindJobResponse
	KindHeartbeat
)

// DecodeInbound parses a raw vendor frame and classifies it. Frames that are
// not valid JSON or match no known shape come back as KindUnknown with an
// error; the caller logs and drops them.
func DecodeInbound(data []byte) (InboundKind, *InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return KindUnknown, nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch {
	case frame.Response != "":
		return KindJobResponse, &frame, nil
	case frame.IsAvailable != nil:
		if frame.VendorID == "" {
			return KindUnknown, nil, fmt.Errorf("%w: heartbeat missing vendorId", ErrInvalidMessage)
		}
		return KindHeartbeat, &frame, nil
	default:
		return KindUnknown, nil, fmt.Errorf("%w: unrecognized frame shape", ErrInvalidMessage)
	}
}

// JobResponse converts a classified frame into a typed response.
func (f *InboundFrame) JobResponse() *JobResponse {
	return &JobResponse{JobID: f.JobID, Response: f.Response, VendorID: f.VendorID}
}

// Heartbeat converts a classified frame into a typed heartbeat.
func (f *InboundFrame) Heartbeat() *StatusHeartbeat {
	return &StatusHeartbeat{
		VendorID:     f.VendorID,
		IsAvailable:  *f.IsAvailable,
		BusinessName: f.BusinessName,
	}
}
