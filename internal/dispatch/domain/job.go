package domain

import "time"

// JobStatus is the lifecycle status of a print job. Transition legality is
// owned by the lifecycle package; this type carries no presentation text.
type JobStatus string

const (
	StatusUploaded           JobStatus = "UPLOADED"
	StatusProcessing         JobStatus = "PROCESSING"
	StatusAwaitingAcceptance JobStatus = "AWAITING_ACCEPTANCE"
	StatusAccepted           JobStatus = "ACCEPTED"
	StatusPrinting           JobStatus = "PRINTING"
	StatusReady              JobStatus = "READY"
	StatusCompleted          JobStatus = "COMPLETED"
	StatusCancelled          JobStatus = "CANCELLED"
	StatusNoVendors          JobStatus = "NO_VENDORS_AVAILABLE"
	StatusVendorRejected     JobStatus = "VENDOR_REJECTED"
	StatusVendorTimeout      JobStatus = "VENDOR_TIMEOUT"
)

// PrintSpecs describes what the customer wants printed.
type PrintSpecs struct {
	Copies      int    `json:"copies" db:"copies"`
	Color       bool   `json:"color" db:"color"`
	PaperSize   string `json:"paperSize" db:"paper_size"`
	DoubleSided bool   `json:"doubleSided" db:"double_sided"`
}

// Job is a print job as the dispatch core sees it. AssignedVendorID is
// non-empty iff the status is ACCEPTED, PRINTING, READY or COMPLETED.
type Job struct {
	ID               string
	TrackingCode     string
	CustomerID       string // empty = anonymous
	FileName         string
	Specs            PrintSpecs
	PageCount        int
	PickupLatitude   float64
	PickupLongitude  float64
	Status           JobStatus
	AssignedVendorID string
	TotalPrice       float64
	Earnings         float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsAnonymous reports whether the job was submitted without a customer
// reference.
func (j *Job) IsAnonymous() bool {
	return j.CustomerID == ""
}

// OfferRecord is one entry in a job's ordered offer history.
type OfferRecord struct {
	JobID     string       `db:"job_id"`
	VendorID  string       `db:"vendor_id"`
	OfferedAt time.Time    `db:"offered_at"`
	Outcome   OfferOutcome `db:"outcome"`
}
