package model

import "time"

type Job struct {
	JobID            string    `db:"job_id"`
	TrackingCode     string    `db:"tracking_code"`
	CustomerID       string    `db:"customer_id"`
	FileName         string    `db:"file_name"`
	Copies           int       `db:"copies"`
	Color            bool      `db:"color"`
	PaperSize        string    `db:"paper_size"`
	DoubleSided      bool      `db:"double_sided"`
	PageCount        int       `db:"page_count"`
	PickupLatitude   float64   `db:"pickup_latitude"`
	PickupLongitude  float64   `db:"pickup_longitude"`
	Status           string    `db:"status"`
	AssignedVendorID string    `db:"assigned_vendor_id"`
	TotalPrice       float64   `db:"total_price"`
	Earnings         float64   `db:"earnings"`
	NeedsReview      bool      `db:"needs_review"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}
