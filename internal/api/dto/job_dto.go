package dto

type CreateJobRequest struct {
	CustomerID      string  `json:"customer_id"` // empty = anonymous
	FileName        string  `json:"file_name" binding:"required"`
	Copies          int     `json:"copies" binding:"required,min=1"`
	Color           bool    `json:"color"`
	PaperSize       string  `json:"paper_size" binding:"required"`
	DoubleSided     bool    `json:"double_sided"`
	PageCount       int     `json:"page_count" binding:"required,min=1"`
	PickupLatitude  float64 `json:"pickup_latitude" binding:"required"`
	PickupLongitude float64 `json:"pickup_longitude" binding:"required"`
	TotalPrice      float64 `json:"total_price" binding:"required,gt=0"`
}

type ListJobsRequest struct {
	CustomerID string `form:"customer_id"`
	Status     string `form:"status"`
	PageSize   int    `form:"page_size"`
	Cursor     string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID            string  `json:"job_id"`
	TrackingCode     string  `json:"tracking_code"`
	CustomerID       string  `json:"customer_id,omitempty"`
	FileName         string  `json:"file_name"`
	Copies           int     `json:"copies"`
	Color            bool    `json:"color"`
	PaperSize        string  `json:"paper_size"`
	DoubleSided      bool    `json:"double_sided"`
	PageCount        int     `json:"page_count"`
	Status           string  `json:"status"`
	StatusLabel      string  `json:"status_label"`
	AssignedVendorID string  `json:"assigned_vendor_id,omitempty"`
	TotalPrice       float64 `json:"total_price"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type QueueJobDTO struct {
	JobID        string  `json:"job_id"`
	TrackingCode string  `json:"tracking_code"`
	FileName     string  `json:"file_name"`
	Status       string  `json:"status"`
	TotalPrice   float64 `json:"total_price"`
	Earnings     float64 `json:"earnings"`
	CreatedAt    string  `json:"created_at"`
}

type VendorQueueResponse struct {
	VendorID string        `json:"vendor_id"`
	Jobs     []QueueJobDTO `json:"jobs"`
}
