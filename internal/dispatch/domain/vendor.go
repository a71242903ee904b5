package domain

// VendorSnapshot is a read snapshot of one vendor's availability taken at
// ranking time. Ranking never mutates it.
type VendorSnapshot struct {
	ID             string   `db:"id"`
	BusinessName   string   `db:"business_name"`
	Capabilities   []string `db:"-"`
	Latitude       float64  `db:"latitude"`
	Longitude      float64  `db:"longitude"`
	PricePerPage   float64  `db:"price_per_page"`
	ColorSurcharge float64  `db:"color_surcharge"`
	IsOpen         bool     `db:"is_open"`
	IsConnected    bool     `db:"is_connected"`
}

// HasCapabilities reports whether the vendor's capability set is a superset
// of the required one.
func (v *VendorSnapshot) HasCapabilities(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(v.Capabilities))
	for _, c := range v.Capabilities {
		have[c] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

// CandidateQuote is one ranked candidate: a vendor eligible for the job plus
// the price it would charge and its distance from the customer.
type CandidateQuote struct {
	VendorID     string
	BusinessName string
	Price        float64
	DistanceKm   float64
}
