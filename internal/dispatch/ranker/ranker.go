// Package ranker turns a vendor availability snapshot into an ordered
// candidate list for one dispatch attempt. Ranking is a pure function over
// the snapshot; the list is recomputed on every attempt and never persisted.
package ranker

import (
	"math"
	"sort"

	"github.com/spoolr-in/spoolr/internal/dispatch/domain"
)

const earthRadiusKm = 6371.0

// Requirements is what a job needs from a vendor.
type Requirements struct {
	Capabilities []string
	Specs        domain.PrintSpecs
	PageCount    int
}

// Location is the customer's pickup location.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Rank filters the snapshot down to eligible vendors and orders them by
// ascending price, then ascending distance, then vendor id. An empty result
// is a valid outcome, not an error.
func Rank(
	vendors []domain.VendorSnapshot,
	req Requirements,
	loc Location,
	radiusKm float64,
	excluded map[string]bool,
) []domain.CandidateQuote {
	quotes := make([]domain.CandidateQuote, 0, len(vendors))

	for i := range vendors {
		v := &vendors[i]
		if excluded[v.ID] {
			continue
		}
		if !v.IsOpen || !v.IsConnected {
			continue
		}
		if !v.HasCapabilities(req.Capabilities) {
			continue
		}
		dist := haversineKm(loc.Latitude, loc.Longitude, v.Latitude, v.Longitude)
		if dist > radiusKm {
			continue
		}
		quotes = append(quotes, domain.CandidateQuote{
			VendorID:     v.ID,
			BusinessName: v.BusinessName,
			Price:        quote(v, req),
			DistanceKm:   dist,
		})
	}

	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].Price != quotes[j].Price {
			return quotes[i].Price < quotes[j].Price
		}
		if quotes[i].DistanceKm != quotes[j].DistanceKm {
			return quotes[i].DistanceKm < quotes[j].DistanceKm
		}
		return quotes[i].VendorID < quotes[j].VendorID
	})

	return quotes
}

// quote prices the job at this vendor's rates.
func quote(v *domain.VendorSnapshot, req Requirements) float64 {
	pages := req.PageCount
	if pages < 1 {
		pages = 1
	}
	copies := req.Specs.Copies
	if copies < 1 {
		copies = 1
	}
	perPage := v.PricePerPage
	if req.Specs.Color {
		perPage += v.ColorSurcharge
	}
	return perPage * float64(pages*copies)
}

// haversineKm is the great-circle distance between two coordinates.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
