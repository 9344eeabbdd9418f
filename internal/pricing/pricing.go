// Package pricing computes great-circle distance, travel time and price for
// a pickup/dropoff pair.
//
// Distances use the Haversine formula on WGS-84 coordinates; there is no
// road-network routing. Everything here is pure and trusts its inputs:
// coordinates are validated by callers.
package pricing

import (
	"fmt"
	"math"

	"dispatch/internal/domain"
)

// ─── Constants ──────────────────────────────────────────────

// EarthRadiusKm is the mean radius of Earth in kilometers.
const EarthRadiusKm = 6371.0

// Rates is one row of the tier rate table.
type Rates struct {
	Base     float64
	PerKm    float64
	PerKg    float64
	MinPrice float64
	SpeedKmh float64
}

var rateTable = map[domain.ServiceTier]Rates{
	domain.ServiceTierStandard:  {Base: 5, PerKm: 2.0, PerKg: 1.0, MinPrice: 10, SpeedKmh: 30},
	domain.ServiceTierExpress:   {Base: 8, PerKm: 2.5, PerKg: 1.2, MinPrice: 15, SpeedKmh: 45},
	domain.ServiceTierOvernight: {Base: 10, PerKm: 1.8, PerKg: 0.9, MinPrice: 20, SpeedKmh: 25},
	domain.ServiceTierEconomy:   {Base: 3, PerKm: 1.5, PerKg: 0.8, MinPrice: 8, SpeedKmh: 20},
}

// RatesFor returns the rates of tier. Unknown or empty tiers get standard.
func RatesFor(tier domain.ServiceTier) Rates {
	if r, ok := rateTable[tier]; ok {
		return r
	}
	return rateTable[domain.ServiceTierStandard]
}

// ─── Distance ───────────────────────────────────────────────

// Distance returns the great-circle distance between a and b in kilometers.
func Distance(a, b domain.Coordinate) float64 {
	dLat := degToRad(b.Latitude - a.Latitude)
	dLon := degToRad(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat +
		math.Cos(degToRad(a.Latitude))*math.Cos(degToRad(b.Latitude))*sinLon*sinLon

	// Rounding can push h a hair above 1 for antipodal points.
	h = math.Min(1, h)

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// Box is a latitude/longitude rectangle. FullLng means every longitude is
// inside, which happens near the poles or across the antimeridian.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	FullLng        bool
}

// BoundingBox returns a rectangle containing every point within radiusKm of
// center. It is a coarse pre-filter; Distance decides.
func BoundingBox(center domain.Coordinate, radiusKm float64) Box {
	angular := radiusKm / EarthRadiusKm
	dLat := angular * (180 / math.Pi)
	box := Box{
		MinLat: math.Max(-90, center.Latitude-dLat),
		MaxLat: math.Min(90, center.Latitude+dLat),
	}

	cosLat := math.Cos(degToRad(center.Latitude))
	if box.MinLat == -90 || box.MaxLat == 90 || math.Sin(angular) >= cosLat {
		box.FullLng = true
		return box
	}
	dLng := math.Asin(math.Sin(angular)/cosLat) * (180 / math.Pi)
	box.MinLng = center.Longitude - dLng
	box.MaxLng = center.Longitude + dLng
	if box.MinLng < -180 || box.MaxLng > 180 {
		box.FullLng = true
	}
	return box
}

// ─── Time ───────────────────────────────────────────────────

// EstimatedMinutes returns the whole minutes needed to cover distanceKm at
// the tier's average speed, rounded up.
func EstimatedMinutes(distanceKm float64, tier domain.ServiceTier) int {
	if distanceKm <= 0 {
		return 0
	}
	return int(math.Ceil(distanceKm * 60 / RatesFor(tier).SpeedKmh))
}

// EstimatedTime renders the travel time, e.g. "45 minutes" or
// "2 hours 10 minutes".
func EstimatedTime(distanceKm float64, tier domain.ServiceTier) string {
	return FormatMinutes(EstimatedMinutes(distanceKm, tier))
}

// FormatMinutes renders a minute count as hours and minutes.
func FormatMinutes(total int) string {
	hours, minutes := total/60, total%60
	switch {
	case hours == 0:
		return plural(minutes, "minute")
	case minutes == 0:
		return plural(hours, "hour")
	default:
		return plural(hours, "hour") + " " + plural(minutes, "minute")
	}
}

// ─── Price ──────────────────────────────────────────────────

// Price returns max(minPrice, base + distance*perKm + weight*perKg).
func Price(distanceKm, weightKg float64, tier domain.ServiceTier) float64 {
	r := RatesFor(tier)
	return math.Max(r.MinPrice, r.Base+distanceKm*r.PerKm+weightKg*r.PerKg)
}

// Estimate is the derived part of a delivery or quote.
type Estimate struct {
	DistanceKm       float64
	Price            float64
	EstimatedMinutes int
	EstimatedTime    string
}

// EstimateTrip prices a trip from a to b. Distance and price are rounded to two
// decimals, and the price is computed from the rounded distance so the stored
// numbers agree with each other.
func EstimateTrip(a, b domain.Coordinate, weightKg float64, tier domain.ServiceTier) Estimate {
	distance := Round2(Distance(a, b))
	minutes := EstimatedMinutes(distance, tier)
	return Estimate{
		DistanceKm:       distance,
		Price:            Round2(Price(distance, weightKg, tier)),
		EstimatedMinutes: minutes,
		EstimatedTime:    FormatMinutes(minutes),
	}
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ─── Helpers ────────────────────────────────────────────────

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
