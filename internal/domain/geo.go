package domain

// Coordinate is a WGS-84 point.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Valid reports whether the coordinate is inside the WGS-84 ranges.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Location is an address with the coordinate used for all computation.
// Address is display-only.
type Location struct {
	Address    string
	Coordinate Coordinate
}

// Dimensions of a package in centimeters.
type Dimensions struct {
	Length float64
	Width  float64
	Height float64
}

// PackageDetails describes what is being moved.
type PackageDetails struct {
	WeightKg           float64
	Dimensions         *Dimensions // optional
	ContentDescription string
}
