package domain

// Immutable geographic coordinates (latitude, longitude).
type Coordinates struct {
	Lat float64
	Lng float64
}

// Report whether the coordinates fall inside the valid WGS84 ranges.
// A zero value is treated as invalid because providers use it for "no fix".
func (c Coordinates) Valid() bool {
	if c.Lat == 0 && c.Lng == 0 {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Outcome of a single address lookup.
// Found is false when the provider could not resolve the address or failed;
// Location is only meaningful when Found is true.
type GeocodeResult struct {
	Address  string
	Location Coordinates
	Found    bool
}
