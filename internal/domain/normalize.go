package domain

// DefaultLocation is the documented fallback used when a stop arrives
// without usable coordinates: Addis Ababa city center. Stops resolved
// this way are marked CoordinatesEstimated so callers can distinguish
// real positions from the placeholder.
var DefaultLocation = Coordinates{Latitude: 9.0108, Longitude: 38.7613}

// Usable reports whether the point can be trusted as a real position.
// The zero value (null island) is treated as missing data.
func (c Coordinates) Usable() bool {
	if c.Latitude == 0 && c.Longitude == 0 {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// ResolveCoordinates returns the first usable candidate, or
// DefaultLocation with estimated=true when none qualifies. Wire records
// may carry the position on the stop itself or on a sibling address
// block; callers pass the candidates in preference order.
func ResolveCoordinates(candidates ...*Coordinates) (c Coordinates, estimated bool) {
	for _, cand := range candidates {
		if cand != nil && cand.Usable() {
			return *cand, false
		}
	}
	return DefaultLocation, true
}
