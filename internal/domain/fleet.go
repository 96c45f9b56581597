package domain

// BayLocation is the coordinate of a loading bay.
type BayLocation struct {
	BayID string
	Lat   float64
	Lng   float64
}

// Position is a device-reported coordinate.
type Position struct {
	Lat float64
	Lng float64
}

// Valid reports whether the coordinate is within WGS84 bounds.
func (p Position) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
