package domain

import "strings"

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64
	Lon float64
}

// Station is a fixed physical measurement point. The ID addresses the primary
// climate source; the optional coordinates address the secondary snow source.
// Stations come from configuration and are never mutated during a run.
type Station struct {
	Name string
	ID   string
	Geo  *Geo // nil when the station's coordinates are unknown
}

// SafeName returns the station name in a form usable as a file name:
// lowercased, with spaces and hyphens replaced by underscores.
func (s Station) SafeName() string {
	name := strings.ToLower(strings.TrimSpace(s.Name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}
