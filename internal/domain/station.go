package domain

import "errors"

// ErrEmptyCatalog is returned when nearest-station resolution has no stations to search.
var ErrEmptyCatalog = errors.New("station catalog is empty")

// WeatherStation is an immutable reference station.
type WeatherStation struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Coordinate Coordinate `json:"coordinate"`
	Elevation  *float64   `json:"elevation,omitempty"`
}

// StationMatch is the outcome of a successful nearest-station resolution.
type StationMatch struct {
	Station    WeatherStation `json:"station"`
	DistanceKM float64        `json:"distance_km"`
}

// ResolveNearestStation scans stations linearly and returns the one closest to c,
// with the distance rounded to 2 decimal places. On exact ties the first
// station encountered wins.
func ResolveNearestStation(c Coordinate, stations []WeatherStation) (StationMatch, error) {
	if len(stations) == 0 {
		return StationMatch{}, ErrEmptyCatalog
	}

	best := 0
	bestDist := Distance(c, stations[0].Coordinate)
	for i := 1; i < len(stations); i++ {
		d := Distance(c, stations[i].Coordinate)
		if d < bestDist {
			best, bestDist = i, d
		}
	}

	return StationMatch{
		Station:    stations[best],
		DistanceKM: round(bestDist, 2),
	}, nil
}

// Catalog is a read-only set of weather stations loaded once at startup.
// The zero value is an empty catalog.
type Catalog struct {
	stations []WeatherStation
	byID     map[string]int
}

// NewCatalog copies stations into a new Catalog. Later changes to the input
// slice do not affect the catalog.
func NewCatalog(stations []WeatherStation) *Catalog {
	c := &Catalog{
		stations: make([]WeatherStation, len(stations)),
		byID:     make(map[string]int, len(stations)),
	}
	copy(c.stations, stations)
	for i, s := range c.stations {
		if _, dup := c.byID[s.ID]; !dup {
			c.byID[s.ID] = i
		}
	}
	return c
}

// Len reports the number of stations.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.stations)
}

// Stations returns a copy of the catalog's stations in load order.
func (c *Catalog) Stations() []WeatherStation {
	if c == nil {
		return nil
	}
	out := make([]WeatherStation, len(c.stations))
	copy(out, c.stations)
	return out
}

// Station looks up a station by ID.
func (c *Catalog) Station(id string) (WeatherStation, bool) {
	if c == nil {
		return WeatherStation{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return WeatherStation{}, false
	}
	return c.stations[i], true
}

// Nearest resolves the station closest to coord.
func (c *Catalog) Nearest(coord Coordinate) (StationMatch, error) {
	if c == nil {
		return StationMatch{}, ErrEmptyCatalog
	}
	return ResolveNearestStation(coord, c.stations)
}
