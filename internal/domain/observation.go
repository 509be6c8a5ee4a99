package domain

import (
	"errors"
	"time"
)

// ErrInvalidObservation is returned for ingest messages that cannot become an Observation.
var ErrInvalidObservation = errors.New("invalid observation")

// Observation is one day of satellite readings for a location. At most one
// Observation exists per (LocationID, Date).
type Observation struct {
	LocationID string    `json:"location_id"`
	Date       Date      `json:"observation_date"`
	LST        *float64  `json:"lst"`  // land-surface temperature, °C
	NDVI       *float64  `json:"ndvi"` // vegetation index, [0, 1]
	DataSource string    `json:"data_source,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}

// ObservationKey identifies an observation's uniqueness slot.
type ObservationKey struct {
	LocationID string
	Date       Date
}

// Key returns o's (location, date) pair.
func (o Observation) Key() ObservationKey {
	return ObservationKey{LocationID: o.LocationID, Date: o.Date}
}

// DedupeObservations keeps the last observation for each (location, date)
// pair, preserving the position of its first occurrence.
func DedupeObservations(obs []Observation) []Observation {
	idx := make(map[ObservationKey]int, len(obs))
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if i, ok := idx[o.Key()]; ok {
			out[i] = o
			continue
		}
		idx[o.Key()] = len(out)
		out = append(out, o)
	}
	return out
}
