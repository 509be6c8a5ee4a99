package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultLocationName is used when neither the user nor a geocoder supplies a name.
const DefaultLocationName = "Observation Point"

// StationRef is the station resolved for a location at creation or on an
// explicit re-resolve. It is never refreshed implicitly.
type StationRef struct {
	ID         string  `json:"station_id" dynamodbav:"station_id"`
	Name       string  `json:"station_name" dynamodbav:"station_name"`
	DistanceKM float64 `json:"distance_km" dynamodbav:"distance_km"`
}

// Location is a user-defined point of interest.
type Location struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Coordinate Coordinate  `json:"coordinate"`
	Station    *StationRef `json:"station,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// NewLocation builds a Location with a fresh ID and creation time. The station
// reference is left unset.
func NewLocation(name string, coord Coordinate) Location {
	now := clock.Now().UTC()
	return Location{
		ID:         uuid.NewString(),
		Name:       name,
		Coordinate: coord,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// WithStation returns a copy of loc referencing match's station.
func (loc Location) WithStation(match StationMatch) Location {
	loc.Station = &StationRef{
		ID:         match.Station.ID,
		Name:       match.Station.Name,
		DistanceKM: match.DistanceKM,
	}
	loc.UpdatedAt = clock.Now().UTC()
	return loc
}

// StationID returns the resolved station ID, or "" when none is set.
func (loc Location) StationID() string {
	if loc.Station == nil {
		return ""
	}
	return loc.Station.ID
}
