package sqlite

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/satellite-climate-service/internal/domain"
)

// Seed is the JSON reference-data file the catalog is provisioned from.
type Seed struct {
	Stations []SeedStation `json:"stations"`
	Normals  []SeedNormal  `json:"normals"`
}

type SeedStation struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Elevation *float64 `json:"elevation,omitempty"`
}

type SeedNormal struct {
	StationID string  `json:"station_id"`
	Month     int     `json:"month"`
	Avg       float64 `json:"avg"`
	Max       float64 `json:"max"`
	Min       float64 `json:"min"`
}

// LoadSeed reads and decodes a seed file.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	var s Seed
	if err := json.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return s, nil
}

func (s SeedStation) station() domain.WeatherStation {
	return domain.WeatherStation{
		ID:         s.ID,
		Name:       s.Name,
		Coordinate: domain.Coordinate{Lat: s.Lat, Lon: s.Lon},
		Elevation:  s.Elevation,
	}
}

func (n SeedNormal) normal() domain.ClimateNormal {
	return domain.ClimateNormal{
		StationID: n.StationID,
		Month:     time.Month(n.Month),
		Avg:       n.Avg,
		Max:       n.Max,
		Min:       n.Min,
	}
}

// Report is the outcome of Seed.Check. Errors make the seed unusable;
// warnings are informational.
type Report struct {
	Errors   []error
	Warnings []string
}

// Err joins all errors, or returns nil when there are none.
func (r Report) Err() error {
	return errors.Join(r.Errors...)
}

// Check runs integrity checks over the seed: coordinate ranges, unique
// station IDs, valid normals, no duplicate (station, month) pairs, no normals
// for unknown stations. Stations with fewer than twelve months are warnings.
func (s Seed) Check() Report {
	var r Report

	stations := make(map[string]bool, len(s.Stations))
	for i, st := range s.Stations {
		if st.ID == "" {
			r.Errors = append(r.Errors, fmt.Errorf("station[%d]: id is required", i))
			continue
		}
		if stations[st.ID] {
			r.Errors = append(r.Errors, fmt.Errorf("station %s: duplicate id", st.ID))
		}
		stations[st.ID] = true
		if st.Name == "" {
			r.Errors = append(r.Errors, fmt.Errorf("station %s: name is required", st.ID))
		}
		if err := domain.ValidateCoordinate(domain.Coordinate{Lat: st.Lat, Lon: st.Lon}); err != nil {
			r.Errors = append(r.Errors, fmt.Errorf("station %s: %w", st.ID, err))
		}
	}

	type key struct {
		station string
		month   int
	}
	seen := make(map[key]bool, len(s.Normals))
	months := make(map[string]int, len(stations))
	for _, n := range s.Normals {
		if err := n.normal().Validate(); err != nil {
			r.Errors = append(r.Errors, err)
			continue
		}
		if !stations[n.StationID] {
			r.Errors = append(r.Errors, fmt.Errorf("climate normal %s/%d: unknown station", n.StationID, n.Month))
		}
		k := key{n.StationID, n.Month}
		if seen[k] {
			r.Errors = append(r.Errors, fmt.Errorf("climate normal %s/%d: duplicate month", n.StationID, n.Month))
			continue
		}
		seen[k] = true
		months[n.StationID]++
	}

	for _, st := range s.Stations {
		if st.ID != "" && months[st.ID] < 12 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("station %s: %d of 12 monthly normals", st.ID, months[st.ID]))
		}
	}
	return r
}
