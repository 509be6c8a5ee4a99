package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNormalNotFound marks a missing climate normal for a station and month.
// Compare never returns it directly; it is reported through ComparisonResult.
var ErrNormalNotFound = errors.New("climate normal not found")

// ClimateNormal is the official monthly temperature normal for a station, in °C.
type ClimateNormal struct {
	StationID string     `json:"station_id"`
	Month     time.Month `json:"month"`
	Avg       float64    `json:"avg_temp"`
	Max       float64    `json:"max_temp"`
	Min       float64    `json:"min_temp"`
}

// Validate checks the month range and min <= avg <= max.
func (n ClimateNormal) Validate() error {
	if n.StationID == "" {
		return errors.New("climate normal: station id is required")
	}
	if n.Month < time.January || n.Month > time.December {
		return fmt.Errorf("climate normal %s: month %d out of range [1, 12]", n.StationID, n.Month)
	}
	if n.Min > n.Avg || n.Avg > n.Max {
		return fmt.Errorf("climate normal %s/%d: expected min <= avg <= max, got %v/%v/%v",
			n.StationID, n.Month, n.Min, n.Avg, n.Max)
	}
	return nil
}

// NormalsByMonth holds up to twelve normals for one station, keyed by month.
// Missing months are expected and must be tolerated.
type NormalsByMonth map[time.Month]ClimateNormal

// NewNormalsByMonth indexes normals by month. Later entries for the same month
// replace earlier ones.
func NewNormalsByMonth(normals []ClimateNormal) NormalsByMonth {
	m := make(NormalsByMonth, len(normals))
	for _, n := range normals {
		m[n.Month] = n
	}
	return m
}

// Lookup returns the normal for month, or ErrNormalNotFound.
func (m NormalsByMonth) Lookup(month time.Month) (ClimateNormal, error) {
	n, ok := m[month]
	if !ok {
		return ClimateNormal{}, fmt.Errorf("%w: month %d", ErrNormalNotFound, month)
	}
	return n, nil
}

// GroupNormalsByStation splits a flat list of normals per station.
func GroupNormalsByStation(normals []ClimateNormal) map[string]NormalsByMonth {
	out := make(map[string]NormalsByMonth)
	for _, n := range normals {
		m, ok := out[n.StationID]
		if !ok {
			m = make(NormalsByMonth, 12)
			out[n.StationID] = m
		}
		m[n.Month] = n
	}
	return out
}
