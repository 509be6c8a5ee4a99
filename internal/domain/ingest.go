package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// KelvinOffset converts Kelvin to degrees Celsius.
const KelvinOffset = 273.15

// RawEvent is an unprocessed message from the ingest topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ObservationMessage is the JSON document published by the satellite collector
// for one location and day.
type ObservationMessage struct {
	LocationID      string          `json:"location_id"`
	ObservationDate string          `json:"observation_date"`
	DataSource      string          `json:"data_source,omitempty"`
	ProcessingTime  string          `json:"processing_time,omitempty"`
	Observations    ProductReadings `json:"observations"`
}

// ProductReadings holds the per-product extraction results.
type ProductReadings struct {
	LST  *ProductReading `json:"lst,omitempty"`
	NDVI *ProductReading `json:"ndvi,omitempty"`
}

// ProductReading is one product's pixel sample. Error is set instead of values
// when extraction failed upstream.
type ProductReading struct {
	Dataset           string         `json:"dataset,omitempty"`
	PixelValue        *float64       `json:"pixel_value,omitempty"`
	PixelValueCelsius *float64       `json:"pixel_value_celsius,omitempty"`
	PixelLocation     *PixelLocation `json:"pixel_location,omitempty"`
	WindowStatistics  *WindowStats   `json:"window_statistics,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// PixelLocation is the grid cell a sample was taken from.
type PixelLocation struct {
	Row       int     `json:"row"`
	Col       int     `json:"col"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// KelvinToCelsius converts a temperature in Kelvin.
func KelvinToCelsius(k float64) float64 {
	return k - KelvinOffset
}

// ParseObservationMessage decodes a collector message into an Observation.
// LST is taken in °C, converting from Kelvin when only the raw pixel value is
// present, and rounded to 2 places; NDVI is rounded to 3 places. A product that
// reports an error is treated as absent. The location ID falls back to the
// message key when the body omits it.
func ParseObservationMessage(raw RawEvent) (Observation, error) {
	var msg ObservationMessage
	if err := json.Unmarshal(raw.Value, &msg); err != nil {
		return Observation{}, fmt.Errorf("%w: decode: %v", ErrInvalidObservation, err)
	}

	locationID := strings.TrimSpace(msg.LocationID)
	if locationID == "" {
		locationID = strings.TrimSpace(string(raw.Key))
	}
	if locationID == "" {
		return Observation{}, fmt.Errorf("%w: location_id is required", ErrInvalidObservation)
	}

	date, err := ParseDate(strings.TrimSpace(msg.ObservationDate))
	if err != nil {
		return Observation{}, fmt.Errorf("%w: %v", ErrInvalidObservation, err)
	}

	lst, err := parseLST(msg.Observations.LST)
	if err != nil {
		return Observation{}, err
	}
	ndvi, err := parseNDVI(msg.Observations.NDVI)
	if err != nil {
		return Observation{}, err
	}
	if lst == nil && ndvi == nil {
		return Observation{}, fmt.Errorf("%w: no usable lst or ndvi reading for %s on %s",
			ErrInvalidObservation, locationID, date)
	}

	source := msg.DataSource
	if source == "" {
		source = raw.Headers["data_source"]
	}

	return Observation{
		LocationID: locationID,
		Date:       date,
		LST:        lst,
		NDVI:       ndvi,
		DataSource: source,
		IngestedAt: clock.Now().UTC(),
	}, nil
}

func parseLST(r *ProductReading) (*float64, error) {
	if r == nil || r.Error != "" {
		return nil, nil
	}
	var c float64
	switch {
	case r.PixelValueCelsius != nil:
		c = *r.PixelValueCelsius
	case r.PixelValue != nil:
		c = KelvinToCelsius(*r.PixelValue)
	default:
		return nil, nil
	}
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return nil, fmt.Errorf("%w: lst is not a finite number", ErrInvalidObservation)
	}
	return ptr(round(c, 2)), nil
}

func parseNDVI(r *ProductReading) (*float64, error) {
	if r == nil || r.Error != "" || r.PixelValue == nil {
		return nil, nil
	}
	v := *r.PixelValue
	if math.IsNaN(v) || v < 0 || v > 1 {
		return nil, fmt.Errorf("%w: ndvi %v out of range [0, 1]", ErrInvalidObservation, v)
	}
	return ptr(round(v, 3)), nil
}
