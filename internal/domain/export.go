package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrNoDataInRange is returned when an export has no observations to emit.
var ErrNoDataInRange = errors.New("no observations in range")

// ExportHeader is the CSV header row for exports.
var ExportHeader = []string{"date", "location_name", "latitude", "longitude", "lst", "ndvi", "normal_max", "normal_min"}

// ExportRow is one observation joined with its month's normal bounds.
type ExportRow struct {
	Date         Date
	LocationName string
	Latitude     float64
	Longitude    float64
	LST          *float64
	NDVI         *float64
	NormalMax    *float64
	NormalMin    *float64
}

// BuildExportRows emits one row per observation, in input order. normals is the
// pre-fetched month map for the location's station; it is ignored when the
// location has no resolved station.
func BuildExportRows(loc Location, observations []Observation, normals NormalsByMonth) ([]ExportRow, error) {
	if len(observations) == 0 {
		return nil, ErrNoDataInRange
	}

	hasStation := loc.Station != nil
	rows := make([]ExportRow, 0, len(observations))
	for _, o := range observations {
		row := ExportRow{
			Date:         o.Date,
			LocationName: loc.Name,
			Latitude:     loc.Coordinate.Lat,
			Longitude:    loc.Coordinate.Lon,
			LST:          o.LST,
			NDVI:         o.NDVI,
		}
		if hasStation {
			if n, ok := normals[o.Date.Month]; ok {
				row.NormalMax = ptr(n.Max)
				row.NormalMin = ptr(n.Min)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Record renders the row as CSV fields. Absent values are empty strings.
func (r ExportRow) Record() []string {
	return []string{
		r.Date.String(),
		r.LocationName,
		strconv.FormatFloat(r.Latitude, 'f', 4, 64),
		strconv.FormatFloat(r.Longitude, 'f', 4, 64),
		formatOptional(r.LST, 2),
		formatOptional(r.NDVI, 3),
		formatOptional(r.NormalMax, 2),
		formatOptional(r.NormalMin, 2),
	}
}

// WriteCSV writes the header followed by one line per row.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.Date, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatOptional(v *float64, places int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', places, 64)
}
