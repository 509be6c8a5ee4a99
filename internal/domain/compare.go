package domain

import "errors"

// ErrNoStation marks a comparison requested for a location without a resolved station.
var ErrNoStation = errors.New("location has no resolved station")

// Missing explains why a ComparisonResult carries no deviation.
type Missing string

const (
	MissingNone    Missing = ""
	MissingStation Missing = "no_station"
	MissingNormal  Missing = "normal_not_found"
	MissingLST     Missing = "no_lst"
)

// Status is the three-way warmer / cooler / normal label of a comparison.
type Status string

const (
	StatusUnknown Status = ""
	StatusWarmer  Status = "warmer"
	StatusCooler  Status = "cooler"
	StatusNormal  Status = "normal"
)

// Deviation is the numeric comparison of an observed LST against a normal.
type Deviation struct {
	Difference float64 `json:"difference"`
	// DeviationPercent is nil when the normal's average is exactly zero.
	DeviationPercent *float64 `json:"relative_deviation_percent"`
	IsAboveNormal    bool     `json:"is_above_normal"`
}

// ComparisonResult joins one observation with its month's normal. Absence is
// explicit: a nil Deviation never means a zero deviation.
type ComparisonResult struct {
	Date      Date           `json:"date"`
	StationID string         `json:"station_id,omitempty"`
	Observed  *float64       `json:"observed"`
	NDVI      *float64       `json:"ndvi"`
	Normal    *ClimateNormal `json:"normal"`
	Deviation *Deviation     `json:"deviation"`
	Missing   Missing        `json:"missing,omitempty"`
}

// Err maps the absence reason to a sentinel error, or nil when compared.
func (r ComparisonResult) Err() error {
	switch r.Missing {
	case MissingNormal:
		return ErrNormalNotFound
	case MissingStation:
		return ErrNoStation
	default:
		return nil
	}
}

// Status labels the result by comparing the unrounded observation with the
// average, the same partition as IsAboveNormal. Equality with the average is
// normal. A reading just below the average is cooler even when its rounded
// difference is 0.
func (r ComparisonResult) Status() Status {
	if r.Deviation == nil || r.Observed == nil || r.Normal == nil {
		return StatusUnknown
	}
	switch {
	case r.Deviation.IsAboveNormal:
		return StatusWarmer
	case *r.Observed < r.Normal.Avg:
		return StatusCooler
	default:
		return StatusNormal
	}
}

// Compare computes the deviation of obs from the normal for the observation's
// calendar month at stationID. Missing data never produces an error; the
// result's Missing field says what was absent. The normal is looked up first,
// so an observation lacking LST still carries its month's normal.
func Compare(obs Observation, stationID string, normals NormalsByMonth) ComparisonResult {
	res := ComparisonResult{
		Date:      obs.Date,
		StationID: stationID,
		Observed:  obs.LST,
		NDVI:      obs.NDVI,
	}

	if stationID == "" {
		res.Missing = MissingStation
		return res
	}

	normal, err := normals.Lookup(obs.Date.Month)
	if err != nil {
		res.Missing = MissingNormal
		return res
	}
	res.Normal = &normal

	if obs.LST == nil {
		res.Missing = MissingLST
		return res
	}

	observed := *obs.LST
	diff := round(observed-normal.Avg, 2)
	dev := &Deviation{
		Difference:    diff,
		IsAboveNormal: observed > normal.Avg,
	}
	if normal.Avg != 0 {
		dev.DeviationPercent = ptr(round(diff/normal.Avg*100, 2))
	}
	res.Deviation = dev
	return res
}

// Summary aggregates a run of comparison results.
type Summary struct {
	Count          int      `json:"count"`
	Compared       int      `json:"compared"`
	Warmer         int      `json:"warmer"`
	Cooler         int      `json:"cooler"`
	Normal         int      `json:"normal"`
	MeanDifference *float64 `json:"mean_difference"`
}

// Summarize counts statuses and averages the difference over compared rows.
func Summarize(results []ComparisonResult) Summary {
	s := Summary{Count: len(results)}
	var total float64
	for _, r := range results {
		switch r.Status() {
		case StatusWarmer:
			s.Warmer++
		case StatusCooler:
			s.Cooler++
		case StatusNormal:
			s.Normal++
		default:
			continue
		}
		s.Compared++
		total += r.Deviation.Difference
	}
	if s.Compared > 0 {
		s.MeanDifference = ptr(round(total/float64(s.Compared), 2))
	}
	return s
}
