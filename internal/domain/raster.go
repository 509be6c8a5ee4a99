package domain

import (
	"errors"
	"fmt"
	"math"
)

// Grid is a gridded product with per-cell latitude and longitude.
// All three matrices share the same shape.
type Grid struct {
	Lat    [][]float64
	Lon    [][]float64
	Values [][]float64
}

// WindowStats summarises the cells around a sampled pixel.
type WindowStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	// MeanCelsius is set for temperature products.
	MeanCelsius *float64 `json:"mean_celsius,omitempty"`
}

var errEmptyGrid = errors.New("grid is empty")

// NearestPixel returns the cell whose center is closest to c, measured as the
// planar distance in degrees. The first minimum in row-major order wins.
func NearestPixel(g Grid, c Coordinate) (row, col int, err error) {
	if len(g.Values) == 0 || len(g.Values[0]) == 0 {
		return 0, 0, errEmptyGrid
	}
	if len(g.Lat) != len(g.Values) || len(g.Lon) != len(g.Values) {
		return 0, 0, errors.New("grid coordinate and value shapes differ")
	}
	for i, vals := range g.Values {
		if len(g.Lat[i]) != len(vals) || len(g.Lon[i]) != len(vals) {
			return 0, 0, fmt.Errorf("grid row %d: coordinate and value lengths differ", i)
		}
	}
	best := math.Inf(1)
	for i := range g.Lat {
		for j := range g.Lat[i] {
			dLat := g.Lat[i][j] - c.Lat
			dLon := g.Lon[i][j] - c.Lon
			d := dLat*dLat + dLon*dLon
			if d < best {
				best, row, col = d, i, j
			}
		}
	}
	return row, col, nil
}

// WindowStats computes mean, population standard deviation, min and max over a
// size x size window centred on (row, col), clipped to the grid. NaN cells are
// skipped. ok is false when the window holds no valid cells.
func (g Grid) WindowStats(row, col, size int) (stats WindowStats, ok bool) {
	half := size / 2
	iStart, iEnd := max(0, row-half), min(len(g.Values), row+half+1)

	var vals []float64
	for i := iStart; i < iEnd; i++ {
		jStart, jEnd := max(0, col-half), min(len(g.Values[i]), col+half+1)
		for j := jStart; j < jEnd; j++ {
			if v := g.Values[i][j]; !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
	}
	if len(vals) == 0 {
		return WindowStats{}, false
	}

	stats.Min, stats.Max = vals[0], vals[0]
	var sum float64
	for _, v := range vals {
		sum += v
		stats.Min = min(stats.Min, v)
		stats.Max = max(stats.Max, v)
	}
	stats.Mean = sum / float64(len(vals))

	var sq float64
	for _, v := range vals {
		sq += (v - stats.Mean) * (v - stats.Mean)
	}
	stats.Std = math.Sqrt(sq / float64(len(vals)))
	return stats, true
}

// Product names used in collector messages.
const (
	ProductLST  = "LST"
	ProductNDVI = "NDVI"
)

// SampleProduct extracts the pixel nearest to c plus its 5x5 window
// statistics. For LST the grid is in Kelvin and Celsius fields are filled in.
func SampleProduct(g Grid, c Coordinate, product string) (ProductReading, error) {
	row, col, err := NearestPixel(g, c)
	if err != nil {
		return ProductReading{}, err
	}
	value := g.Values[row][col]
	reading := ProductReading{
		Dataset:    product,
		PixelValue: ptr(value),
		PixelLocation: &PixelLocation{
			Row:       row,
			Col:       col,
			Latitude:  g.Lat[row][col],
			Longitude: g.Lon[row][col],
		},
	}
	if stats, ok := g.WindowStats(row, col, 5); ok {
		if product == ProductLST {
			stats.MeanCelsius = ptr(KelvinToCelsius(stats.Mean))
		}
		reading.WindowStatistics = &stats
	}
	if product == ProductLST {
		reading.PixelValueCelsius = ptr(KelvinToCelsius(value))
	}
	return reading, nil
}
