package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrPlaceNotFound is returned when forward geocoding yields no coordinates.
var ErrPlaceNotFound = errors.New("place not found")

// NameForCoordinate picks a display name for c by reverse geocoding. Any
// failure degrades to DefaultLocationName.
func NameForCoordinate(ctx context.Context, c Coordinate, geocoder Geocoder, logger *slog.Logger) string {
	if geocoder == nil {
		return DefaultLocationName
	}

	result, err := geocoder.ReverseGeocode(ctx, c.Lat, c.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", c.Lat,
			"lon", c.Lon,
			"error", err,
		)
		return DefaultLocationName
	}

	name := SanitizeName(result.PlaceName)
	if name == "" {
		name = SanitizeName(result.FormattedAddress)
	}
	if name == "" {
		return DefaultLocationName
	}
	return name
}

// CoordinateForPlace forward geocodes a place name. The returned name is the
// provider's canonical place name when one is given.
func CoordinateForPlace(ctx context.Context, place, region string, geocoder Geocoder) (Coordinate, string, error) {
	if geocoder == nil {
		return Coordinate{}, "", errors.New("geocoding is not enabled")
	}

	result, err := geocoder.ForwardGeocode(ctx, place, region)
	if err != nil {
		return Coordinate{}, "", fmt.Errorf("forward geocode %q: %w", place, err)
	}
	if result.Lat == 0 && result.Lon == 0 {
		return Coordinate{}, "", fmt.Errorf("%w: %q", ErrPlaceNotFound, place)
	}

	c := Coordinate{Lat: result.Lat, Lon: result.Lon}
	if err := ValidateCoordinate(c); err != nil {
		return Coordinate{}, "", err
	}
	name := SanitizeName(result.PlaceName)
	if name == "" {
		name = SanitizeName(place)
	}
	return c, name, nil
}
