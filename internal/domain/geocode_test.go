package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock geocoder ---

type mockGeocoder struct {
	forwardResult GeocodingResult
	forwardErr    error
	reverseResult GeocodingResult
	reverseErr    error
	forwardCalls  int
	reverseCalls  int
}

func (m *mockGeocoder) ForwardGeocode(_ context.Context, _, _ string) (GeocodingResult, error) {
	m.forwardCalls++
	return m.forwardResult, m.forwardErr
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (GeocodingResult, error) {
	m.reverseCalls++
	return m.reverseResult, m.reverseErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestNameForCoordinate(t *testing.T) {
	c := Coordinate{Lat: 32.8032, Lon: 130.7075}

	tests := []struct {
		name     string
		geocoder *mockGeocoder
		want     string
	}{
		{"place name", &mockGeocoder{reverseResult: GeocodingResult{PlaceName: "Chuo Ward", FormattedAddress: "Chuo Ward, Kumamoto, Japan"}}, "Chuo Ward"},
		{"address fallback", &mockGeocoder{reverseResult: GeocodingResult{FormattedAddress: "Kumamoto, Japan"}}, "Kumamoto, Japan"},
		{"markup stripped", &mockGeocoder{reverseResult: GeocodingResult{PlaceName: "<b>Kumamoto</b>"}}, "Kumamoto"},
		{"empty result", &mockGeocoder{}, DefaultLocationName},
		{"error", &mockGeocoder{reverseErr: errors.New("timeout")}, DefaultLocationName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NameForCoordinate(context.Background(), c, tt.geocoder, discardLogger())
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, tt.geocoder.reverseCalls)
		})
	}
}

func TestNameForCoordinate_NilGeocoder(t *testing.T) {
	got := NameForCoordinate(context.Background(), Coordinate{}, nil, discardLogger())
	assert.Equal(t, DefaultLocationName, got)
}

func TestCoordinateForPlace(t *testing.T) {
	geo := &mockGeocoder{forwardResult: GeocodingResult{Lat: 32.8031, Lon: 130.7079, PlaceName: "Kumamoto"}}

	c, name, err := CoordinateForPlace(context.Background(), "kumamoto", "JP", geo)

	require.NoError(t, err)
	assert.Equal(t, Coordinate{Lat: 32.8031, Lon: 130.7079}, c)
	assert.Equal(t, "Kumamoto", name)
	assert.Equal(t, 1, geo.forwardCalls)
}

func TestCoordinateForPlace_Failures(t *testing.T) {
	t.Run("nil geocoder", func(t *testing.T) {
		_, _, err := CoordinateForPlace(context.Background(), "x", "", nil)
		assert.Error(t, err)
	})

	t.Run("not found", func(t *testing.T) {
		_, _, err := CoordinateForPlace(context.Background(), "nowhere", "", &mockGeocoder{})
		assert.ErrorIs(t, err, ErrPlaceNotFound)
	})

	t.Run("provider error", func(t *testing.T) {
		_, _, err := CoordinateForPlace(context.Background(), "x", "", &mockGeocoder{forwardErr: errors.New("boom")})
		assert.ErrorContains(t, err, "boom")
	})
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Kumamoto   Castle ", "Kumamoto Castle"},
		{"<script>alert(1)</script>Field A", "alert(1)Field A"},
		{"<b></b>", ""},
		{"熊本城", "熊本城"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), tt.in)
	}

	long := make([]rune, MaxNameLength+20)
	for i := range long {
		long[i] = 'あ'
	}
	assert.Len(t, []rune(SanitizeName(string(long))), MaxNameLength)

	_, err := ValidateName("<i> </i>")
	assert.Error(t, err)
}
