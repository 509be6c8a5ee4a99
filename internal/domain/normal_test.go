package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClimateNormal_Validate(t *testing.T) {
	tests := []struct {
		name    string
		n       ClimateNormal
		wantErr bool
	}{
		{"valid", kumamotoJanuary, false},
		{"flat", ClimateNormal{StationID: "s", Month: time.July, Avg: 20, Max: 20, Min: 20}, false},
		{"missing station", ClimateNormal{Month: time.July}, true},
		{"month zero", ClimateNormal{StationID: "s", Month: 0}, true},
		{"month thirteen", ClimateNormal{StationID: "s", Month: 13}, true},
		{"avg above max", ClimateNormal{StationID: "s", Month: time.July, Avg: 30, Max: 25, Min: 20}, true},
		{"min above avg", ClimateNormal{StationID: "s", Month: time.July, Avg: 20, Max: 25, Min: 21}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantErr {
				assert.Error(t, tt.n.Validate())
			} else {
				assert.NoError(t, tt.n.Validate())
			}
		})
	}
}

func TestNormalsByMonth(t *testing.T) {
	m := NewNormalsByMonth([]ClimateNormal{kumamotoJanuary})

	n, err := m.Lookup(time.January)
	require.NoError(t, err)
	assert.Equal(t, 6.5, n.Avg)

	_, err = m.Lookup(time.August)
	assert.ErrorIs(t, err, ErrNormalNotFound)

	var empty NormalsByMonth
	_, err = empty.Lookup(time.January)
	assert.ErrorIs(t, err, ErrNormalNotFound)
}

func TestGroupNormalsByStation(t *testing.T) {
	grouped := GroupNormalsByStation([]ClimateNormal{
		kumamotoJanuary,
		{StationID: "47807", Month: time.January, Avg: 6.9, Max: 10.1, Min: 3.5},
		{StationID: "47819", Month: time.February, Avg: 7.9, Max: 12.6, Min: 3.4},
	})

	require.Len(t, grouped, 2)
	assert.Len(t, grouped["47819"], 2)
	assert.Len(t, grouped["47807"], 1)
}

func TestLocation_WithStation(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := clockwork.NewFakeClockAt(created)
	SetClock(fake)
	t.Cleanup(func() { SetClock(nil) })

	loc := NewLocation("Field A", Coordinate{Lat: 32.8032, Lon: 130.7075})
	assert.NotEmpty(t, loc.ID)
	assert.Equal(t, created, loc.CreatedAt)
	assert.Empty(t, loc.StationID())

	fake.Advance(time.Hour)
	updated := loc.WithStation(StationMatch{Station: kumamoto, DistanceKM: 1.17})

	assert.Nil(t, loc.Station, "original is unchanged")
	assert.Equal(t, "47819", updated.StationID())
	assert.Equal(t, "Kumamoto", updated.Station.Name)
	assert.Equal(t, 1.17, updated.Station.DistanceKM)
	assert.Equal(t, created.Add(time.Hour), updated.UpdatedAt)
	assert.Equal(t, created, updated.CreatedAt)
}
