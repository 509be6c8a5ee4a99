package httpadapter_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/satellite-climate-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/satellite-climate-service/internal/climate"
	"github.com/couchcryptid/satellite-climate-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func fptr(v float64) *float64 { return &v }

var kumamotoLocation = domain.Location{
	ID:         "loc-1",
	Name:       "Kumamoto Field",
	Coordinate: domain.Coordinate{Lat: 32.8032, Lon: 130.7075},
	Station:    &domain.StationRef{ID: "47819", Name: "Kumamoto", DistanceKM: 1.17},
	CreatedAt:  time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
	UpdatedAt:  time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
}

// fakeService records the last request and returns canned answers.
type fakeService struct {
	err       error
	created   climate.NewLocation
	rangeSeen domain.DateRange
	dateSeen  domain.Date
	rows      []domain.ExportRow
	result    domain.ComparisonResult
}

func (f *fakeService) Stations() []domain.WeatherStation {
	return []domain.WeatherStation{{ID: "47819", Name: "Kumamoto", Coordinate: domain.Coordinate{Lat: 32.8136, Lon: 130.7056}}}
}

func (f *fakeService) NearestStation(_ context.Context, c domain.Coordinate) (domain.StationMatch, error) {
	if err := domain.ValidateCoordinate(c); err != nil {
		return domain.StationMatch{}, fmt.Errorf("%w: %v", climate.ErrInvalidInput, err)
	}
	if f.err != nil {
		return domain.StationMatch{}, f.err
	}
	return domain.StationMatch{Station: f.Stations()[0], DistanceKM: 1.17}, nil
}

func (f *fakeService) CreateLocation(_ context.Context, req climate.NewLocation) (domain.Location, error) {
	f.created = req
	if f.err != nil {
		return domain.Location{}, f.err
	}
	return kumamotoLocation, nil
}

func (f *fakeService) GetLocation(_ context.Context, id string) (domain.Location, error) {
	if id != kumamotoLocation.ID {
		return domain.Location{}, climate.ErrLocationNotFound
	}
	return kumamotoLocation, f.err
}

func (f *fakeService) ListLocations(context.Context) ([]domain.Location, error) {
	return nil, f.err
}

func (f *fakeService) DeleteLocation(_ context.Context, id string) error {
	if id != kumamotoLocation.ID {
		return climate.ErrLocationNotFound
	}
	return f.err
}

func (f *fakeService) ResolveStation(_ context.Context, id string) (domain.Location, error) {
	if f.err != nil {
		return domain.Location{}, f.err
	}
	return f.GetLocation(context.Background(), id)
}

func (f *fakeService) CompareDate(_ context.Context, _ string, date domain.Date) (domain.ComparisonResult, error) {
	f.dateSeen = date
	return f.result, f.err
}

func (f *fakeService) CompareRange(_ context.Context, _ string, r domain.DateRange) (climate.RangeComparison, error) {
	f.rangeSeen = r
	if f.err != nil {
		return climate.RangeComparison{}, f.err
	}
	results := []domain.ComparisonResult{f.result}
	return climate.RangeComparison{Location: kumamotoLocation, Results: results, Summary: domain.Summarize(results)}, nil
}

func (f *fakeService) Export(_ context.Context, _ string, r domain.DateRange) (domain.Location, []domain.ExportRow, error) {
	f.rangeSeen = r
	if f.err != nil {
		return domain.Location{}, nil, f.err
	}
	return kumamotoLocation, f.rows, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(svc *fakeService, readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", svc, &mockReadiness{err: readyErr}, discardLogger())
}

func do(t *testing.T, srv http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- health ---

func TestHealthzReturns200(t *testing.T) {
	rec := do(t, newTestServer(&fakeService{}, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	assert.Equal(t, http.StatusOK, do(t, newTestServer(&fakeService{}, nil), http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		do(t, newTestServer(&fakeService{}, errors.New("not ready yet")), http.MethodGet, "/readyz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(&fakeService{}, nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestReadiness_AllMustPass(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, httpadapter.Readiness{}.CheckReadiness(ctx))
	assert.NoError(t, httpadapter.Readiness{&mockReadiness{}, &mockReadiness{}}.CheckReadiness(ctx))

	err := httpadapter.Readiness{&mockReadiness{}, &mockReadiness{err: domain.ErrEmptyCatalog}}.CheckReadiness(ctx)
	assert.ErrorIs(t, err, domain.ErrEmptyCatalog)
}

// --- stations ---

func TestStations(t *testing.T) {
	srv := newTestServer(&fakeService{}, nil)

	rec := do(t, srv, http.MethodGet, "/v1/stations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stations := decode(t, rec)["stations"].([]any)
	assert.Len(t, stations, 1)

	rec = do(t, srv, http.MethodGet, "/v1/stations/nearest?lat=32.8032&lon=130.7075", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.17, decode(t, rec)["distance_km"])
}

func TestNearestStation_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		status int
	}{
		{name: "missing lat", target: "/v1/stations/nearest?lon=130", status: http.StatusBadRequest},
		{name: "not a number", target: "/v1/stations/nearest?lat=abc&lon=130", status: http.StatusBadRequest},
		{name: "out of range", target: "/v1/stations/nearest?lat=91&lon=130", status: http.StatusBadRequest},
		{name: "empty catalog", target: "/v1/stations/nearest?lat=32&lon=130", err: domain.ErrEmptyCatalog, status: http.StatusServiceUnavailable},
		{name: "unexpected", target: "/v1/stations/nearest?lat=32&lon=130", err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(&fakeService{err: tt.err}, nil), http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	rec := do(t, newTestServer(&fakeService{err: errors.New("pq: password authentication failed")}, nil),
		http.MethodGet, "/v1/locations", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", decode(t, rec)["error"])
}

// --- locations ---

func TestCreateLocation(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(svc, nil)

	rec := do(t, srv, http.MethodPost, "/v1/locations", `{"name":"Kumamoto Field","latitude":32.8032,"longitude":130.7075}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/v1/locations/loc-1", rec.Header().Get("Location"))
	require.NotNil(t, svc.created.Coordinate)
	assert.Equal(t, domain.Coordinate{Lat: 32.8032, Lon: 130.7075}, *svc.created.Coordinate)
	assert.Equal(t, "Kumamoto Field", svc.created.Name)

	body := decode(t, rec)
	station := body["station"].(map[string]any)
	assert.Equal(t, "47819", station["station_id"])
}

func TestCreateLocation_ByPlace(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, newTestServer(svc, nil), http.MethodPost, "/v1/locations", `{"place":"Kumamoto Castle","region":"Kumamoto"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, svc.created.Coordinate)
	assert.Equal(t, "Kumamoto Castle", svc.created.Place)
	assert.Equal(t, "Kumamoto", svc.created.Region)
}

func TestCreateLocation_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"latitude":`},
		{name: "unknown field", body: `{"lat":32.8}`},
		{name: "latitude only", body: `{"latitude":32.8}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(&fakeService{}, nil), http.MethodPost, "/v1/locations", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListLocations_EmptyIsArray(t *testing.T) {
	rec := do(t, newTestServer(&fakeService{}, nil), http.MethodGet, "/v1/locations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"locations":[]}`, rec.Body.String())
}

func TestLocationByID(t *testing.T) {
	srv := newTestServer(&fakeService{}, nil)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/v1/locations/loc-1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/v1/locations/missing", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/v1/locations/loc-1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/v1/locations/missing", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/v1/locations/loc-1/resolve-station", "").Code)
}

func TestResolveStation_EmptyCatalog(t *testing.T) {
	rec := do(t, newTestServer(&fakeService{err: domain.ErrEmptyCatalog}, nil),
		http.MethodPost, "/v1/locations/loc-1/resolve-station", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// --- comparisons ---

func TestCompareDate(t *testing.T) {
	normal := domain.ClimateNormal{StationID: "47819", Month: time.January, Avg: 6.5, Max: 10.9, Min: 2.4}
	date := domain.Date{Year: 2026, Month: time.January, Day: 8}
	svc := &fakeService{
		result: domain.Compare(domain.Observation{LocationID: "loc-1", Date: date, LST: fptr(18.23)}, "47819",
			domain.NewNormalsByMonth([]domain.ClimateNormal{normal})),
	}

	rec := do(t, newTestServer(svc, nil), http.MethodGet, "/v1/locations/loc-1/comparison?date=2026-01-08", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, date, svc.dateSeen)
	body := decode(t, rec)
	assert.Equal(t, "2026-01-08", body["date"])
	assert.Equal(t, "warmer", body["status"])
	deviation := body["deviation"].(map[string]any)
	assert.Equal(t, 11.73, deviation["difference"])
	assert.Equal(t, 180.46, deviation["relative_deviation_percent"])
	assert.Equal(t, true, deviation["is_above_normal"])
}

func TestCompareDate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		status int
	}{
		{name: "missing date", target: "/v1/locations/loc-1/comparison", status: http.StatusBadRequest},
		{name: "impossible date", target: "/v1/locations/loc-1/comparison?date=2026-02-30", status: http.StatusBadRequest},
		{name: "no observation", target: "/v1/locations/loc-1/comparison?date=2026-01-08", err: climate.ErrObservationNotFound, status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(&fakeService{err: tt.err}, nil), http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestCompareRange(t *testing.T) {
	svc := &fakeService{
		result: domain.ComparisonResult{Date: domain.Date{Year: 2026, Month: time.January, Day: 9}, Missing: domain.MissingLST},
	}

	rec := do(t, newTestServer(svc, nil), http.MethodGet, "/v1/locations/loc-1/comparisons?from=2026-01-01&to=2026-01-31", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.Date{Year: 2026, Month: time.January, Day: 1}, svc.rangeSeen.From)
	assert.Equal(t, domain.Date{Year: 2026, Month: time.January, Day: 31}, svc.rangeSeen.To)

	body := decode(t, rec)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "no_lst", first["missing"])
	assert.NotContains(t, first, "status")
	assert.Equal(t, float64(1), body["summary"].(map[string]any)["count"])
}

func TestCompareRange_BadBounds(t *testing.T) {
	rec := do(t, newTestServer(&fakeService{}, nil), http.MethodGet, "/v1/locations/loc-1/comparisons?from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- export ---

func TestExportCSV(t *testing.T) {
	svc := &fakeService{rows: []domain.ExportRow{
		{Date: domain.Date{Year: 2026, Month: time.January, Day: 8}, LocationName: "Kumamoto Field",
			Latitude: 32.8032, Longitude: 130.7075, LST: fptr(18.23), NDVI: fptr(0.612), NormalMax: fptr(10.9), NormalMin: fptr(2.4)},
		{Date: domain.Date{Year: 2026, Month: time.January, Day: 9}, LocationName: "Kumamoto Field",
			Latitude: 32.8032, Longitude: 130.7075, NormalMax: fptr(10.9), NormalMin: fptr(2.4)},
	}}

	rec := do(t, newTestServer(svc, nil), http.MethodGet, "/v1/locations/loc-1/export.csv?from=2026-01-01", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=Kumamoto_Field_2026-01-01_2026-01-09.csv`, rec.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, domain.ExportHeader, records[0])
	assert.Equal(t, []string{"2026-01-08", "Kumamoto Field", "32.8032", "130.7075", "18.23", "0.612", "10.90", "2.40"}, records[1])
	assert.Equal(t, []string{"2026-01-09", "Kumamoto Field", "32.8032", "130.7075", "", "", "10.90", "2.40"}, records[2])
}

func TestExportCSV_NoData(t *testing.T) {
	rec := do(t, newTestServer(&fakeService{err: domain.ErrNoDataInRange}, nil),
		http.MethodGet, "/v1/locations/loc-1/export.csv?from=2030-01-01&to=2030-01-31", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
