package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/satellite-climate-service/internal/climate"
	"github.com/couchcryptid/satellite-climate-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

const maxBodyBytes = 1 << 20

// ClimateService is the request-level API served over HTTP.
type ClimateService interface {
	Stations() []domain.WeatherStation
	NearestStation(ctx context.Context, c domain.Coordinate) (domain.StationMatch, error)
	CreateLocation(ctx context.Context, req climate.NewLocation) (domain.Location, error)
	GetLocation(ctx context.Context, id string) (domain.Location, error)
	ListLocations(ctx context.Context) ([]domain.Location, error)
	DeleteLocation(ctx context.Context, id string) error
	ResolveStation(ctx context.Context, id string) (domain.Location, error)
	CompareDate(ctx context.Context, id string, date domain.Date) (domain.ComparisonResult, error)
	CompareRange(ctx context.Context, id string, r domain.DateRange) (climate.RangeComparison, error)
	Export(ctx context.Context, id string, r domain.DateRange) (domain.Location, []domain.ExportRow, error)
}

type handler struct {
	svc    ClimateService
	logger *slog.Logger
}

// --- stations ---

func (h *handler) listStations(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"stations": nonNil(h.svc.Stations())})
}

func (h *handler) nearestStation(w http.ResponseWriter, r *http.Request) {
	c, err := coordinateParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	match, err := h.svc.NearestStation(r.Context(), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, match)
}

// --- locations ---

type createLocationRequest struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Place     string   `json:"place"`
	Region    string   `json:"region"`
}

func (h *handler) createLocation(w http.ResponseWriter, r *http.Request) {
	var body createLocationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: decode body: %v", climate.ErrInvalidInput, err))
		return
	}

	req := climate.NewLocation{Name: body.Name, Place: body.Place, Region: body.Region}
	switch {
	case body.Latitude != nil && body.Longitude != nil:
		req.Coordinate = &domain.Coordinate{Lat: *body.Latitude, Lon: *body.Longitude}
	case body.Latitude != nil || body.Longitude != nil:
		h.writeError(w, r, fmt.Errorf("%w: latitude and longitude must be given together", climate.ErrInvalidInput))
		return
	}

	loc, err := h.svc.CreateLocation(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/locations/"+loc.ID)
	sharedobs.WriteJSON(w, http.StatusCreated, loc)
}

func (h *handler) listLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.svc.ListLocations(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"locations": nonNil(locs)})
}

func (h *handler) getLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.svc.GetLocation(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, loc)
}

func (h *handler) deleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteLocation(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) resolveStation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.svc.ResolveStation(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, loc)
}

// --- comparisons ---

type comparisonResponse struct {
	domain.ComparisonResult
	Status domain.Status `json:"status,omitempty"`
}

func newComparisonResponse(res domain.ComparisonResult) comparisonResponse {
	return comparisonResponse{ComparisonResult: res, Status: res.Status()}
}

func (h *handler) compareDate(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		h.writeError(w, r, fmt.Errorf("%w: date is required", climate.ErrInvalidInput))
		return
	}
	date, err := domain.ParseDate(raw)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", climate.ErrInvalidInput, err))
		return
	}

	res, err := h.svc.CompareDate(r.Context(), r.PathValue("id"), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, newComparisonResponse(res))
}

func (h *handler) compareRange(w http.ResponseWriter, r *http.Request) {
	dr, err := rangeParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rc, err := h.svc.CompareRange(r.Context(), r.PathValue("id"), dr)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	results := make([]comparisonResponse, len(rc.Results))
	for i, res := range rc.Results {
		results[i] = newComparisonResponse(res)
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"location": rc.Location,
		"results":  results,
		"summary":  rc.Summary,
	})
}

// --- export ---

func (h *handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	dr, err := rangeParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	loc, rows, err := h.svc.Export(r.Context(), r.PathValue("id"), dr)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment",
		map[string]string{"filename": exportFilename(loc, dr, rows)}))
	w.WriteHeader(http.StatusOK)
	if err := domain.WriteCSV(w, rows); err != nil {
		h.logger.Error("write csv export failed", "error", err, "location_id", loc.ID)
	}
}

var filenameReplacer = strings.NewReplacer(
	" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_",
	"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

// exportFilename returns <name>_<from>_<to>.csv. Open range bounds fall back
// to the first and last exported dates.
func exportFilename(loc domain.Location, dr domain.DateRange, rows []domain.ExportRow) string {
	from, to := dr.From, dr.To
	if len(rows) > 0 {
		if from.IsZero() {
			from = rows[0].Date
		}
		if to.IsZero() {
			to = rows[len(rows)-1].Date
		}
	}
	name := filenameReplacer.Replace(domain.SanitizeName(loc.Name))
	if name == "" {
		name = "location"
	}
	return fmt.Sprintf("%s_%s_%s.csv", name, from, to)
}

// --- params ---

func coordinateParams(r *http.Request) (domain.Coordinate, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: lat: %v", climate.ErrInvalidInput, err)
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: lon: %v", climate.ErrInvalidInput, err)
	}
	return domain.Coordinate{Lat: lat, Lon: lon}, nil
}

func rangeParams(r *http.Request) (domain.DateRange, error) {
	var dr domain.DateRange
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *domain.Date
	}{{"from", &dr.From}, {"to", &dr.To}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := domain.ParseDate(raw)
		if err != nil {
			return domain.DateRange{}, fmt.Errorf("%w: %s: %v", climate.ErrInvalidInput, p.name, err)
		}
		*p.dst = d
	}
	return dr, nil
}

// --- responses ---

func statusFor(err error) int {
	switch {
	case errors.Is(err, climate.ErrInvalidInput), errors.Is(err, domain.ErrInvalidCoordinate):
		return http.StatusBadRequest
	case errors.Is(err, climate.ErrLocationNotFound),
		errors.Is(err, climate.ErrObservationNotFound),
		errors.Is(err, domain.ErrNoDataInRange):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyCatalog):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		msg = http.StatusText(status)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
