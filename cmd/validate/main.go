// Command validate performs integrity checks over the reference data and mock
// observation fixtures: the station/normals seed file, an optional provisioned
// SQLite catalog, and an optional JSON-lines file of ingest messages produced
// by genmock. It verifies field ranges, cross-references and parser acceptance.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -seed data/reference.json \
//	  -catalog data/reference.db \
//	  -observations data/mock/observations.jsonl
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/satellite-climate-service/internal/adapter/sqlite"
	"github.com/couchcryptid/satellite-climate-service/internal/domain"
)

// Plausible ranges for processed observations.
const (
	minLSTCelsius = -60.0
	maxLSTCelsius = 80.0
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	seedPath := flag.String("seed", "data/reference.json", "path to the station and normals seed file")
	catalogPath := flag.String("catalog", "", "path to a provisioned SQLite catalog (optional)")
	obsPath := flag.String("observations", "", "path to a JSON-lines observation fixture (optional)")
	flag.Parse()

	if *seedPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*seedPath, *catalogPath, *obsPath); code != 0 {
		os.Exit(code)
	}
}

func run(seedPath, catalogPath, obsPath string) int {
	fmt.Println("=== Reference Data Integrity Validation ===")
	fmt.Println()

	seed, err := sqlite.LoadSeed(seedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{validateSeed(seed)}
	if catalogPath != "" {
		phases = append(phases, validateCatalog(catalogPath, seed))
	}
	if obsPath != "" {
		phases = append(phases, validateObservations(obsPath))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d stations, %d monthly normals\n", len(seed.Stations), len(seed.Normals))

	for _, p := range phases {
		if len(p.warnings) > 0 {
			fmt.Printf("\n--- %s (warnings) ---\n", p.name)
			for _, w := range p.warnings {
				fmt.Printf("  %s\n", w)
			}
		}
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Seed ──

func validateSeed(seed sqlite.Seed) *phase {
	p := &phase{name: "Seed integrity"}
	report := seed.Check()
	for _, err := range report.Errors {
		p.errorf("%v", err)
	}
	p.warnings = report.Warnings
	if len(seed.Stations) == 0 {
		p.warnings = append(p.warnings, "no stations: locations will be saved without a station")
	}
	return p
}

// ── Catalog ──

// validateCatalog checks that a provisioned catalog holds exactly the seed's
// stations and normals.
func validateCatalog(path string, seed sqlite.Seed) *phase {
	p := &phase{name: "Catalog matches seed"}
	ctx := context.Background()

	catalog, err := sqlite.LoadCatalog(ctx, path)
	if err != nil {
		p.errorf("load catalog: %v", err)
		return p
	}
	if catalog.Len() != len(seed.Stations) {
		p.errorf("station count: catalog=%d seed=%d", catalog.Len(), len(seed.Stations))
	}
	for _, want := range seed.Stations {
		got, ok := catalog.Station(want.ID)
		if !ok {
			p.errorf("station %s: missing from catalog", want.ID)
			continue
		}
		if got.Name != want.Name || got.Coordinate.Lat != want.Lat || got.Coordinate.Lon != want.Lon {
			p.errorf("station %s: catalog %q (%v, %v) differs from seed %q (%v, %v)",
				want.ID, got.Name, got.Coordinate.Lat, got.Coordinate.Lon, want.Name, want.Lat, want.Lon)
		}
	}

	normals, err := sqlite.LoadNormals(ctx, path)
	if err != nil {
		p.errorf("load normals: %v", err)
		return p
	}
	if len(normals) != len(seed.Normals) {
		p.errorf("normal count: catalog=%d seed=%d", len(normals), len(seed.Normals))
	}
	byStation := domain.GroupNormalsByStation(normals)
	for _, want := range seed.Normals {
		got, err := byStation[want.StationID].Lookup(time.Month(want.Month))
		if err != nil {
			p.errorf("normal %s/%d: %v", want.StationID, want.Month, err)
			continue
		}
		if got.Avg != want.Avg || got.Max != want.Max || got.Min != want.Min {
			p.errorf("normal %s/%d: catalog %.1f/%.1f/%.1f differs from seed %.1f/%.1f/%.1f",
				want.StationID, want.Month, got.Avg, got.Max, got.Min, want.Avg, want.Max, want.Min)
		}
	}
	return p
}

// ── Observations ──

// validateObservations parses every line with the ingest parser and checks
// the processed values and (location, date) uniqueness.
func validateObservations(path string) *phase {
	p := &phase{name: "Observation fixture"}

	f, err := os.Open(path)
	if err != nil {
		p.errorf("open: %v", err)
		return p
	}
	defer f.Close()

	seen := make(map[string]int)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		obs, err := domain.ParseObservationMessage(domain.RawEvent{Value: []byte(text)})
		if err != nil {
			p.errorf("line %d: %v", line, err)
			continue
		}
		checkObservation(p, line, obs)

		key := obs.LocationID + "/" + obs.Date.String()
		if prev, ok := seen[key]; ok {
			p.warnings = append(p.warnings, fmt.Sprintf("line %d: %s repeats line %d (last write wins)", line, key, prev))
		}
		seen[key] = line
	}
	if err := sc.Err(); err != nil {
		p.errorf("read: %v", err)
	}
	if line == 0 {
		p.errorf("no observations in %s", path)
	}
	return p
}

func checkObservation(p *phase, line int, obs domain.Observation) {
	if obs.LST != nil && (*obs.LST < minLSTCelsius || *obs.LST > maxLSTCelsius) {
		p.errorf("line %d: lst %.2f°C outside [%.0f, %.0f]", line, *obs.LST, minLSTCelsius, maxLSTCelsius)
	}
	if obs.LST == nil {
		p.warnings = append(p.warnings, fmt.Sprintf("line %d: %s on %s has no lst", line, obs.LocationID, obs.Date))
	}
}
