// Command validate runs the full contour pipeline offline over a sample file
// and checks the integrity of the result: ingestion counts, region
// containment, break ranges, clipped line length, and the lookup contract.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -samples data/mock/samples.csv \
//	  -coastline data/mock/coastline.geojson
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/couchcryptid/ocean-contour-service/internal/adapter/csvsource"
	"github.com/couchcryptid/ocean-contour-service/internal/adapter/sqlitesource"
	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	"github.com/couchcryptid/ocean-contour-service/internal/geo"
	"github.com/couchcryptid/ocean-contour-service/internal/observability"
	"github.com/couchcryptid/ocean-contour-service/internal/pipeline"
	"github.com/couchcryptid/ocean-contour-service/internal/samples"
	"github.com/paulmach/orb/planar"
)

// lengthSlack absorbs rounding when splitting a segment at a ring crossing.
const lengthSlack = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	samplesPath := flag.String("samples", "", "path to the sample CSV or SQLite file")
	table := flag.String("table", "samples", "table name for SQLite sources")
	coastlinePath := flag.String("coastline", "", "path to the coastline GeoJSON (optional)")
	marginKm := flag.Float64("margin-km", 15, "region margin in kilometres")
	cellSize := flag.Float64("cell-size", 0.05, "grid cell size in degrees")
	breakCount := flag.Int("break-count", 10, "number of equal parts for derived breaks")
	flag.Parse()

	if *samplesPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	opts := pipeline.DefaultOptions()
	opts.MarginKm = *marginKm
	opts.Field.CellSize = *cellSize
	opts.BreakCount = *breakCount

	if code := run(*samplesPath, *table, *coastlinePath, opts); code != 0 {
		os.Exit(code)
	}
}

func run(samplesPath, table, coastlinePath string, opts pipeline.Options) int {
	ctx := context.Background()
	logger := observability.NewLogger(os.Stderr, "warn", "text")

	fmt.Println("=== Ocean Contour Integrity Validation ===")
	fmt.Println()

	source, err := openSource(samplesPath, table, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open samples: %v\n", err)
		return 1
	}
	records, err := source.Records(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read samples: %v\n", err)
		return 1
	}
	coastline, err := geo.LoadCoastline(coastlinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load coastline: %v\n", err)
		return 1
	}

	set, stats := samples.Load(records, logger)

	clipped := pipeline.New(opts, coastline, logger, observability.NewMetricsForTesting())
	if err := clipped.Run(ctx, source); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: run pipeline: %v\n", err)
		return 1
	}
	unclipped := pipeline.New(opts, nil, logger, observability.NewMetricsForTesting())
	if err := unclipped.Run(ctx, source); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: run pipeline without coastline: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateIngestion(stats),
		validateRegion(set, opts.MarginKm),
		validateBreaks(set, clipped.Sets()),
		validateClipLength(clipped.Sets(), unclipped.Sets()),
		validateLookups(clipped, set),
	}

	fmt.Println()
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
	fmt.Printf("Records: %d read, %d loaded, %d rejected; %d groups, %d keys\n",
		stats.Records, stats.Loaded, stats.Rejected, len(set.Groups()), len(clipped.Sets()))
	printStatusCounts(clipped.Sets())

	for _, p := range phases {
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

func openSource(path, table string, logger *slog.Logger) (pipeline.SampleSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return sqlitesource.NewReader(path, table, logger)
	default:
		return csvsource.NewReader(path, logger), nil
	}
}

func printStatusCounts(sets []*domain.ContourSet) {
	counts := map[domain.SetStatus]int{}
	lines := 0
	for _, s := range sets {
		counts[s.Status]++
		lines += len(s.Lines)
	}
	fmt.Printf("Sets: %d contours, %d insufficient, %d empty_region, %d failed; %d lines\n",
		counts[domain.StatusContours], counts[domain.StatusInsufficient],
		counts[domain.StatusEmptyRegion], counts[domain.StatusFailed], lines)
}

// ── Phases ──

func validateIngestion(stats samples.Stats) *phase {
	p := &phase{name: "Ingestion"}
	if stats.Records == 0 {
		p.errorf("source has no records")
	}
	if stats.Loaded == 0 {
		p.errorf("no record could be loaded (%d rejected)", stats.Rejected)
	}
	if stats.Loaded+stats.Rejected != stats.Records {
		p.errorf("loaded %d + rejected %d != records %d", stats.Loaded, stats.Rejected, stats.Records)
	}
	return p
}

func validateRegion(set *samples.Set, marginKm float64) *phase {
	p := &phase{name: "Region containment"}
	region, err := geo.BuildRegion(set.Coordinates(), marginKm)
	var empty *domain.EmptyInputError
	if errors.As(err, &empty) {
		return p
	}
	if err != nil {
		p.errorf("build region: %v", err)
		return p
	}
	for pt := range set.Coordinates() {
		if !region.Contains(pt.Lon, pt.Lat) {
			p.errorf("sample (%g, %g) outside region %v", pt.Lon, pt.Lat, region.Bound)
		}
	}
	return p
}

func validateBreaks(set *samples.Set, sets []*domain.ContourSet) *phase {
	p := &phase{name: "Break ranges"}
	for _, s := range sets {
		if s.Status != domain.StatusContours {
			if len(s.Lines) > 0 {
				p.errorf("%s: %s set carries %d lines", s.Key, s.Status, len(s.Lines))
			}
			continue
		}
		var values []float64
		for pt := range set.Filter(s.Key.Year, s.Key.Horizon, s.Key.Parameter) {
			values = append(values, pt.Value)
		}
		if len(values) != s.PointCount {
			p.errorf("%s: point count %d, samples %d", s.Key, s.PointCount, len(values))
		}
		if len(values) == 0 {
			continue
		}
		lo, hi := slices.Min(values), slices.Max(values)
		if !slices.IsSorted(s.Breaks) {
			p.errorf("%s: breaks not sorted: %v", s.Key, s.Breaks)
		}
		for _, b := range s.Breaks {
			if b <= lo || b >= hi {
				p.errorf("%s: break %g outside (%g, %g)", s.Key, b, lo, hi)
			}
		}
		for _, l := range s.Lines {
			if !slices.Contains(s.Breaks, l.Value) {
				p.errorf("%s: line value %g is not a break", s.Key, l.Value)
			}
			if len(l.Line) < 2 {
				p.errorf("%s: line at %g has %d points", s.Key, l.Value, len(l.Line))
			}
		}
	}
	return p
}

func validateClipLength(clipped, unclipped []*domain.ContourSet) *phase {
	p := &phase{name: "Clip length"}
	byKey := make(map[domain.Key]*domain.ContourSet, len(unclipped))
	for _, s := range unclipped {
		byKey[s.Key] = s
	}
	for _, s := range clipped {
		raw, ok := byKey[s.Key]
		if !ok {
			p.errorf("%s: missing from unclipped run", s.Key)
			continue
		}
		for _, b := range s.Breaks {
			got, want := lengthAt(s, b), lengthAt(raw, b)
			if got > want+lengthSlack {
				p.errorf("%s: clipped length %g at %g exceeds unclipped %g", s.Key, got, b, want)
			}
		}
	}
	return p
}

func lengthAt(s *domain.ContourSet, value float64) float64 {
	total := 0.0
	for _, l := range s.Lines {
		if l.Value == value {
			total += planar.Length(l.Line)
		}
	}
	return total
}

func validateLookups(svc *pipeline.Service, set *samples.Set) *phase {
	p := &phase{name: "Lookup contract"}
	if st := svc.State(); st != pipeline.Ready {
		p.errorf("state %s after warm pass, want ready", st)
	}

	maxYear := 0
	for _, key := range svc.Plan() {
		maxYear = max(maxYear, key.Year)
		res, err := svc.Lookup(fmt.Sprint(key.Year), " "+strings.ToUpper(key.Horizon.String())+" ", key.Parameter.String())
		if err != nil {
			p.errorf("%s: lookup error: %v", key, err)
			continue
		}
		if res.Status != pipeline.StatusFound {
			p.errorf("%s: lookup status %s, want found", key, res.Status)
		}
	}
	if len(svc.Plan()) != len(set.Groups())*len(domain.Parameters()) {
		p.errorf("plan has %d keys for %d groups", len(svc.Plan()), len(set.Groups()))
	}

	res, err := svc.Lookup(fmt.Sprint(maxYear+1), "surface", "temp_c")
	if err != nil || res.Status != pipeline.StatusNotFound {
		p.errorf("unseen year: status %s, err %v; want not_found", res.Status, err)
	}

	var verr *domain.ValidationError
	if _, err := svc.Lookup("2020", "surface", "chlorophyll"); !errors.As(err, &verr) {
		p.errorf("unknown parameter: err %v, want validation error", err)
	}
	if _, err := svc.Lookup("2020.5", "surface", "temp_c"); !errors.As(err, &verr) {
		p.errorf("fractional year: err %v, want validation error", err)
	}
	return p
}
