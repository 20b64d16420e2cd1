// Command genmock writes a deterministic synthetic survey: a sample CSV with
// several years and both horizons, plus a coastline GeoJSON with a mainland
// and an island cutting into the sampled area. The CSV is read back through
// the real ingestion path so the reported counts match what the service
// would load.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -samples-out data/mock/samples.csv \
//	  -coastline-out data/mock/coastline.geojson
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/ocean-contour-service/internal/adapter/csvsource"
	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	"github.com/couchcryptid/ocean-contour-service/internal/samples"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Survey box, roughly a shelf sea south of a coast.
const (
	minLon = -71.5
	maxLon = -69.5
	minLat = 40.5
	maxLat = 42.0
)

var header = []string{"station", "longitude", "latitude", "year", "horizon", "temp_c", "salinity_psu", "oxygen_mg_l", "ph"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	samplesOut := flag.String("samples-out", "", "output path for the sample CSV")
	coastlineOut := flag.String("coastline-out", "", "output path for the coastline GeoJSON")
	stations := flag.Int("stations", 40, "stations per survey")
	seed := flag.Uint64("seed", 2024, "random seed")
	flag.Parse()

	if *samplesOut == "" || *coastlineOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -samples-out, -coastline-out")
	}

	rows := generate(*stations, rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15)))
	if err := writeCSV(*samplesOut, rows); err != nil {
		return fmt.Errorf("writing samples: %w", err)
	}
	log.Printf("wrote samples: %s (%d rows)", *samplesOut, len(rows))

	if err := writeCoastline(*coastlineOut); err != nil {
		return fmt.Errorf("writing coastline: %w", err)
	}
	log.Printf("wrote coastline: %s", *coastlineOut)

	return printStats(*samplesOut)
}

// generate produces one survey per (year, horizon). Values follow smooth
// gradients with noise; a few cells are left blank to exercise missing
// values.
func generate(stations int, rng *rand.Rand) [][]string {
	rows := [][]string{header}
	for year := 2019; year <= 2021; year++ {
		for _, h := range domain.Horizons() {
			warm := float64(year-2019) * 0.4
			for i := range stations {
				lon := minLon + rng.Float64()*(maxLon-minLon)
				lat := minLat + rng.Float64()*(maxLat-minLat)
				north := (lat - minLat) / (maxLat - minLat)
				east := (lon - minLon) / (maxLon - minLon)

				temp := 18 - 6*north + 1.5*east + warm + rng.NormFloat64()*0.3
				sal := 31 + 2.5*east - north + rng.NormFloat64()*0.1
				oxy := 7.5 + 1.2*north - 0.5*east + rng.NormFloat64()*0.2
				ph := 8.05 - 0.1*north + rng.NormFloat64()*0.02
				if h == domain.Bottom {
					temp -= 6
					sal += 0.8
					oxy -= 1.5
					ph -= 0.08
				}

				rows = append(rows, []string{
					fmt.Sprintf("S%02d-%03d", year%100, i+1),
					formatCoord(lon),
					formatCoord(lat),
					strconv.Itoa(year),
					h.String(),
					maybeBlank(rng, temp, 2),
					maybeBlank(rng, sal, 2),
					maybeBlank(rng, oxy, 2),
					maybeBlank(rng, ph, 3),
				})
			}
		}
	}
	return rows
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func maybeBlank(rng *rand.Rand, v float64, prec int) string {
	if rng.IntN(25) == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// coastline returns a mainland along the northern edge and an island inside
// the survey box.
func coastline() orb.MultiPolygon {
	mainland := orb.Polygon{orb.Ring{
		{-72.5, 41.8}, {-71.2, 41.9}, {-70.6, 41.6}, {-70.0, 41.75},
		{-69.0, 41.9}, {-68.5, 43.0}, {-72.5, 43.0}, {-72.5, 41.8},
	}}
	island := orb.Polygon{circle(-70.6, 41.1, 0.12, 24)}
	return orb.MultiPolygon{mainland, island}
}

func circle(lon, lat, r float64, n int) orb.Ring {
	ring := make(orb.Ring, 0, n+1)
	for i := range n {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, orb.Point{lon + r*math.Cos(a), lat + r*math.Sin(a)})
	}
	return append(ring, ring[0])
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Sync()
}

func writeCoastline(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	fc := geojson.NewFeatureCollection()
	for i, p := range coastline() {
		f := geojson.NewFeature(p)
		f.Properties["name"] = []string{"mainland", "island"}[i]
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func printStats(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	records, err := csvsource.Parse(data, logger)
	if err != nil {
		return fmt.Errorf("re-read samples: %w", err)
	}
	set, stats := samples.Load(records, logger)

	fmt.Println("\n=== Generated Survey Statistics ===")
	fmt.Printf("Records: %d (loaded %d, rejected %d)\n", stats.Records, stats.Loaded, stats.Rejected)
	for _, g := range set.Groups() {
		fmt.Printf("  %d/%-8s", g.Year, g.Horizon)
		for _, p := range domain.Parameters() {
			n := 0
			for range set.Filter(g.Year, g.Horizon, p) {
				n++
			}
			fmt.Printf(" %s=%d", p, n)
		}
		fmt.Println()
	}
	return nil
}
