package geo

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geojson"
)

// LoadCoastline reads land polygons from a GeoJSON file. FeatureCollection,
// Feature and bare Polygon / MultiPolygon documents are accepted; non-areal
// geometries are ignored. An empty path means no coastline.
func LoadCoastline(path string) (orb.MultiPolygon, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read coastline: %w", err)
	}
	return ParseCoastline(data)
}

// ParseCoastline decodes GeoJSON bytes into a multipolygon.
func ParseCoastline(data []byte) (orb.MultiPolygon, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse coastline: %w", err)
	}

	var land orb.MultiPolygon
	switch strings.ToLower(head.Type) {
	case "featurecollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parse coastline: %w", err)
		}
		for _, f := range fc.Features {
			land = appendPolygons(land, f.Geometry)
		}
	case "feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("parse coastline: %w", err)
		}
		land = appendPolygons(land, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("parse coastline: %w", err)
		}
		land = appendPolygons(land, g.Geometry())
	}

	if len(land) == 0 {
		return nil, fmt.Errorf("parse coastline: no polygons found")
	}
	return land, nil
}

func appendPolygons(dst orb.MultiPolygon, g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		return append(dst, v)
	case orb.MultiPolygon:
		return append(dst, v...)
	case orb.Collection:
		for _, c := range v {
			dst = appendPolygons(dst, c)
		}
	}
	return dst
}

// LocalCoastline intersects the global land polygon with the region once so
// later clipping only tests nearby rings. An empty or failed intersection
// falls back to the global polygon; a nil global polygon stays nil, which
// turns clipping into a pass-through.
func LocalCoastline(global orb.MultiPolygon, region Region, logger *slog.Logger) orb.MultiPolygon {
	if len(global) == 0 {
		logger.Info("no coastline configured, land clipping disabled")
		return nil
	}

	local, err := clipToBound(global, region.Bound)
	if err != nil {
		logger.Warn("coastline clip failed, using global polygon", "error", err, "polygons", len(global))
		return global
	}
	if len(local) == 0 {
		logger.Info("coastline does not intersect region, using global polygon", "polygons", len(global))
		return global
	}

	logger.Info("local coastline prepared",
		"global_polygons", len(global),
		"local_polygons", len(local),
	)
	return local
}

func clipToBound(global orb.MultiPolygon, b orb.Bound) (local orb.MultiPolygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("clip multipolygon: %v", r)
		}
	}()

	clipped := clip.MultiPolygon(b, global.Clone())
	for _, p := range clipped {
		if len(p) == 0 || len(p[0]) < 4 {
			continue
		}
		local = append(local, p)
	}
	return local, nil
}
