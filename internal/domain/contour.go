package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ValueProperty is the GeoJSON feature property carrying a line's threshold.
const ValueProperty = "value"

// SetStatus records how a cache entry came to be.
type SetStatus string

const (
	// StatusContours marks a set produced by the full pipeline. It may still
	// hold zero lines when no break crossed the field.
	StatusContours SetStatus = "contours"
	// StatusInsufficient marks a selection with fewer than three usable points.
	StatusInsufficient SetStatus = "insufficient"
	// StatusEmptyRegion marks keys computed while no region could be built.
	StatusEmptyRegion SetStatus = "empty_region"
	// StatusFailed marks a selection whose grid was rejected.
	StatusFailed SetStatus = "failed"
)

// ContourLine is one connected line at a single threshold.
type ContourLine struct {
	Value float64        `json:"value"`
	Line  orb.LineString `json:"line"`
}

// ContourSet is the immutable cache entry for one key. An empty Lines slice
// is a valid result distinct from a missing entry.
type ContourSet struct {
	Key        Key           `json:"-"`
	KeyString  string        `json:"key"`
	Status     SetStatus     `json:"status"`
	PointCount int           `json:"point_count"`
	Breaks     []float64     `json:"breaks"`
	Lines      []ContourLine `json:"lines"`
	ComputedAt time.Time     `json:"computed_at"`
}

// NewContourSet stamps a set with its key and the current clock time.
func NewContourSet(key Key, status SetStatus, points int, breaks []float64, lines []ContourLine) *ContourSet {
	if lines == nil {
		lines = []ContourLine{}
	}
	if breaks == nil {
		breaks = []float64{}
	}
	return &ContourSet{
		Key:        key,
		KeyString:  key.String(),
		Status:     status,
		PointCount: points,
		Breaks:     breaks,
		Lines:      lines,
		ComputedAt: clock.Now().UTC(),
	}
}

// FeatureCollection renders the set as GeoJSON LineString features, each
// tagged with its threshold under ValueProperty.
func (s *ContourSet) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, l := range s.Lines {
		f := geojson.NewFeature(l.Line)
		f.Properties[ValueProperty] = l.Value
		fc.Append(f)
	}
	return fc
}

// MarshalGeoJSON encodes the set as a GeoJSON FeatureCollection.
func (s *ContourSet) MarshalGeoJSON() ([]byte, error) {
	data, err := json.Marshal(s.FeatureCollection())
	if err != nil {
		return nil, fmt.Errorf("marshal feature collection: %w", err)
	}
	return data, nil
}

// EncodeContourSet serializes a set in its internal JSON form.
func EncodeContourSet(s *ContourSet) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode contour set: %w", err)
	}
	return data, nil
}

// DecodeContourSet parses the internal JSON form and re-derives the key.
func DecodeContourSet(data []byte) (*ContourSet, error) {
	var s ContourSet
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode contour set: %w", err)
	}
	key, err := parseKeyString(s.KeyString)
	if err != nil {
		return nil, fmt.Errorf("decode contour set: %w", err)
	}
	s.Key = key
	if s.Lines == nil {
		s.Lines = []ContourLine{}
	}
	if s.Breaks == nil {
		s.Breaks = []float64{}
	}
	return &s, nil
}

func parseKeyString(s string) (Key, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("malformed key %q", s)
	}
	return ParseKey(parts[0], parts[1], parts[2])
}
