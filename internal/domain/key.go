package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Key addresses one cache entry.
type Key struct {
	Year      int
	Horizon   Horizon
	Parameter Parameter
}

// ParseKey normalizes lookup fields into a Key. It is the only constructor
// used on both the write and the read side, so equal inputs always hit the
// same entry. Year accepts integral numeric text such as "2020" or "2020.0".
func ParseKey(year, horizon, parameter string) (Key, error) {
	y, err := ParseYear(year)
	if err != nil {
		return Key{}, err
	}

	if strings.TrimSpace(horizon) == "" {
		return Key{}, &ValidationError{Field: "horizon", Reason: "is required"}
	}
	h, ok := ParseHorizon(horizon)
	if !ok {
		return Key{}, &ValidationError{Field: "horizon", Value: horizon, Reason: "unsupported horizon"}
	}

	if strings.TrimSpace(parameter) == "" {
		return Key{}, &ValidationError{Field: "parameter", Reason: "is required"}
	}
	p, ok := ParseParameter(parameter)
	if !ok {
		return Key{}, &ValidationError{Field: "parameter", Value: parameter, Reason: "unsupported parameter"}
	}

	return Key{Year: y, Horizon: h, Parameter: p}, nil
}

// ParseYear accepts integral numeric text within the int32 range. Ingestion
// and lookups both go through it, so every stored year is addressable.
func ParseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ValidationError{Field: "year", Reason: "is required"}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(f) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, &ValidationError{Field: "year", Value: s, Reason: "must be an integer"}
	}
	return int(f), nil
}

// String renders the canonical form, e.g. "2020/surface/temp_c".
func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%s", k.Year, k.Horizon, k.Parameter)
}

// Group returns the (year, horizon) pair of the key.
func (k Key) Group() Group {
	return Group{Year: k.Year, Horizon: k.Horizon}
}

// Less orders keys by year, horizon, then parameter.
func (k Key) Less(o Key) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	if k.Horizon != o.Horizon {
		return k.Horizon < o.Horizon
	}
	return k.Parameter < o.Parameter
}
