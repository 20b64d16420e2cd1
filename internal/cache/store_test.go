package cache

import (
	"sync"
	"testing"

	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(year int, h domain.Horizon, p domain.Parameter) domain.Key {
	return domain.Key{Year: year, Horizon: h, Parameter: p}
}

func TestStore_InsertIsWriteOnce(t *testing.T) {
	s := New()
	k := key(2020, domain.Surface, domain.TemperatureC)

	first := domain.NewContourSet(k, domain.StatusContours, 5, []float64{12}, nil)
	stored, inserted := s.Insert(first)
	require.True(t, inserted)
	assert.Same(t, first, stored)

	second := domain.NewContourSet(k, domain.StatusFailed, 0, nil, nil)
	stored, inserted = s.Insert(second)
	assert.False(t, inserted)
	assert.Same(t, first, stored)

	got, ok := s.Get(k)
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, 1, s.Len())
}

func TestStore_GetMissing(t *testing.T) {
	s := New()
	got, ok := s.Get(key(2020, domain.Bottom, domain.PH))
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestStore_ConcurrentInsertSingleWinner(t *testing.T) {
	s := New()
	k := key(2021, domain.Bottom, domain.OxygenMgL)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.Insert(domain.NewContourSet(k, domain.StatusContours, 3, nil, nil)); ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, s.Len())
}

func TestStore_SetsOrderedByKey(t *testing.T) {
	s := New()
	keys := []domain.Key{
		key(2021, domain.Surface, domain.PH),
		key(2020, domain.Bottom, domain.TemperatureC),
		key(2020, domain.Surface, domain.SalinityPSU),
		key(2020, domain.Surface, domain.TemperatureC),
	}
	for _, k := range keys {
		s.Insert(domain.NewContourSet(k, domain.StatusContours, 3, nil, nil))
	}

	var got []string
	for _, set := range s.Sets() {
		got = append(got, set.KeyString)
	}
	assert.Equal(t, []string{
		"2020/surface/temp_c",
		"2020/surface/salinity_psu",
		"2020/bottom/temp_c",
		"2021/surface/ph",
	}, got)
}
