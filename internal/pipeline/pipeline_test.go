package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	"github.com/couchcryptid/ocean-contour-service/internal/geo"
	"github.com/couchcryptid/ocean-contour-service/internal/observability"
	"github.com/couchcryptid/ocean-contour-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type memSource struct {
	records []domain.RawRecord
	err     error
}

func (m *memSource) Records(_ context.Context) ([]domain.RawRecord, error) {
	return m.records, m.err
}

// blockingMirror misses every key and holds the warm pass on one key until
// released.
type blockingMirror struct {
	block   domain.Key
	entered chan struct{}
	release chan struct{}

	mu   sync.Mutex
	puts []string
}

func newBlockingMirror(block domain.Key) *blockingMirror {
	return &blockingMirror{block: block, entered: make(chan struct{}), release: make(chan struct{})}
}

func (m *blockingMirror) Get(ctx context.Context, key domain.Key) (*domain.ContourSet, error) {
	if key == m.block {
		close(m.entered)
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, nil
}

func (m *blockingMirror) Put(_ context.Context, set *domain.ContourSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts = append(m.puts, set.KeyString)
	return nil
}

type staticMirror struct {
	sets map[domain.Key]*domain.ContourSet
	puts int
}

func (m *staticMirror) Get(_ context.Context, key domain.Key) (*domain.ContourSet, error) {
	return m.sets[key], nil
}

func (m *staticMirror) Put(_ context.Context, _ *domain.ContourSet) error {
	m.puts++
	return nil
}

type recordingSink struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (s *recordingSink) Publish(_ context.Context, set *domain.ContourSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, set.KeyString)
	return s.err
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sample(line int, lon, lat float64, year int, horizon, temp string) domain.RawRecord {
	return domain.RawRecord{Line: line, Fields: map[string]string{
		"lon":     strconv.FormatFloat(lon, 'f', -1, 64),
		"lat":     strconv.FormatFloat(lat, 'f', -1, 64),
		"year":    strconv.Itoa(year),
		"horizon": horizon,
		"temp_c":  temp,
	}}
}

// threeSamples is the classic triangle: a cold corner at the origin and two
// warmer neighbours.
func threeSamples() []domain.RawRecord {
	return []domain.RawRecord{
		sample(1, 0, 0, 2020, "surface", "10"),
		sample(2, 1, 0, 2020, "surface", "20"),
		sample(3, 0, 1, 2020, "surface", "30"),
	}
}

func testOptions() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Breaks = map[domain.Parameter][]float64{domain.TemperatureC: {15}}
	opts.WarmWorkers = 2
	return opts
}

func newService(t *testing.T, opts pipeline.Options, options ...pipeline.Option) (*pipeline.Service, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	options = append([]pipeline.Option{pipeline.WithClock(clockwork.NewFakeClock())}, options...)
	return pipeline.New(opts, nil, discardLogger(), metrics, options...), metrics
}

// --- tests ---

func TestService_Run_ThreeSampleContour(t *testing.T) {
	svc, metrics := newService(t, testOptions())

	require.NoError(t, svc.Run(context.Background(), &memSource{records: threeSamples()}))
	assert.Equal(t, pipeline.Ready, svc.State())

	res, err := svc.Lookup("2020", "Surface", " temp_c ")
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusFound, res.Status)
	assert.Equal(t, domain.StatusContours, res.Set.Status)
	assert.Equal(t, 3, res.Set.PointCount)
	assert.Equal(t, []float64{15}, res.Set.Breaks)
	require.Len(t, res.Set.Lines, 1)
	assert.Equal(t, 15.0, res.Set.Lines[0].Value)

	fc := res.Set.FeatureCollection()
	require.Len(t, fc.Features, 1)
	assert.Equal(t, 15.0, fc.Features[0].Properties[domain.ValueProperty])

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.SamplesLoaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.KeysComputed.WithLabelValues("contours")))
	assert.Equal(t, float64(pipeline.Ready), testutil.ToFloat64(metrics.WarmState))
}

func TestService_Run_PlansEveryObservedGroupAndParameter(t *testing.T) {
	records := append(threeSamples(),
		sample(4, 0.5, 0.5, 2021, "bottom", "4"),
		sample(5, 0.6, 0.5, 2021, "bottom", "5"),
		domain.RawRecord{Line: 6, Fields: map[string]string{"lon": "x", "lat": "1", "year": "2020", "horizon": "surface"}},
	)
	svc, metrics := newService(t, testOptions())

	require.NoError(t, svc.Run(context.Background(), &memSource{records: records}))

	plan := svc.Plan()
	require.Len(t, plan, 2*len(domain.Parameters()))
	assert.Equal(t, "2020/surface/temp_c", plan[0].String())
	assert.Len(t, svc.Sets(), len(plan))

	for _, set := range svc.Sets() {
		want := domain.StatusInsufficient
		if set.KeyString == "2020/surface/temp_c" {
			want = domain.StatusContours
		}
		assert.Equal(t, want, set.Status, set.KeyString)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SamplesRejected))
}

func TestService_Lookup_InsufficientPointsIsEmptyResult(t *testing.T) {
	records := []domain.RawRecord{
		sample(1, 0, 0, 2020, "bottom", "3"),
		sample(2, 1, 1, 2020, "bottom", "4"),
	}
	svc, _ := newService(t, testOptions())
	require.NoError(t, svc.Run(context.Background(), &memSource{records: records}))

	res, err := svc.Lookup("2020", "bottom", "temp_c")
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusFound, res.Status)
	assert.Equal(t, domain.StatusInsufficient, res.Set.Status)
	assert.Equal(t, 2, res.Set.PointCount)
	assert.Empty(t, res.Set.Lines)
	assert.Empty(t, res.Set.FeatureCollection().Features)
}

func TestService_Lookup_ValidationBeforeCache(t *testing.T) {
	svc, metrics := newService(t, testOptions())
	require.NoError(t, svc.Run(context.Background(), &memSource{records: threeSamples()}))

	tests := []struct {
		name                 string
		year, horizon, param string
		field                string
	}{
		{name: "unsupported parameter", year: "2020", horizon: "surface", param: "density", field: "parameter"},
		{name: "unsupported horizon", year: "2020", horizon: "mid", param: "temp_c", field: "horizon"},
		{name: "missing year", year: " ", horizon: "surface", param: "temp_c", field: "year"},
		{name: "fractional year", year: "2020.5", horizon: "surface", param: "temp_c", field: "year"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Lookup(tt.year, tt.horizon, tt.param)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	assert.Equal(t, float64(len(tests)), testutil.ToFloat64(metrics.Lookups.WithLabelValues("invalid")))
}

func TestService_Lookup_NotFoundAfterReady(t *testing.T) {
	svc, _ := newService(t, testOptions())
	require.NoError(t, svc.Run(context.Background(), &memSource{records: threeSamples()}))

	res, err := svc.Lookup("1999", "surface", "temp_c")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusNotFound, res.Status)
	assert.Nil(t, res.Set)

	res, err = svc.Lookup("2020.0", "bottom", "ph")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusNotFound, res.Status)
}

func TestService_Lookup_NotReadyBeforeRun(t *testing.T) {
	svc, _ := newService(t, testOptions())

	res, err := svc.Lookup("1999", "surface", "temp_c")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusNotReady, res.Status)
	assert.Error(t, svc.CheckReadiness(context.Background()))
	assert.Equal(t, pipeline.Uninitialized, svc.State())
}

func TestService_Lookup_NotReadyThenComputedDuringWarming(t *testing.T) {
	target := domain.Key{Year: 2020, Horizon: domain.Surface, Parameter: domain.TemperatureC}
	mirror := newBlockingMirror(target)
	opts := testOptions()
	opts.WarmWorkers = 1
	svc, _ := newService(t, opts, pipeline.WithMirror(mirror))

	done := make(chan error, 1)
	go func() { done <- svc.Run(context.Background(), &memSource{records: threeSamples()}) }()

	select {
	case <-mirror.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("warm pass never reached the target key")
	}

	assert.Equal(t, pipeline.Warming, svc.State())
	require.NoError(t, svc.CheckReadiness(context.Background()))

	before, err := svc.Lookup("2020", "surface", "temp_c")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusNotReady, before.Status)
	assert.Nil(t, before.Set)

	outside, err := svc.Lookup("2019", "surface", "temp_c")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusNotFound, outside.Status, "keys outside the plan are final")

	close(mirror.release)
	require.NoError(t, <-done)

	after, err := svc.Lookup("2020", "surface", "temp_c")
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusFound, after.Status)
	require.Len(t, after.Set.Lines, 1)
	assert.Equal(t, domain.StatusContours, after.Set.Status)

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	assert.Len(t, mirror.puts, len(domain.Parameters()))
}

func TestService_Run_MirrorHitSkipsCompute(t *testing.T) {
	key := domain.Key{Year: 2020, Horizon: domain.Surface, Parameter: domain.TemperatureC}
	cached := domain.NewContourSet(key, domain.StatusContours, 99, []float64{1}, []domain.ContourLine{
		{Value: 1, Line: orb.LineString{{0, 0}, {1, 1}}},
	})
	mirror := &staticMirror{sets: map[domain.Key]*domain.ContourSet{key: cached}}
	sink := &recordingSink{}
	opts := testOptions()
	opts.WarmWorkers = 1
	svc, metrics := newService(t, opts, pipeline.WithMirror(mirror), pipeline.WithSink(sink))

	require.NoError(t, svc.Run(context.Background(), &memSource{records: threeSamples()}))

	res, err := svc.Lookup("2020", "surface", "temp_c")
	require.NoError(t, err)
	assert.Same(t, cached, res.Set)

	computed := len(domain.Parameters()) - 1
	assert.Equal(t, computed, mirror.puts)
	assert.Len(t, sink.published, computed)
	assert.NotContains(t, sink.published, "2020/surface/temp_c")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MirrorLookups.WithLabelValues("hit")))
	assert.Equal(t, float64(computed), testutil.ToFloat64(metrics.MirrorLookups.WithLabelValues("miss")))
}

func TestService_Run_SinkErrorsAreCounted(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	svc, metrics := newService(t, testOptions(), pipeline.WithSink(sink))

	require.NoError(t, svc.Run(context.Background(), &memSource{records: threeSamples()}))

	assert.Equal(t, pipeline.Ready, svc.State())
	assert.Len(t, sink.published, len(domain.Parameters()))
	assert.Equal(t, float64(len(domain.Parameters())), testutil.ToFloat64(metrics.SinkErrors))
}

func TestService_Run_NoFiniteCoordinates(t *testing.T) {
	records := []domain.RawRecord{
		{Line: 1, Fields: map[string]string{"lon": "NaN", "lat": "1", "year": "2020", "horizon": "surface", "temp_c": "5"}},
	}
	svc, _ := newService(t, testOptions())

	require.NoError(t, svc.Run(context.Background(), &memSource{records: records}))

	for _, set := range svc.Sets() {
		assert.Equal(t, domain.StatusEmptyRegion, set.Status, set.KeyString)
		assert.Empty(t, set.Lines)
	}
	assert.Len(t, svc.Sets(), len(domain.Parameters()))
}

func TestService_Run_SourceFailureIsFatal(t *testing.T) {
	svc, _ := newService(t, testOptions())

	err := svc.Run(context.Background(), &memSource{err: errors.New("permission denied")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load samples")
	assert.Equal(t, pipeline.Failed, svc.State())
	assert.Error(t, svc.CheckReadiness(context.Background()))
}

func TestService_Run_CancelledContextStopsWarmPass(t *testing.T) {
	svc, _ := newService(t, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, svc.Run(ctx, &memSource{records: threeSamples()}))
	assert.Equal(t, pipeline.Warming, svc.State())
	assert.Empty(t, svc.Sets())

	res, err := svc.Lookup("2020", "surface", "temp_c")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusNotReady, res.Status)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "region_ready", pipeline.RegionReady.String())
	assert.Equal(t, "not_ready", pipeline.StatusNotReady.String())
}

func TestService_Run_ClipsLandPastRegionEdge(t *testing.T) {
	// Values rise northwards, so the 5 isoline runs east-west across every
	// column, including the partial last one past the region's east edge.
	records := []domain.RawRecord{
		sample(1, 0, 0, 2020, "surface", "0"),
		sample(2, 1, 0, 2020, "surface", "0"),
		sample(3, 0, 1, 2020, "surface", "10"),
		sample(4, 1, 1, 2020, "surface", "10"),
	}
	opts := testOptions()
	opts.Breaks = map[domain.Parameter][]float64{domain.TemperatureC: {5}}

	region, err := geo.BuildRegion(slices.Values([]domain.Point{
		{Lon: 0, Lat: 0}, {Lon: 1, Lat: 0}, {Lon: 0, Lat: 1}, {Lon: 1, Lat: 1},
	}), opts.MarginKm)
	require.NoError(t, err)

	// Land starts just inside the region's east edge.
	shore := region.Bound.Max[0] - 0.001
	land := orb.MultiPolygon{{{{shore, -5}, {5, -5}, {5, 5}, {shore, 5}, {shore, -5}}}}

	metrics := observability.NewMetricsForTesting()
	svc := pipeline.New(opts, land, discardLogger(), metrics, pipeline.WithClock(clockwork.NewFakeClock()))
	require.NoError(t, svc.Run(context.Background(), &memSource{records: records}))

	res, err := svc.Lookup("2020", "surface", "temp_c")
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusFound, res.Status)
	require.NotEmpty(t, res.Set.Lines)

	for _, l := range res.Set.Lines {
		for i := 1; i < len(l.Line); i++ {
			a, b := l.Line[i-1], l.Line[i]
			mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
			assert.False(t, planar.MultiPolygonContains(land, mid), "segment %v -> %v lies on land", a, b)
		}
	}
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.ClipFallbacks), 0)
}
