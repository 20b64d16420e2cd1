package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/couchcryptid/ocean-contour-service/internal/cache"
	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	"github.com/couchcryptid/ocean-contour-service/internal/field"
	"github.com/couchcryptid/ocean-contour-service/internal/geo"
	"github.com/couchcryptid/ocean-contour-service/internal/landclip"
	"github.com/couchcryptid/ocean-contour-service/internal/observability"
	"github.com/couchcryptid/ocean-contour-service/internal/samples"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/couchcryptid/ocean-contour-service/internal/pipeline"

// SampleSource yields the raw sample records read at startup.
type SampleSource interface {
	Records(ctx context.Context) ([]domain.RawRecord, error)
}

// Mirror is a shared cache consulted before computing a key and written
// after. Get returns nil and no error on a miss.
type Mirror interface {
	Get(ctx context.Context, key domain.Key) (*domain.ContourSet, error)
	Put(ctx context.Context, set *domain.ContourSet) error
}

// Sink receives every set computed by this process.
type Sink interface {
	Publish(ctx context.Context, set *domain.ContourSet) error
}

// Options configures the computation of every key.
type Options struct {
	Field             field.Options
	MarginKm          float64
	BreakCount        int
	Breaks            map[domain.Parameter][]float64
	SimplifyTolerance float64
	WarmWorkers       int
}

// DefaultOptions mirrors the service configuration defaults.
func DefaultOptions() Options {
	return Options{
		Field:       field.DefaultOptions(),
		MarginKm:    15,
		BreakCount:  10,
		WarmWorkers: 4,
	}
}

// Option customizes a Service.
type Option func(*Service)

// WithMirror enables the shared mirror.
func WithMirror(m Mirror) Option { return func(s *Service) { s.mirror = m } }

// WithSink publishes computed sets.
func WithSink(k Sink) Option { return func(s *Service) { s.sink = k } }

// WithClock replaces the clock used for durations.
func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

// Service loads samples once, precomputes every contour set in the
// background and answers lookups from the write-once cache.
type Service struct {
	opts      Options
	coastline orb.MultiPolygon
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	tracer    trace.Tracer
	mirror    Mirror
	sink      Sink

	cache *cache.Store
	state atomic.Int32
	plan  atomic.Pointer[map[domain.Key]struct{}]

	// Written before the state reaches RegionReady and read-only afterwards.
	samples   *samples.Set
	region    geo.Region
	regionErr error
	clipper   *landclip.Clipper
}

// New creates a Service. coastline may be nil to disable land clipping.
func New(opts Options, coastline orb.MultiPolygon, logger *slog.Logger, metrics *observability.Metrics, options ...Option) *Service {
	if opts.WarmWorkers < 1 {
		opts.WarmWorkers = 1
	}
	s := &Service{
		opts:      opts,
		coastline: coastline,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
		tracer:    otel.Tracer(tracerName),
		cache:     cache.New(),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Service) State() State { return State(s.state.Load()) }

func (s *Service) setState(st State) {
	s.state.Store(int32(st))
	s.metrics.WarmState.Set(float64(st))
	s.logger.Info("service state changed", "state", st.String())
}

// CheckReadiness returns nil once the warm pass has started, or an error
// describing why the service cannot serve lookups yet.
func (s *Service) CheckReadiness(_ context.Context) error {
	switch st := s.State(); st {
	case Warming, Ready:
		return nil
	case Failed:
		return errors.New("sample ingestion failed")
	default:
		return fmt.Errorf("service is %s", st)
	}
}

// Run performs the startup sequence and the warm pass. It returns an error
// only when the sample source cannot be read, which is fatal for the
// process. A cancelled context stops the warm pass between keys and leaves
// the service in the Warming state.
func (s *Service) Run(ctx context.Context, source SampleSource) error {
	if err := s.prepare(ctx, source); err != nil {
		s.setState(Failed)
		return err
	}

	plan := s.buildPlan()
	s.setState(Warming)

	if err := s.warm(ctx, plan); err != nil {
		s.logger.Info("warm pass stopping", "reason", err)
		return nil
	}
	s.setState(Ready)
	return nil
}

func (s *Service) prepare(ctx context.Context, source SampleSource) error {
	s.setState(Loading)
	records, err := source.Records(ctx)
	if err != nil {
		return fmt.Errorf("load samples: %w", err)
	}

	set, stats := samples.Load(records, s.logger)
	s.samples = set
	s.metrics.SamplesLoaded.Add(float64(stats.Loaded))
	s.metrics.SamplesRejected.Add(float64(stats.Rejected))
	s.logger.Info("samples loaded",
		"records", stats.Records,
		"loaded", stats.Loaded,
		"rejected", stats.Rejected,
		"groups", len(set.Groups()),
	)

	region, err := geo.BuildRegion(set.Coordinates(), s.opts.MarginKm)
	if err != nil {
		// Every key still gets an explicit empty entry.
		s.regionErr = err
		s.logger.Warn("no region could be built", "error", err)
		s.clipper = landclip.New(nil, s.logger, s.metrics)
	} else {
		s.region = region
		s.logger.Info("region built",
			"min_lon", region.Bound.Min[0],
			"min_lat", region.Bound.Min[1],
			"max_lon", region.Bound.Max[0],
			"max_lat", region.Bound.Max[1],
			"margin_km", region.MarginKm,
		)
		s.clipper = landclip.New(geo.LocalCoastline(s.coastline, s.clipRegion(region), s.logger), s.logger, s.metrics)
	}

	s.setState(RegionReady)
	return nil
}

// clipRegion widens the region to the grid extent so land in the partial
// last row and column is kept for clipping.
func (s *Service) clipRegion(region geo.Region) geo.Region {
	extent, err := field.Extent(region, s.opts.Field)
	if err != nil {
		// Every grid will be rejected with the same error.
		return region
	}
	region.Bound = region.Bound.Union(extent)
	return region
}

// buildPlan fixes the key space: every observed (year, horizon) crossed
// with every supported parameter, in key order.
func (s *Service) buildPlan() []domain.Key {
	var keys []domain.Key
	for _, g := range s.samples.Groups() {
		for _, p := range domain.Parameters() {
			keys = append(keys, domain.Key{Year: g.Year, Horizon: g.Horizon, Parameter: p})
		}
	}
	plan := make(map[domain.Key]struct{}, len(keys))
	for _, k := range keys {
		plan[k] = struct{}{}
	}
	s.plan.Store(&plan)
	return keys
}

func (s *Service) warm(ctx context.Context, plan []domain.Key) error {
	runID := uuid.NewString()
	logger := s.logger.With("warm_run", runID)
	logger.Info("warm pass started", "keys", len(plan), "workers", s.opts.WarmWorkers)
	start := s.clock.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.WarmWorkers)
	for _, key := range plan {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.computeKey(gctx, logger, key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	elapsed := s.clock.Since(start)
	s.metrics.WarmDuration.Observe(elapsed.Seconds())
	logger.Info("warm pass finished", "keys", s.cache.Len(), "duration", elapsed)
	return nil
}

// Lookup answers a read for raw lookup fields. Invalid fields return a
// *domain.ValidationError before the cache is consulted.
func (s *Service) Lookup(year, horizon, parameter string) (Lookup, error) {
	key, err := domain.ParseKey(year, horizon, parameter)
	if err != nil {
		s.metrics.Lookups.WithLabelValues("invalid").Inc()
		return Lookup{}, err
	}

	// Ready is only set after the last insert, so reading the state first
	// makes a miss under Ready final.
	st := s.State()
	res := Lookup{Key: key, Status: StatusNotFound}
	if set, ok := s.cache.Get(key); ok {
		res.Status, res.Set = StatusFound, set
	} else if st != Ready && st != Failed && s.mayCompute(key) {
		res.Status = StatusNotReady
	}
	s.metrics.Lookups.WithLabelValues(res.Status.String()).Inc()
	return res, nil
}

func (s *Service) mayCompute(key domain.Key) bool {
	plan := s.plan.Load()
	if plan == nil {
		return true
	}
	_, ok := (*plan)[key]
	return ok
}

// Lookup is the result of Service.Lookup.
type Lookup struct {
	Status LookupStatus
	Key    domain.Key
	Set    *domain.ContourSet
}

// Sets returns every computed set in key order.
func (s *Service) Sets() []*domain.ContourSet { return s.cache.Sets() }

// Plan returns the keys scheduled for the warm pass, or nil before it is
// known.
func (s *Service) Plan() []domain.Key {
	plan := s.plan.Load()
	if plan == nil {
		return nil
	}
	keys := make([]domain.Key, 0, len(*plan))
	for k := range *plan {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b domain.Key) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return keys
}
