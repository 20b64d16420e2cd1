package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/ocean-contour-service/internal/contour"
	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	"github.com/couchcryptid/ocean-contour-service/internal/field"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// computeKey produces and caches the set for one key. Failures never leave
// the key empty: they are cached as explicit insufficient or failed sets.
func (s *Service) computeKey(ctx context.Context, logger *slog.Logger, key domain.Key) {
	ctx, span := s.tracer.Start(ctx, "pipeline.computeKey", trace.WithAttributes(
		attribute.Int("contour.year", key.Year),
		attribute.String("contour.horizon", key.Horizon.String()),
		attribute.String("contour.parameter", key.Parameter.String()),
	))
	defer span.End()

	start := s.clock.Now()
	logger = logger.With("key", key.String())

	if set := s.fromMirror(ctx, logger, key); set != nil {
		s.store(ctx, logger, set, false)
		return
	}

	set := s.safeCompute(logger, key)
	span.SetAttributes(
		attribute.String("contour.status", string(set.Status)),
		attribute.Int("contour.points", set.PointCount),
		attribute.Int("contour.lines", len(set.Lines)),
	)
	if set.Status == domain.StatusFailed {
		span.SetStatus(codes.Error, "grid rejected")
	}

	s.metrics.KeyDuration.Observe(s.clock.Since(start).Seconds())
	s.store(ctx, logger, set, true)
}

func (s *Service) fromMirror(ctx context.Context, logger *slog.Logger, key domain.Key) *domain.ContourSet {
	if s.mirror == nil {
		return nil
	}
	set, err := s.mirror.Get(ctx, key)
	switch {
	case err != nil:
		logger.Warn("mirror read failed", "error", err)
		s.metrics.MirrorLookups.WithLabelValues("error").Inc()
		return nil
	case set == nil || set.Key != key:
		s.metrics.MirrorLookups.WithLabelValues("miss").Inc()
		return nil
	}
	s.metrics.MirrorLookups.WithLabelValues("hit").Inc()
	return set
}

// store inserts the set and, for sets computed here, forwards it to the
// mirror and the sink.
func (s *Service) store(ctx context.Context, logger *slog.Logger, set *domain.ContourSet, computed bool) {
	stored, inserted := s.cache.Insert(set)
	if !inserted {
		logger.Debug("key already cached", "status", stored.Status)
		return
	}
	s.metrics.KeysComputed.WithLabelValues(string(set.Status)).Inc()
	logger.Debug("key cached",
		"status", set.Status,
		"points", set.PointCount,
		"breaks", len(set.Breaks),
		"lines", len(set.Lines),
		"from_mirror", !computed,
	)
	if !computed {
		return
	}

	if s.mirror != nil {
		if err := s.mirror.Put(ctx, set); err != nil {
			logger.Warn("mirror write failed", "error", err)
		}
	}
	if s.sink != nil {
		if err := s.sink.Publish(ctx, set); err != nil {
			logger.Warn("publish contour set failed", "error", err)
			s.metrics.SinkErrors.Inc()
		}
	}
}

// safeCompute turns a panic in any geometry stage into a failed set so one
// key cannot stop the warm pass.
func (s *Service) safeCompute(logger *slog.Logger, key domain.Key) (set *domain.ContourSet) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("contour computation panicked", "panic", fmt.Sprint(r))
			set = domain.NewContourSet(key, domain.StatusFailed, 0, nil, nil)
		}
	}()
	return s.compute(logger, key)
}

func (s *Service) compute(logger *slog.Logger, key domain.Key) *domain.ContourSet {
	if s.regionErr != nil {
		return domain.NewContourSet(key, domain.StatusEmptyRegion, 0, nil, nil)
	}

	points := s.samples.Filter(key.Year, key.Horizon, key.Parameter)
	var values []float64
	for p := range points {
		values = append(values, p.Value)
	}

	stageStart := s.clock.Now()
	grid, err := field.Interpolate(points, s.region, s.opts.Field)
	s.observeStage("interpolate", stageStart)
	switch {
	case errors.Is(err, domain.ErrInsufficientPoints):
		logger.Info("insufficient points for interpolation", "points", len(values))
		return domain.NewContourSet(key, domain.StatusInsufficient, len(values), nil, nil)
	case err != nil:
		logger.Warn("grid rejected", "stage", "interpolate", "points", len(values), "error", err)
		return domain.NewContourSet(key, domain.StatusFailed, len(values), nil, nil)
	}

	breaks := field.Breaks(values, s.opts.Breaks[key.Parameter], s.opts.BreakCount)

	stageStart = s.clock.Now()
	traced := contour.Extract(grid, breaks)
	var lines []domain.ContourLine
	for _, b := range breaks {
		for _, l := range contour.Simplify(traced[b], s.opts.SimplifyTolerance) {
			lines = append(lines, domain.ContourLine{Value: b, Line: l})
		}
	}
	s.observeStage("extract", stageStart)

	stageStart = s.clock.Now()
	lines = s.clipper.ClipAll(key, lines)
	s.observeStage("clip", stageStart)

	return domain.NewContourSet(key, domain.StatusContours, len(values), breaks, lines)
}

func (s *Service) observeStage(stage string, start time.Time) {
	s.metrics.StageDuration.WithLabelValues(stage).Observe(s.clock.Since(start).Seconds())
}
