// Package matching ranks compatible donors for a blood request.
package matching

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/example/bloodlink/internal/donor/domain"
	"github.com/example/bloodlink/internal/geo"
)

// Engine implements domain.MatchingEngine over a donor registry. The
// geo index is optional and only consulted for opt-in radius widening.
type Engine struct {
	registry domain.Registry
	geoIndex GeoIndex
	logger   *zap.Logger
}

// NewEngine constructs the engine. geoIndex and logger may be nil.
func NewEngine(registry domain.Registry, geoIndex GeoIndex, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{registry: registry, geoIndex: geoIndex, logger: logger}
}

type candidate struct {
	donor      domain.Donor
	distanceKm *float64
}

// Match validates the request, collects compatible candidates from the
// registry, scores them by haversine distance when coordinates exist on
// both sides, and returns a strictly ordered result. An empty result is
// the explicit signal that the city yielded nothing; scope is never
// widened unless opts.RadiusKm asks for it.
func (e *Engine) Match(ctx context.Context, req domain.BloodRequest, opts domain.MatchOptions) ([]domain.Match, error) {
	start := time.Now()
	matches, err := e.match(ctx, req, opts)
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case len(matches) == 0:
		result = "empty"
	}
	matchDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	matchesTotal.WithLabelValues(result).Inc()
	return matches, err
}

func (e *Engine) match(ctx context.Context, req domain.BloodRequest, opts domain.MatchOptions) ([]domain.Match, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	groups, err := domain.EligibleDonorGroups(req.RequiredBloodGroup)
	if err != nil {
		return nil, err
	}

	donors, err := e.registry.ByCityAndGroup(ctx, req.City, groups)
	if err != nil {
		return nil, fmt.Errorf("registry lookup: %w", err)
	}

	if opts.RadiusKm > 0 {
		donors, err = e.widen(ctx, req, donors, opts.RadiusKm)
		if err != nil {
			return nil, err
		}
	}

	candidates := make([]candidate, 0, len(donors))
	for _, donor := range donors {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		c := candidate{donor: donor}
		if req.Location != nil && donor.Location != nil {
			d, err := geo.DistanceKm(*req.Location, *donor.Location)
			if err != nil {
				return nil, fmt.Errorf("score donor %s: %w", donor.ID, err)
			}
			c.distanceKm = &d
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return rankLess(candidates[i], candidates[j])
	})

	if opts.Limit > 0 && len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}

	matches := make([]domain.Match, len(candidates))
	for i, c := range candidates {
		matches[i] = domain.Match{Donor: c.donor, DistanceKm: c.distanceKm, Rank: i + 1}
	}
	return matches, nil
}

// widen adds available, compatible donors within radiusKm of the
// request coordinates, regardless of city. Requires both the geo index
// and request coordinates; asking for widening without them is a caller
// error.
func (e *Engine) widen(ctx context.Context, req domain.BloodRequest, donors []domain.Donor, radiusKm float64) ([]domain.Donor, error) {
	if e.geoIndex == nil {
		return nil, fmt.Errorf("%w: radius widening requires a geo index", domain.ErrInvalidRequest)
	}
	if req.Location == nil {
		return nil, fmt.Errorf("%w: radius widening requires request coordinates", domain.ErrInvalidRequest)
	}

	seen := make(map[string]struct{}, len(donors))
	for _, d := range donors {
		seen[d.ID.String()] = struct{}{}
	}

	ids, err := e.geoIndex.Nearby(ctx, *req.Location, radiusKm, 0)
	if err != nil {
		return nil, fmt.Errorf("geo index nearby: %w", err)
	}
	for _, id := range ids {
		if _, ok := seen[id.String()]; ok {
			continue
		}
		donor, err := e.registry.Get(ctx, id)
		if err != nil {
			// index entries may outlive registry state; skip strays
			e.logger.Debug("geo index entry without registry record", zap.String("donor_id", id.String()))
			continue
		}
		if !donor.Available || !domain.CanDonateTo(donor.BloodGroup, req.RequiredBloodGroup) {
			continue
		}
		donors = append(donors, donor)
		seen[id.String()] = struct{}{}
	}
	return donors, nil
}

// rankLess defines the strict total order of results: known distances
// ascending first, then coordinate-less donors by registration time,
// with RegisteredAt and ID breaking any remaining ties.
func rankLess(a, b candidate) bool {
	switch {
	case a.distanceKm != nil && b.distanceKm == nil:
		return true
	case a.distanceKm == nil && b.distanceKm != nil:
		return false
	case a.distanceKm != nil && b.distanceKm != nil && *a.distanceKm != *b.distanceKm:
		return *a.distanceKm < *b.distanceKm
	}
	if !a.donor.RegisteredAt.Equal(b.donor.RegisteredAt) {
		return a.donor.RegisteredAt.Before(b.donor.RegisteredAt)
	}
	return bytes.Compare(a.donor.ID[:], b.donor.ID[:]) < 0
}

func validateRequest(req domain.BloodRequest) error {
	if req.City == "" {
		return fmt.Errorf("%w: city is required", domain.ErrInvalidRequest)
	}
	if req.RequiredUnits < 1 {
		return fmt.Errorf("%w: required_units must be >= 1", domain.ErrInvalidRequest)
	}
	if req.Location != nil {
		if err := geo.Validate(*req.Location); err != nil {
			return err
		}
	}
	return nil
}
