// Package service estimates how long donors need to reach a hospital,
// based on their last streamed positions.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/bloodlink/internal/donor/domain"
	"github.com/example/bloodlink/internal/geo"
)

// Repository exposes read methods for location snapshots.
type Repository interface {
	Snapshot(ctx context.Context, donorID uuid.UUID) (domain.LocationSnapshot, bool)
	All() []domain.LocationSnapshot
}

// Service calculates travel estimates using haversine distance and an
// average urban travel speed.
type Service struct {
	repo Repository
}

// New creates a travel service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

const avgSpeedKmh = 30.0

// EstimateNearestDonor returns the fastest donor estimate across all
// known snapshots. The donor id is nil when no snapshot exists or no
// snapshot has usable coordinates.
func (s *Service) EstimateNearestDonor(_ context.Context, hospital domain.GeoPoint) (time.Duration, *uuid.UUID) {
	snapshots := s.repo.All()
	var bestDuration time.Duration
	var bestDonor *uuid.UUID
	for _, snap := range snapshots {
		dist, err := geo.DistanceKm(snap.Point, hospital)
		if err != nil {
			continue
		}
		duration := travelTime(dist)
		if bestDonor == nil || duration < bestDuration {
			snapshotDonor := snap.DonorID
			bestDonor = &snapshotDonor
			bestDuration = duration
		}
	}
	return bestDuration, bestDonor
}

// EstimateDonorTravel estimates how long one specific donor needs to
// reach the hospital. It returns false when the donor has no snapshot.
func (s *Service) EstimateDonorTravel(ctx context.Context, donorID uuid.UUID, hospital domain.GeoPoint) (time.Duration, bool) {
	snap, ok := s.repo.Snapshot(ctx, donorID)
	if !ok {
		return 0, false
	}
	dist, err := geo.DistanceKm(snap.Point, hospital)
	if err != nil {
		return 0, false
	}
	return travelTime(dist), true
}

func travelTime(distKm float64) time.Duration {
	return time.Duration(distKm / avgSpeedKmh * float64(time.Hour))
}
