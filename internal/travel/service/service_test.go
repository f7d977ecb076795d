package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/bloodlink/internal/donor/domain"
	"github.com/example/bloodlink/internal/location"
	travelsvc "github.com/example/bloodlink/internal/travel/service"
)

func TestEstimateNearestDonorPicksClosest(t *testing.T) {
	ctx := context.Background()
	observer := location.NewStreamObserver(nil)

	near := uuid.New()
	far := uuid.New()
	hospital := domain.GeoPoint{Lat: 27.7172, Lng: 85.3240}
	observer.Update(ctx, near, domain.GeoPoint{Lat: 27.7272, Lng: 85.3240}, 5)
	observer.Update(ctx, far, domain.GeoPoint{Lat: 28.2096, Lng: 83.9856}, 5)

	svc := travelsvc.New(observer)
	duration, donorID := svc.EstimateNearestDonor(ctx, hospital)
	require.NotNil(t, donorID)
	require.Equal(t, near, *donorID)
	require.Greater(t, duration, time.Duration(0))
}

func TestEstimateNearestDonorEmpty(t *testing.T) {
	svc := travelsvc.New(location.NewStreamObserver(nil))
	_, donorID := svc.EstimateNearestDonor(context.Background(), domain.GeoPoint{Lat: 27.7, Lng: 85.3})
	require.Nil(t, donorID)
}

func TestEstimateDonorTravel(t *testing.T) {
	ctx := context.Background()
	observer := location.NewStreamObserver(nil)
	donorID := uuid.New()
	observer.Update(ctx, donorID, domain.GeoPoint{Lat: 27.7272, Lng: 85.3240}, 10)

	svc := travelsvc.New(observer)

	duration, ok := svc.EstimateDonorTravel(ctx, donorID, domain.GeoPoint{Lat: 27.7172, Lng: 85.3240})
	require.True(t, ok)
	// Roughly 1.1 km at 30 km/h.
	require.InDelta(t, 133, duration.Seconds(), 20)

	_, ok = svc.EstimateDonorTravel(ctx, uuid.New(), domain.GeoPoint{Lat: 27.7172, Lng: 85.3240})
	require.False(t, ok)
}

func TestObserverForwardsToSink(t *testing.T) {
	sink := &recordingSink{}
	observer := location.NewStreamObserver(sink)
	donorID := uuid.New()
	observer.Update(context.Background(), donorID, domain.GeoPoint{Lat: 1, Lng: 2}, 0)
	require.Equal(t, []uuid.UUID{donorID}, sink.seen)
}

type recordingSink struct {
	seen []uuid.UUID
}

func (r *recordingSink) UpsertLocation(_ context.Context, donorID uuid.UUID, _ domain.GeoPoint) error {
	r.seen = append(r.seen, donorID)
	return nil
}
