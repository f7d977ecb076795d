// Package location ingests live donor positions streamed from the
// mobile app.
package location

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/bloodlink/internal/donor/domain"
)

// Sink receives every accepted position update, e.g. to refresh the
// donor geo index.
type Sink interface {
	UpsertLocation(ctx context.Context, donorID uuid.UUID, point domain.GeoPoint) error
}

// StreamObserver stores the latest donor location snapshots and fans
// updates out to an optional sink.
type StreamObserver struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]domain.LocationSnapshot
	sink      Sink
}

// NewStreamObserver constructs the observer. sink may be nil.
func NewStreamObserver(sink Sink) *StreamObserver {
	return &StreamObserver{snapshots: make(map[uuid.UUID]domain.LocationSnapshot), sink: sink}
}

// Update stores the snapshot and forwards it to the sink.
func (o *StreamObserver) Update(ctx context.Context, donorID uuid.UUID, point domain.GeoPoint, accuracy float64) {
	o.mu.Lock()
	o.snapshots[donorID] = domain.LocationSnapshot{
		DonorID:  donorID,
		Point:    point,
		Accuracy: accuracy,
		Updated:  time.Now().UTC(),
	}
	o.mu.Unlock()

	if o.sink != nil {
		_ = o.sink.UpsertLocation(ctx, donorID, point)
	}
}

// Snapshot returns the stored snapshot for one donor.
func (o *StreamObserver) Snapshot(_ context.Context, donorID uuid.UUID) (domain.LocationSnapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	snap, ok := o.snapshots[donorID]
	return snap, ok
}

// All returns all stored snapshots.
func (o *StreamObserver) All() []domain.LocationSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	res := make([]domain.LocationSnapshot, 0, len(o.snapshots))
	for _, snap := range o.snapshots {
		res = append(res, snap)
	}
	return res
}
