package registry_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/bloodlink/internal/donor/domain"
	"github.com/example/bloodlink/internal/donor/registry"
)

func newDonor(city string, group domain.BloodGroup) domain.Donor {
	return domain.Donor{
		ID:           uuid.New(),
		FullName:     "Asha Tamang",
		Phone:        "+977-9800000000",
		BloodGroup:   group,
		Age:          30,
		City:         city,
		RegisteredAt: time.Now().UTC(),
		Available:    true,
	}
}

func TestInsertAndLookup(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	ctx := context.Background()
	donor := newDonor("Kathmandu", domain.ONeg)
	require.NoError(t, reg.Insert(ctx, donor))

	found, err := reg.ByCityAndGroup(ctx, "kathmandu", []domain.BloodGroup{domain.ONeg})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, donor.ID, found[0].ID)
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	ctx := context.Background()
	donor := newDonor("Kathmandu", domain.APos)
	require.NoError(t, reg.Insert(ctx, donor))
	require.ErrorIs(t, reg.Insert(ctx, donor), domain.ErrDuplicateDonor)
}

func TestInsertRejectsUnknownBloodGroup(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	donor := newDonor("Kathmandu", "Z+")
	require.ErrorIs(t, reg.Insert(context.Background(), donor), domain.ErrInvalidBloodGroup)
}

func TestUpdateMovesIndexEntries(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	ctx := context.Background()
	donor := newDonor("Kathmandu", domain.BPos)
	require.NoError(t, reg.Insert(ctx, donor))

	city := "Pokhara"
	group := domain.ABNeg
	updated, err := reg.Update(ctx, donor.ID, domain.DonorPatch{City: &city, BloodGroup: &group})
	require.NoError(t, err)
	require.Equal(t, "Pokhara", updated.City)
	require.Equal(t, domain.ABNeg, updated.BloodGroup)

	old, err := reg.ByCityAndGroup(ctx, "Kathmandu", []domain.BloodGroup{domain.BPos})
	require.NoError(t, err)
	require.Empty(t, old, "stale index entries must be removed")

	moved, err := reg.ByCityAndGroup(ctx, "POKHARA", []domain.BloodGroup{domain.ABNeg})
	require.NoError(t, err)
	require.Len(t, moved, 1)
}

func TestUpdateUnknownDonor(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	_, err := reg.Update(context.Background(), uuid.New(), domain.DonorPatch{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetAvailabilityHidesDonorFromSearch(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	ctx := context.Background()
	donor := newDonor("Lalitpur", domain.OPos)
	require.NoError(t, reg.Insert(ctx, donor))

	_, err := reg.SetAvailability(ctx, donor.ID, false)
	require.NoError(t, err)

	found, err := reg.ByCityAndGroup(ctx, "Lalitpur", []domain.BloodGroup{domain.OPos})
	require.NoError(t, err)
	require.Empty(t, found)

	// identity survives soft-deactivation
	kept, err := reg.Get(ctx, donor.ID)
	require.NoError(t, err)
	require.False(t, kept.Available)

	_, err = reg.SetAvailability(ctx, uuid.New(), true)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestByCityAndGroupFiltersGroups(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	ctx := context.Background()
	oNeg := newDonor("Kathmandu", domain.ONeg)
	abPos := newDonor("Kathmandu", domain.ABPos)
	require.NoError(t, reg.Insert(ctx, oNeg))
	require.NoError(t, reg.Insert(ctx, abPos))

	found, err := reg.ByCityAndGroup(ctx, "Kathmandu", []domain.BloodGroup{domain.ONeg, domain.OPos})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, oNeg.ID, found[0].ID)
}

func TestConcurrentRegistrationsAreAllObserved(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	ctx := context.Background()
	const n = 64

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			donor := newDonor("Kathmandu", domain.ONeg)
			donor.FullName = fmt.Sprintf("Donor %d", i)
			require.NoError(t, reg.Insert(ctx, donor))
		}(i)
	}

	// searches proceed concurrently with the writers
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_, err := reg.ByCityAndGroup(ctx, "kathmandu", []domain.BloodGroup{domain.ONeg})
			require.NoError(t, err)
		}
	}()

	wg.Wait()
	<-done

	found, err := reg.ByCityAndGroup(ctx, "Kathmandu", []domain.BloodGroup{domain.ONeg})
	require.NoError(t, err)
	require.Len(t, found, n, "no registration may be lost")
}

func TestRestoreReplacesContents(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	ctx := context.Background()
	require.NoError(t, reg.Insert(ctx, newDonor("Kathmandu", domain.APos)))

	replacement := []domain.Donor{newDonor("Biratnagar", domain.BNeg), newDonor("Biratnagar", domain.ONeg)}
	reg.Restore(replacement)
	require.Equal(t, 2, reg.Len())

	found, err := reg.ByCityAndGroup(ctx, "biratnagar", []domain.BloodGroup{domain.BNeg, domain.ONeg})
	require.NoError(t, err)
	require.Len(t, found, 2)
}
