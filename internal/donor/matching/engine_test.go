package matching_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/bloodlink/internal/donor/domain"
	"github.com/example/bloodlink/internal/donor/matching"
	"github.com/example/bloodlink/internal/donor/registry"
	"github.com/example/bloodlink/internal/geo"
)

var lalitpur = domain.GeoPoint{Lat: 27.6644, Lng: 85.3188}

func seedDonor(t *testing.T, reg *registry.MemoryRegistry, city string, group domain.BloodGroup, loc *domain.GeoPoint, registeredAt time.Time) domain.Donor {
	t.Helper()
	donor := domain.Donor{
		ID:           uuid.New(),
		FullName:     "Seed Donor",
		Phone:        "+977-9810000000",
		BloodGroup:   group,
		Age:          28,
		City:         city,
		Location:     loc,
		RegisteredAt: registeredAt,
		Available:    true,
	}
	require.NoError(t, reg.Insert(context.Background(), donor))
	return donor
}

func validRequest(city string, group domain.BloodGroup) domain.BloodRequest {
	return domain.BloodRequest{
		RequiredBloodGroup: group,
		RequiredUnits:      2,
		HospitalName:       "Bir Hospital",
		ContactName:        "Ramesh K.",
		ContactPhone:       "+977-9841000000",
		City:               city,
		SubmittedAt:        time.Now().UTC(),
	}
}

func TestMatchIncludesUniversalDonor(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	engine := matching.NewEngine(reg, nil, nil)
	now := time.Now().UTC()

	older := seedDonor(t, reg, "Kathmandu", domain.ONeg, nil, now.Add(-48*time.Hour))
	newer := seedDonor(t, reg, "Kathmandu", domain.ONeg, nil, now.Add(-time.Hour))

	matches, err := engine.Match(context.Background(), validRequest("Kathmandu", domain.APos), domain.MatchOptions{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// no coordinates anywhere: earliest-registered first
	require.Equal(t, older.ID, matches[0].Donor.ID)
	require.Equal(t, newer.ID, matches[1].Donor.ID)
	require.Nil(t, matches[0].DistanceKm)
	require.Equal(t, 1, matches[0].Rank)
	require.Equal(t, 2, matches[1].Rank)
}

func TestMatchDoesNotWidenCityByDefault(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	engine := matching.NewEngine(reg, nil, nil)
	seedDonor(t, reg, "Kathmandu", domain.ABNeg, nil, time.Now().UTC())

	matches, err := engine.Match(context.Background(), validRequest("Pokhara", domain.ABPos), domain.MatchOptions{})
	require.NoError(t, err)
	require.Empty(t, matches, "compatible group in the wrong city must not match")
}

func TestMatchRanksByDistance(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	engine := matching.NewEngine(reg, nil, nil)
	now := time.Now().UTC()

	near := lalitpur
	near.Lat += 0.018 // ~2 km north
	far := lalitpur
	far.Lat += 0.09 // ~10 km north

	farDonor := seedDonor(t, reg, "Lalitpur", domain.BPos, &far, now.Add(-72*time.Hour))
	nearDonor := seedDonor(t, reg, "Lalitpur", domain.BPos, &near, now)

	req := validRequest("Lalitpur", domain.BPos)
	req.Location = &lalitpur

	matches, err := engine.Match(context.Background(), req, domain.MatchOptions{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, nearDonor.ID, matches[0].Donor.ID)
	require.Equal(t, farDonor.ID, matches[1].Donor.ID)
	require.NotNil(t, matches[0].DistanceKm)
	require.NotNil(t, matches[1].DistanceKm)
	require.InDelta(t, 2, *matches[0].DistanceKm, 0.5)
	require.InDelta(t, 10, *matches[1].DistanceKm, 1)
}

func TestMatchPlacesCoordinatelessDonorsLast(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	engine := matching.NewEngine(reg, nil, nil)
	now := time.Now().UTC()

	loc := lalitpur
	loc.Lat += 0.02
	located := seedDonor(t, reg, "Lalitpur", domain.ONeg, &loc, now)
	unlocated := seedDonor(t, reg, "Lalitpur", domain.ONeg, nil, now.Add(-240*time.Hour))

	req := validRequest("Lalitpur", domain.OPos)
	req.Location = &lalitpur

	matches, err := engine.Match(context.Background(), req, domain.MatchOptions{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, located.ID, matches[0].Donor.ID, "a ranked distance beats any coordinate-less donor")
	require.Equal(t, unlocated.ID, matches[1].Donor.ID)
	require.Nil(t, matches[1].DistanceKm)
}

func TestMatchOrderIsATotalOrder(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	engine := matching.NewEngine(reg, nil, nil)
	registered := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// identical coordinates and registration time: only the id breaks the tie
	loc := lalitpur
	a := seedDonor(t, reg, "Lalitpur", domain.OPos, &loc, registered)
	b := seedDonor(t, reg, "Lalitpur", domain.OPos, &loc, registered)

	req := validRequest("Lalitpur", domain.APos)
	req.Location = &lalitpur

	first, err := engine.Match(context.Background(), req, domain.MatchOptions{})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotEqual(t, first[0].Donor.ID, first[1].Donor.ID)

	for i := 0; i < 5; i++ {
		again, err := engine.Match(context.Background(), req, domain.MatchOptions{})
		require.NoError(t, err)
		require.Equal(t, first[0].Donor.ID, again[0].Donor.ID, "ordering must be deterministic")
	}
	_ = a
	_ = b
}

func TestMatchAppliesLimit(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	engine := matching.NewEngine(reg, nil, nil)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedDonor(t, reg, "Kathmandu", domain.ONeg, nil, now.Add(time.Duration(-i)*time.Hour))
	}

	matches, err := engine.Match(context.Background(), validRequest("Kathmandu", domain.ONeg), domain.MatchOptions{Limit: 3})
	require.NoError(t, err)
	require.Len(t, matches, 3)
}

func TestMatchValidation(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	engine := matching.NewEngine(reg, nil, nil)
	ctx := context.Background()

	noCity := validRequest("", domain.APos)
	_, err := engine.Match(ctx, noCity, domain.MatchOptions{})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	noUnits := validRequest("Kathmandu", domain.APos)
	noUnits.RequiredUnits = 0
	_, err = engine.Match(ctx, noUnits, domain.MatchOptions{})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	badGroup := validRequest("Kathmandu", "X+")
	_, err = engine.Match(ctx, badGroup, domain.MatchOptions{})
	require.ErrorIs(t, err, domain.ErrInvalidBloodGroup)

	badCoords := validRequest("Kathmandu", domain.APos)
	badCoords.Location = &domain.GeoPoint{Lat: 95, Lng: 0}
	_, err = engine.Match(ctx, badCoords, domain.MatchOptions{})
	require.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestMatchHonoursCancellation(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	engine := matching.NewEngine(reg, nil, nil)
	seedDonor(t, reg, "Kathmandu", domain.ONeg, nil, time.Now().UTC())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Match(ctx, validRequest("Kathmandu", domain.APos), domain.MatchOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestMatchSkipsUnavailableDonors(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	engine := matching.NewEngine(reg, nil, nil)
	donor := seedDonor(t, reg, "Kathmandu", domain.ONeg, nil, time.Now().UTC())
	_, err := reg.SetAvailability(context.Background(), donor.ID, false)
	require.NoError(t, err)

	matches, err := engine.Match(context.Background(), validRequest("Kathmandu", domain.APos), domain.MatchOptions{})
	require.NoError(t, err)
	require.Empty(t, matches)
}

type stubGeoIndex struct{ ids []uuid.UUID }

func (s *stubGeoIndex) Nearby(context.Context, domain.GeoPoint, float64, int) ([]uuid.UUID, error) {
	return s.ids, nil
}

func TestMatchRadiusWideningIsOptIn(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	now := time.Now().UTC()

	loc := lalitpur
	loc.Lat += 0.03
	neighbour := seedDonor(t, reg, "Bhaktapur", domain.ONeg, &loc, now)
	incompatible := seedDonor(t, reg, "Bhaktapur", domain.ABPos, &loc, now)

	engine := matching.NewEngine(reg, &stubGeoIndex{ids: []uuid.UUID{neighbour.ID, incompatible.ID}}, nil)

	req := validRequest("Lalitpur", domain.APos)
	req.Location = &lalitpur

	// default: no widening, neighbour city stays invisible
	matches, err := engine.Match(context.Background(), req, domain.MatchOptions{})
	require.NoError(t, err)
	require.Empty(t, matches)

	// opt-in radius pulls the compatible neighbour in, never the incompatible one
	matches, err = engine.Match(context.Background(), req, domain.MatchOptions{RadiusKm: 10})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, neighbour.ID, matches[0].Donor.ID)
}

func TestMatchRadiusWideningRequiresCoordinates(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	engine := matching.NewEngine(reg, &stubGeoIndex{}, nil)

	_, err := engine.Match(context.Background(), validRequest("Lalitpur", domain.APos), domain.MatchOptions{RadiusKm: 10})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}
