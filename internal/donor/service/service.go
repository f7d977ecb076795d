// Package service coordinates registration and matching between the
// HTTP layer and the registry's collaborators.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/example/bloodlink/internal/donor/domain"
	"github.com/example/bloodlink/internal/geo"
)

const (
	minDonorAge = 18
	maxDonorAge = 80
)

// Service owns the write path into the registry and delegates searches
// to the matching engine. events and store may be nil.
type Service struct {
	registry domain.Registry
	engine   domain.MatchingEngine
	events   domain.EventPublisher
	store    domain.Store
	clock    domain.Clock
}

// New constructs a Service with the required collaborators.
func New(registry domain.Registry, engine domain.MatchingEngine, events domain.EventPublisher, store domain.Store, clock domain.Clock) *Service {
	return &Service{registry: registry, engine: engine, events: events, store: store, clock: clock}
}

// RegisterDonorInput mirrors the registration form payload.
type RegisterDonorInput struct {
	FullName   string
	Phone      string
	BloodGroup string
	Age        int
	City       string
	Location   *domain.GeoPoint
}

// Register validates every donor invariant at once and inserts the
// donor. Duplicate phone numbers are permitted; households share lines.
func (s *Service) Register(ctx context.Context, input RegisterDonorInput) (domain.Donor, error) {
	var verr domain.ValidationError
	if strings.TrimSpace(input.FullName) == "" {
		verr.Add("full_name", "must not be empty")
	}
	if strings.TrimSpace(input.Phone) == "" {
		verr.Add("phone", "must not be empty")
	}
	group, err := domain.ParseBloodGroup(input.BloodGroup)
	if err != nil {
		verr.Add("blood_group", "must be one of A+, A-, B+, B-, O+, O-, AB+, AB-")
	}
	if input.Age < minDonorAge || input.Age > maxDonorAge {
		verr.Add("age", fmt.Sprintf("must be between %d and %d", minDonorAge, maxDonorAge))
	}
	if strings.TrimSpace(input.City) == "" {
		verr.Add("city", "must not be empty")
	}
	if input.Location != nil {
		if err := geo.Validate(*input.Location); err != nil {
			verr.Add("coordinates", err.Error())
		}
	}
	if err := verr.Err(); err != nil {
		return domain.Donor{}, err
	}

	donor := domain.Donor{
		ID:           uuid.New(),
		FullName:     strings.TrimSpace(input.FullName),
		Phone:        strings.TrimSpace(input.Phone),
		BloodGroup:   group,
		Age:          input.Age,
		City:         strings.TrimSpace(input.City),
		Location:     input.Location,
		RegisteredAt: s.clock.Now(),
		Available:    true,
	}

	if err := s.persist(ctx, donor); err != nil {
		return domain.Donor{}, err
	}
	if err := s.registry.Insert(ctx, donor); err != nil {
		return domain.Donor{}, fmt.Errorf("insert donor: %w", err)
	}

	s.publish(ctx, domain.DonorEvent{
		DonorID: donor.ID,
		Type:    domain.EventDonorRegistered,
		Payload: map[string]any{"city": donor.City, "blood_group": string(donor.BloodGroup)},
	})
	return donor, nil
}

// UpdateDonor applies a contact/detail correction.
func (s *Service) UpdateDonor(ctx context.Context, id uuid.UUID, patch domain.DonorPatch) (domain.Donor, error) {
	var verr domain.ValidationError
	if patch.FullName != nil && strings.TrimSpace(*patch.FullName) == "" {
		verr.Add("full_name", "must not be empty")
	}
	if patch.Phone != nil && strings.TrimSpace(*patch.Phone) == "" {
		verr.Add("phone", "must not be empty")
	}
	if patch.BloodGroup != nil && !patch.BloodGroup.Valid() {
		verr.Add("blood_group", "must be one of A+, A-, B+, B-, O+, O-, AB+, AB-")
	}
	if patch.Age != nil && (*patch.Age < minDonorAge || *patch.Age > maxDonorAge) {
		verr.Add("age", fmt.Sprintf("must be between %d and %d", minDonorAge, maxDonorAge))
	}
	if patch.City != nil && strings.TrimSpace(*patch.City) == "" {
		verr.Add("city", "must not be empty")
	}
	if patch.Location != nil {
		if err := geo.Validate(*patch.Location); err != nil {
			verr.Add("coordinates", err.Error())
		}
	}
	if err := verr.Err(); err != nil {
		return domain.Donor{}, err
	}

	donor, err := s.registry.Update(ctx, id, patch)
	if err != nil {
		return domain.Donor{}, err
	}
	if err := s.persist(ctx, donor); err != nil {
		return domain.Donor{}, err
	}
	s.publish(ctx, domain.DonorEvent{DonorID: donor.ID, Type: domain.EventDonorUpdated})
	return donor, nil
}

// SetAvailability toggles search visibility, e.g. after a donation.
func (s *Service) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (domain.Donor, error) {
	donor, err := s.registry.SetAvailability(ctx, id, available)
	if err != nil {
		return domain.Donor{}, err
	}
	if err := s.persist(ctx, donor); err != nil {
		return domain.Donor{}, err
	}
	s.publish(ctx, domain.DonorEvent{
		DonorID: donor.ID,
		Type:    domain.EventAvailabilityChanged,
		Payload: map[string]any{"available": available},
	})
	return donor, nil
}

// GetDonor retrieves a donor by identifier.
func (s *Service) GetDonor(ctx context.Context, id uuid.UUID) (domain.Donor, error) {
	return s.registry.Get(ctx, id)
}

// Match answers a blood request with a ranked donor list.
func (s *Service) Match(ctx context.Context, req domain.BloodRequest, opts domain.MatchOptions) ([]domain.Match, error) {
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = s.clock.Now()
	}
	matches, err := s.engine.Match(ctx, req, opts)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.DonorEvent{
		Type: domain.EventRequestMatched,
		Payload: map[string]any{
			"city":           req.City,
			"blood_group":    string(req.RequiredBloodGroup),
			"required_units": req.RequiredUnits,
			"results":        len(matches),
		},
	})
	return matches, nil
}

// Restore repopulates the registry from the persistence collaborator.
// Called once at startup before serving traffic.
func (s *Service) Restore(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	donors, err := s.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load donors: %w", err)
	}
	for _, donor := range donors {
		if err := s.registry.Insert(ctx, donor); err != nil {
			return 0, fmt.Errorf("restore donor %s: %w", donor.ID, err)
		}
	}
	return len(donors), nil
}

func (s *Service) persist(ctx context.Context, donor domain.Donor) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Persist(ctx, donor); err != nil {
		return fmt.Errorf("persist donor: %w", err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event domain.DonorEvent) {
	if s.events == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.clock.Now()
	}
	_ = s.events.Publish(ctx, event)
}
