// Package registry holds the authoritative in-memory donor set with
// secondary indexes by city and blood group.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/example/bloodlink/internal/donor/domain"
)

// MemoryRegistry implements domain.Registry. A single RWMutex guards
// the primary map and both indexes so a reader never observes a donor
// present in one index but absent from another. All critical sections
// cover only the map mutation, never a full request lifecycle.
type MemoryRegistry struct {
	mu      sync.RWMutex
	donors  map[uuid.UUID]domain.Donor
	byCity  map[string]map[uuid.UUID]struct{}
	byGroup map[domain.BloodGroup]map[uuid.UUID]struct{}
}

// NewMemoryRegistry constructs an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		donors:  make(map[uuid.UUID]domain.Donor),
		byCity:  make(map[string]map[uuid.UUID]struct{}),
		byGroup: make(map[domain.BloodGroup]map[uuid.UUID]struct{}),
	}
}

func cityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// Insert adds a donor and its index entries atomically with respect to
// concurrent readers.
func (r *MemoryRegistry) Insert(_ context.Context, donor domain.Donor) error {
	if !donor.BloodGroup.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidBloodGroup, donor.BloodGroup)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.donors[donor.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateDonor, donor.ID)
	}
	r.donors[donor.ID] = donor
	r.indexLocked(donor)
	return nil
}

// Update applies a partial patch. City or blood-group changes move the
// index entries inside the same critical section.
func (r *MemoryRegistry) Update(_ context.Context, id uuid.UUID, patch domain.DonorPatch) (domain.Donor, error) {
	if patch.BloodGroup != nil && !patch.BloodGroup.Valid() {
		return domain.Donor{}, fmt.Errorf("%w: %q", domain.ErrInvalidBloodGroup, *patch.BloodGroup)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	donor, ok := r.donors[id]
	if !ok {
		return domain.Donor{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	r.unindexLocked(donor)
	if patch.FullName != nil {
		donor.FullName = *patch.FullName
	}
	if patch.Phone != nil {
		donor.Phone = *patch.Phone
	}
	if patch.BloodGroup != nil {
		donor.BloodGroup = *patch.BloodGroup
	}
	if patch.Age != nil {
		donor.Age = *patch.Age
	}
	if patch.City != nil {
		donor.City = *patch.City
	}
	if patch.Location != nil {
		loc := *patch.Location
		donor.Location = &loc
	}
	r.donors[id] = donor
	r.indexLocked(donor)
	return donor, nil
}

// SetAvailability toggles a donor's visibility to search without
// touching its historical identity.
func (r *MemoryRegistry) SetAvailability(_ context.Context, id uuid.UUID, available bool) (domain.Donor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	donor, ok := r.donors[id]
	if !ok {
		return domain.Donor{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	donor.Available = available
	r.donors[id] = donor
	return donor, nil
}

// Get retrieves a donor by identifier.
func (r *MemoryRegistry) Get(_ context.Context, id uuid.UUID) (domain.Donor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	donor, ok := r.donors[id]
	if !ok {
		return domain.Donor{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return donor, nil
}

// ByCityAndGroup returns every available donor whose city matches
// case-insensitively and whose blood group is in groups. Order is
// unspecified; ranking belongs to the matching engine. The returned
// slice is a snapshot taken at entry.
func (r *MemoryRegistry) ByCityAndGroup(_ context.Context, city string, groups []domain.BloodGroup) ([]domain.Donor, error) {
	wanted := make(map[domain.BloodGroup]struct{}, len(groups))
	for _, g := range groups {
		wanted[g] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byCity[cityKey(city)]
	donors := make([]domain.Donor, 0, len(ids))
	for id := range ids {
		donor := r.donors[id]
		if !donor.Available {
			continue
		}
		if _, ok := wanted[donor.BloodGroup]; !ok {
			continue
		}
		donors = append(donors, donor)
	}
	return donors, nil
}

// Restore bulk-loads donors from the persistence collaborator,
// replacing current contents. Intended for startup only.
func (r *MemoryRegistry) Restore(donors []domain.Donor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.donors = make(map[uuid.UUID]domain.Donor, len(donors))
	r.byCity = make(map[string]map[uuid.UUID]struct{})
	r.byGroup = make(map[domain.BloodGroup]map[uuid.UUID]struct{})
	for _, donor := range donors {
		r.donors[donor.ID] = donor
		r.indexLocked(donor)
	}
}

// Len reports the number of stored donors.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.donors)
}

func (r *MemoryRegistry) indexLocked(donor domain.Donor) {
	ck := cityKey(donor.City)
	if r.byCity[ck] == nil {
		r.byCity[ck] = make(map[uuid.UUID]struct{})
	}
	r.byCity[ck][donor.ID] = struct{}{}
	if r.byGroup[donor.BloodGroup] == nil {
		r.byGroup[donor.BloodGroup] = make(map[uuid.UUID]struct{})
	}
	r.byGroup[donor.BloodGroup][donor.ID] = struct{}{}
}

func (r *MemoryRegistry) unindexLocked(donor domain.Donor) {
	delete(r.byCity[cityKey(donor.City)], donor.ID)
	delete(r.byGroup[donor.BloodGroup], donor.ID)
}
