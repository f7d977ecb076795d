package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BloodGroup is one of the eight ABO/Rh whole-blood groups.
type BloodGroup string

const (
	ONeg  BloodGroup = "O-"
	OPos  BloodGroup = "O+"
	ANeg  BloodGroup = "A-"
	APos  BloodGroup = "A+"
	BNeg  BloodGroup = "B-"
	BPos  BloodGroup = "B+"
	ABNeg BloodGroup = "AB-"
	ABPos BloodGroup = "AB+"
)

// AllBloodGroups fixes a canonical iteration order for the enum.
var AllBloodGroups = []BloodGroup{ONeg, OPos, ANeg, APos, BNeg, BPos, ABNeg, ABPos}

var (
	ErrInvalidBloodGroup = errors.New("invalid blood group")
	ErrInvalidRequest    = errors.New("invalid blood request")
	ErrNotFound          = errors.New("donor not found")
	ErrDuplicateDonor    = errors.New("donor already registered")
)

// Valid reports whether g is a member of the closed enum.
func (g BloodGroup) Valid() bool {
	for _, known := range AllBloodGroups {
		if g == known {
			return true
		}
	}
	return false
}

// ParseBloodGroup normalises and validates a wire-format blood group.
func ParseBloodGroup(s string) (BloodGroup, error) {
	g := BloodGroup(strings.ToUpper(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidBloodGroup, s)
	}
	return g, nil
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Donor is the registry's unit of storage. Location is optional; donors
// without coordinates participate only in city-based matching.
type Donor struct {
	ID           uuid.UUID
	FullName     string
	Phone        string
	BloodGroup   BloodGroup
	Age          int
	City         string
	Location     *GeoPoint
	RegisteredAt time.Time
	Available    bool
}

// DonorPatch carries partial field updates; nil means leave unchanged.
type DonorPatch struct {
	FullName   *string
	Phone      *string
	BloodGroup *BloodGroup
	Age        *int
	City       *string
	Location   *GeoPoint
}

// BloodRequest is consumed by a single matching query.
type BloodRequest struct {
	RequiredBloodGroup BloodGroup
	RequiredUnits      int
	HospitalName       string
	ContactName        string
	ContactPhone       string
	City               string
	Location           *GeoPoint
	SubmittedAt        time.Time
}

// Match is one ranked result. DistanceKm is nil when either the request
// or the donor has no coordinates.
type Match struct {
	Donor      Donor    `json:"donor"`
	DistanceKm *float64 `json:"distance_km"`
	Rank       int      `json:"rank"`
}

// MatchOptions tune a single matching call. Limit <= 0 means unbounded.
// RadiusKm > 0 opts in to widening beyond the request city using the
// geo index; widening never happens by default.
type MatchOptions struct {
	Limit    int
	RadiusKm float64
}

// FieldViolation names one violated input constraint.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError aggregates every violated constraint of one input so
// callers can surface all problems at once.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
	}
	return "validation failed: " + strings.Join(fields, ", ")
}

// Add records a violation.
func (e *ValidationError) Add(field, reason string) {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Reason: reason})
}

// Err returns the error value, or nil when nothing was violated.
func (e *ValidationError) Err() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

type DonorEventType string

const (
	EventDonorRegistered     DonorEventType = "DonorRegistered"
	EventDonorUpdated        DonorEventType = "DonorUpdated"
	EventAvailabilityChanged DonorEventType = "AvailabilityChanged"
	EventRequestMatched      DonorEventType = "RequestMatched"
)

type DonorEvent struct {
	DonorID   uuid.UUID
	Type      DonorEventType
	Payload   map[string]any
	CreatedAt time.Time
}

// Registry holds the authoritative mutable donor set. Implementations
// must keep primary and secondary indexes consistent for concurrent
// readers and serialise writers over short critical sections only.
type Registry interface {
	Insert(ctx context.Context, donor Donor) error
	Update(ctx context.Context, id uuid.UUID, patch DonorPatch) (Donor, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (Donor, error)
	Get(ctx context.Context, id uuid.UUID) (Donor, error)
	ByCityAndGroup(ctx context.Context, city string, groups []BloodGroup) ([]Donor, error)
}

// MatchingEngine answers a blood request with a ranked donor list.
type MatchingEngine interface {
	Match(ctx context.Context, req BloodRequest, opts MatchOptions) ([]Match, error)
}

// Store is the optional persistence collaborator; the in-memory registry
// is a projection of it when configured.
type Store interface {
	Load(ctx context.Context) ([]Donor, error)
	Persist(ctx context.Context, donor Donor) error
}

// LocationSnapshot is the latest streamed position of a donor's device.
type LocationSnapshot struct {
	DonorID  uuid.UUID
	Point    GeoPoint
	Accuracy float64
	Updated  time.Time
}

type EventPublisher interface {
	Publish(ctx context.Context, event DonorEvent) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
