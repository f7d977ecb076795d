package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/bloodlink/internal/donor/domain"
)

// GeoIndex abstracts a spatial index of donor locations. Implementations
// return donor ids sorted by proximity (closest first); limit <= 0 means
// no bound.
type GeoIndex interface {
	Nearby(ctx context.Context, point domain.GeoPoint, radiusKM float64, limit int) ([]uuid.UUID, error)
}

var errInvalidGeoMember = errors.New("invalid geo index member")

const defaultGeoKey = "donor:locs"

// RedisGeoIndex keeps donor coordinates in a Redis GEO set so the
// engine can serve opt-in radius widening without scanning the registry.
type RedisGeoIndex struct {
	client *redis.Client
	key    string
}

// NewRedisGeoIndex constructs a Redis-backed donor geo index.
func NewRedisGeoIndex(client *redis.Client, key string) *RedisGeoIndex {
	if key == "" {
		key = defaultGeoKey
	}
	return &RedisGeoIndex{client: client, key: key}
}

// UpsertLocation records or moves a donor's coordinates.
func (r *RedisGeoIndex) UpsertLocation(ctx context.Context, donorID uuid.UUID, point domain.GeoPoint) error {
	err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      donorID.String(),
		Latitude:  point.Lat,
		Longitude: point.Lng,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis geoadd: %w", err)
	}
	return nil
}

// Remove drops a donor from the index.
func (r *RedisGeoIndex) Remove(ctx context.Context, donorID uuid.UUID) error {
	if err := r.client.ZRem(ctx, r.key, donorID.String()).Err(); err != nil {
		return fmt.Errorf("redis zrem: %w", err)
	}
	return nil
}

// Nearby returns donor ids within radiusKM of point, closest first.
func (r *RedisGeoIndex) Nearby(ctx context.Context, point domain.GeoPoint, radiusKM float64, limit int) ([]uuid.UUID, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("redis geo index not configured")
	}

	if limit < 0 {
		limit = 0
	}
	query := &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  point.Lng,
			Latitude:   point.Lat,
			Radius:     radiusKM,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithDist: true,
	}

	results, err := r.client.GeoSearchLocation(ctx, r.key, query).Result()
	if err != nil {
		return nil, fmt.Errorf("redis geosearch: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(results))
	for _, res := range results {
		id, err := uuid.Parse(res.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errInvalidGeoMember, res.Name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
