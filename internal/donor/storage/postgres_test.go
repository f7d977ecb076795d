package storage_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	testcontainers "github.com/testcontainers/testcontainers-go"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/bloodlink/internal/donor/domain"
	"github.com/example/bloodlink/internal/donor/storage"
)

func openStore(t *testing.T, ctx context.Context) (*storage.PostgresStore, *sql.DB) {
	t.Helper()
	pg, err := postgrescontainer.Run(ctx, "postgres:16",
		postgrescontainer.WithDatabase("bloodlink"),
		postgrescontainer.WithUsername("postgres"),
		postgrescontainer.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections")))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, pg.Terminate(ctx)) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	t.Cleanup(func() { _ = db.Close() })

	store := storage.NewPostgresStore(db)
	require.NoError(t, store.EnsureSchema(ctx))
	return store, db
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, db := openStore(t, ctx)

	donor := domain.Donor{
		ID:           uuid.New(),
		FullName:     "Krishna Adhikari",
		Phone:        "+977-9840000009",
		BloodGroup:   domain.BNeg,
		Age:          52,
		City:         "Butwal",
		Location:     &domain.GeoPoint{Lat: 27.6866, Lng: 83.4323},
		RegisteredAt: time.Now().UTC().Truncate(time.Microsecond),
		Available:    true,
	}
	require.NoError(t, store.Persist(ctx, donor))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, donor.ID, loaded[0].ID)
	require.Equal(t, donor.BloodGroup, loaded[0].BloodGroup)
	require.NotNil(t, loaded[0].Location)
	require.InDelta(t, donor.Location.Lat, loaded[0].Location.Lat, 1e-9)

	// every mutation enqueues an outbox event in the same transaction
	var pending int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM outbox WHERE published = false`).Scan(&pending))
	require.Equal(t, 1, pending)
}

func TestPersistUpsertsExistingDonor(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t, ctx)

	donor := domain.Donor{
		ID:           uuid.New(),
		FullName:     "Nirmala KC",
		Phone:        "+977-9840000010",
		BloodGroup:   domain.APos,
		Age:          31,
		City:         "Kathmandu",
		RegisteredAt: time.Now().UTC().Truncate(time.Microsecond),
		Available:    true,
	}
	require.NoError(t, store.Persist(ctx, donor))

	donor.Available = false
	donor.City = "Bhaktapur"
	require.NoError(t, store.Persist(ctx, donor))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.False(t, loaded[0].Available)
	require.Equal(t, "Bhaktapur", loaded[0].City)
}
