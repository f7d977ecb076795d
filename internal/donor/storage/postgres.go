// Package storage persists donors; the in-memory registry is a
// projection of this store when it is configured.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/bloodlink/internal/donor/domain"
)

const donorEventsTopic = "donor.events"

// PostgresStore implements domain.Store. Every Persist writes the donor
// row and a matching outbox event in one transaction; the outbox worker
// ships events to NATS out of band.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs the store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the donors and outbox tables if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS donors (
			id UUID PRIMARY KEY,
			full_name TEXT NOT NULL,
			phone TEXT NOT NULL,
			blood_group TEXT NOT NULL,
			age INT NOT NULL,
			city TEXT NOT NULL,
			lat DOUBLE PRECISION,
			lng DOUBLE PRECISION,
			registered_at TIMESTAMPTZ NOT NULL,
			available BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			id BIGSERIAL PRIMARY KEY,
			topic TEXT NOT NULL,
			payload BYTEA NOT NULL,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Load returns every stored donor for the startup projection.
func (s *PostgresStore) Load(ctx context.Context) ([]domain.Donor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, full_name, phone, blood_group, age, city, lat, lng, registered_at, available FROM donors`)
	if err != nil {
		return nil, fmt.Errorf("select donors: %w", err)
	}
	defer rows.Close()

	var donors []domain.Donor
	for rows.Next() {
		var (
			donor    domain.Donor
			idStr    string
			group    string
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(&idStr, &donor.FullName, &donor.Phone, &group, &donor.Age, &donor.City, &lat, &lng, &donor.RegisteredAt, &donor.Available); err != nil {
			return nil, fmt.Errorf("scan donor: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse donor id %q: %w", idStr, err)
		}
		donor.ID = id
		donor.BloodGroup = domain.BloodGroup(group)
		if lat.Valid && lng.Valid {
			donor.Location = &domain.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
		}
		donors = append(donors, donor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donors: %w", err)
	}
	return donors, nil
}

// Persist upserts the donor and enqueues its outbox event atomically.
func (s *PostgresStore) Persist(ctx context.Context, donor domain.Donor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	var lat, lng sql.NullFloat64
	if donor.Location != nil {
		lat = sql.NullFloat64{Float64: donor.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: donor.Location.Lng, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO donors (id, full_name, phone, blood_group, age, city, lat, lng, registered_at, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			blood_group = EXCLUDED.blood_group,
			age = EXCLUDED.age,
			city = EXCLUDED.city,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			available = EXCLUDED.available`,
		donor.ID.String(), donor.FullName, donor.Phone, string(donor.BloodGroup), donor.Age, donor.City, lat, lng, donor.RegisteredAt, donor.Available)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert donor: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"donor_id":    donor.ID.String(),
		"city":        donor.City,
		"blood_group": string(donor.BloodGroup),
		"available":   donor.Available,
	})
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1, $2)`, donorEventsTopic, payload); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("enqueue outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
