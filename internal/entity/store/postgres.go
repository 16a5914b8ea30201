package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"fides/internal/entity/models"
	"fides/pkg/platform/sentinel"
)

// Postgres implements EntityStore on PostgreSQL via the pgx stdlib driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres opens a pgx-backed database handle and verifies connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

const uniqueViolation = "23505"

func (s *Postgres) Create(ctx context.Context, entity *models.LegalEntity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO legal_entities (id, country, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entity.ID, entity.Country, entity.Name, entity.CreatedAt, entity.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert entity: %w", err)
	}
	for _, identifier := range entity.Identifiers {
		if err := insertIdentifier(ctx, tx, entity.ID, identifier); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.LegalEntity, error) {
	entity := &models.LegalEntity{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, country, name, created_at, updated_at
		 FROM legal_entities WHERE id = $1`, id,
	).Scan(&entity.ID, &entity.Country, &entity.Name, &entity.CreatedAt, &entity.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find entity: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, value, COALESCE(country, ''), source, status, created_at
		 FROM identifiers WHERE entity_id = $1 ORDER BY created_at, type`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("load identifiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var identifier models.Identifier
		if err := rows.Scan(
			&identifier.Type, &identifier.Value, &identifier.Country,
			&identifier.Source, &identifier.Status, &identifier.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan identifier: %w", err)
		}
		entity.Identifiers = append(entity.Identifiers, identifier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identifiers: %w", err)
	}
	return entity, nil
}

func (s *Postgres) AppendIdentifier(ctx context.Context, entityID uuid.UUID, identifier models.Identifier) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM legal_entities WHERE id = $1)`, entityID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check entity: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return insertIdentifier(ctx, s.db, entityID, identifier)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertIdentifier(ctx context.Context, db execer, entityID uuid.UUID, identifier models.Identifier) error {
	country := sql.NullString{String: identifier.Country, Valid: identifier.Country != ""}
	_, err := db.ExecContext(ctx,
		`INSERT INTO identifiers (id, entity_id, type, value, country, source, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), entityID, identifier.Type, identifier.Value, country,
		identifier.Source, identifier.Status, identifier.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert identifier: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Schema is the DDL for the entity store. Migration tooling lives with the
// surrounding portal; integration tests apply this directly.
const Schema = `
CREATE TABLE IF NOT EXISTS legal_entities (
    id         UUID PRIMARY KEY,
    country    CHAR(2) NOT NULL,
    name       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS identifiers (
    id         UUID PRIMARY KEY,
    entity_id  UUID NOT NULL REFERENCES legal_entities(id) ON DELETE CASCADE,
    type       TEXT NOT NULL,
    value      TEXT NOT NULL,
    country    CHAR(2),
    source     TEXT NOT NULL,
    status     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    UNIQUE (entity_id, type)
);
`
