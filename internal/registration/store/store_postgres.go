package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"eventgate/internal/registration/models"
	"eventgate/pkg/domain"
	"eventgate/pkg/platform/sentinel"
)

// PostgresStore persists registrations in PostgreSQL. Registrants cascade
// from their registration at the schema level; Update rewrites the registrant
// list inside one transaction so readers never observe a partial snapshot.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, registration *models.Registration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create registration: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO registrations (id, event_entity_type, event_entity_id, registrant_qty, confirmed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, registration.ID.String(), registration.EventRef.Type, registration.EventRef.ID,
		registration.RegistrantQty, registration.Confirmed, registration.CreatedAt, registration.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("registration %s: %w", registration.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	if err := insertRegistrants(ctx, tx, registration.ID, registration.Registrants); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create registration: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.RegistrationID) (*models.Registration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, event_entity_type, event_entity_id, registrant_qty, confirmed, created_at, updated_at
		FROM registrations
		WHERE id = $1
	`, id.String())
	registration, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("registration %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	if err := s.loadRegistrants(ctx, registration); err != nil {
		return nil, err
	}
	return registration, nil
}

func (s *PostgresStore) ListByEvent(ctx context.Context, event domain.EntityRef) ([]*models.Registration, error) {
	return s.list(ctx, `
		SELECT id, event_entity_type, event_entity_id, registrant_qty, confirmed, created_at, updated_at
		FROM registrations
		WHERE event_entity_type = $1 AND event_entity_id = $2
		ORDER BY created_at
	`, event.Type, event.ID)
}

func (s *PostgresStore) ListByIdentity(ctx context.Context, event domain.EntityRef, identity domain.EntityRef) ([]*models.Registration, error) {
	return s.list(ctx, `
		SELECT DISTINCT r.id, r.event_entity_type, r.event_entity_id, r.registrant_qty, r.confirmed, r.created_at, r.updated_at
		FROM registrations r
		JOIN registrants g ON g.registration_id = r.id
		WHERE r.event_entity_type = $1 AND r.event_entity_id = $2
		  AND g.identity_entity_type = $3 AND g.identity_entity_id = $4
		ORDER BY r.created_at
	`, event.Type, event.ID, identity.Type, identity.ID)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []*models.Registration
	for rows.Next() {
		registration, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, registration)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	for _, registration := range out {
		if err := s.loadRegistrants(ctx, registration); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, registration *models.Registration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update registration: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE registrations
		SET registrant_qty = $2, confirmed = $3, updated_at = $4
		WHERE id = $1
	`, registration.ID.String(), registration.RegistrantQty, registration.Confirmed, registration.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("registration %s: %w", registration.ID, sentinel.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM registrants WHERE registration_id = $1`, registration.ID.String()); err != nil {
		return fmt.Errorf("clear registrants: %w", err)
	}
	if err := insertRegistrants(ctx, tx, registration.ID, registration.Registrants); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update registration: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.RegistrationID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("registration %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteByEvent(ctx context.Context, event domain.EntityRef) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM registrations WHERE event_entity_type = $1 AND event_entity_id = $2
	`, event.Type, event.ID)
	if err != nil {
		return 0, fmt.Errorf("delete registrations by event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete registrations by event: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) loadRegistrants(ctx context.Context, registration *models.Registration) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, registration_id, identity_entity_type, identity_entity_id, kind, created_at
		FROM registrants
		WHERE registration_id = $1
		ORDER BY position
	`, registration.ID.String())
	if err != nil {
		return fmt.Errorf("load registrants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		registrant, err := scanRegistrant(rows)
		if err != nil {
			return fmt.Errorf("scan registrant: %w", err)
		}
		registration.Registrants = append(registration.Registrants, *registrant)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load registrants: %w", err)
	}
	return nil
}

func insertRegistrants(ctx context.Context, tx *sql.Tx, registrationID domain.RegistrationID, registrants []models.Registrant) error {
	for i, registrant := range registrants {
		var identityType, identityID any
		if registrant.Identity != nil {
			identityType = registrant.Identity.Type
			identityID = registrant.Identity.ID
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO registrants (id, registration_id, identity_entity_type, identity_entity_id, kind, position, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, registrant.ID.String(), registrationID.String(), identityType, identityID, registrant.Kind, i, registrant.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert registrant: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var registration models.Registration
	var rawID string
	if err := row.Scan(&rawID, &registration.EventRef.Type, &registration.EventRef.ID,
		&registration.RegistrantQty, &registration.Confirmed, &registration.CreatedAt, &registration.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := domain.ParseRegistrationID(rawID)
	if err != nil {
		return nil, err
	}
	registration.ID = id
	return &registration, nil
}

func scanRegistrant(row rowScanner) (*models.Registrant, error) {
	var registrant models.Registrant
	var rawID, rawRegistrationID string
	var identityType, identityID sql.NullString
	if err := row.Scan(&rawID, &rawRegistrationID, &identityType, &identityID, &registrant.Kind, &registrant.CreatedAt); err != nil {
		return nil, err
	}
	id, err := domain.ParseRegistrantID(rawID)
	if err != nil {
		return nil, err
	}
	registrant.ID = id
	registrationID, err := domain.ParseRegistrationID(rawRegistrationID)
	if err != nil {
		return nil, err
	}
	registrant.RegistrationID = registrationID
	if identityType.Valid && identityID.Valid {
		registrant.Identity = &domain.EntityRef{Type: identityType.String, ID: identityID.String}
	}
	return &registrant, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
