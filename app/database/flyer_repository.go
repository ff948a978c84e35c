package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ FlyerRepository = (*FlyerRepo)(nil)

// FlyerRepo handles database operations for flyers
type FlyerRepo struct {
	db *DB
}

// NewFlyerRepository creates a new flyer repository
func NewFlyerRepository(db *DB) *FlyerRepo {
	return &FlyerRepo{db: db}
}

// FlyerExists reports whether a flyer with the given external id is already persisted
func (r *FlyerRepo) FlyerExists(flyerID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM flyers WHERE flyer_id = $1)
	`, flyerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check flyer existence: %w", err)
	}
	return exists, nil
}

// GetFlyer retrieves a flyer by its external id
func (r *FlyerRepo) GetFlyer(flyerID int64) (*Flyer, error) {
	var flyer Flyer
	err := r.db.QueryRow(`
		SELECT flyer_id, flyer_url, profile, store_chain, valid_until, retrieved, created_at, updated_at
		FROM flyers
		WHERE flyer_id = $1
	`, flyerID).Scan(
		&flyer.FlyerID, &flyer.FlyerURL, &flyer.Profile, &flyer.StoreChain, &flyer.ValidUntil,
		&flyer.Retrieved, &flyer.CreatedAt, &flyer.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flyer: %w", err)
	}

	return &flyer, nil
}

// InsertFlyer persists a newly discovered flyer. Re-inserting an already
// known flyer id is a no-op so discovery stays idempotent.
func (r *FlyerRepo) InsertFlyer(flyer Flyer) error {
	_, err := r.db.Exec(`
		INSERT INTO flyers (flyer_id, flyer_url, profile, store_chain, valid_until, retrieved)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		ON CONFLICT (flyer_id) DO NOTHING
	`, flyer.FlyerID, flyer.FlyerURL, flyer.Profile, flyer.StoreChain, flyer.ValidUntil)

	if err != nil {
		return fmt.Errorf("failed to insert flyer: %w", err)
	}

	return nil
}

// MarkRetrieved flags a flyer as fully ingested
func (r *FlyerRepo) MarkRetrieved(flyerID int64) error {
	_, err := r.db.Exec(`
		UPDATE flyers
		SET retrieved = TRUE, updated_at = NOW()
		WHERE flyer_id = $1
	`, flyerID)

	if err != nil {
		return fmt.Errorf("failed to mark flyer retrieved: %w", err)
	}

	return nil
}

// ListPendingFlyers returns flyers whose items have not been fully ingested yet
func (r *FlyerRepo) ListPendingFlyers() ([]Flyer, error) {
	rows, err := r.db.Query(`
		SELECT flyer_id, flyer_url, profile, store_chain, valid_until, retrieved, created_at, updated_at
		FROM flyers
		WHERE retrieved = FALSE
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending flyers: %w", err)
	}
	defer rows.Close()

	var flyers []Flyer
	for rows.Next() {
		var flyer Flyer
		err := rows.Scan(
			&flyer.FlyerID, &flyer.FlyerURL, &flyer.Profile, &flyer.StoreChain, &flyer.ValidUntil,
			&flyer.Retrieved, &flyer.CreatedAt, &flyer.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flyer row: %w", err)
		}
		flyers = append(flyers, flyer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flyer rows: %w", err)
	}

	return flyers, nil
}

// DeleteExpired removes flyers whose validity date is strictly before the
// given date. Products cascade through the foreign key.
func (r *FlyerRepo) DeleteExpired(before time.Time) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM flyers
		WHERE valid_until IS NOT NULL AND valid_until < $1
	`, before)

	if err != nil {
		return 0, fmt.Errorf("failed to delete expired flyers: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted flyers: %w", err)
	}

	return deleted, nil
}

// GetFlyerCount returns the total number of flyers
func (r *FlyerRepo) GetFlyerCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM flyers").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get flyer count: %w", err)
	}
	return count, nil
}
