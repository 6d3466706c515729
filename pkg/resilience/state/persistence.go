// Package state provides durable snapshot and recovery-point persistence
// for the resilience fabric, backed by Postgres via sqlx.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	atlaserrors "github.com/S-Corkum/atlas-core/pkg/errors"
	"github.com/S-Corkum/atlas-core/pkg/observability"
)

// Snapshot is a single persisted state capture for a given state type.
type Snapshot struct {
	ID        int64           `db:"id" json:"id"`
	StateType string          `db:"state_type" json:"state_type"`
	Data      json.RawMessage `db:"data" json:"data"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// RecoveryPoint marks a snapshot as a named point a system can be
// restored to.
type RecoveryPoint struct {
	ID          int64     `db:"id" json:"id"`
	StateType   string    `db:"state_type" json:"state_type"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Store persists snapshots and recovery points.
type Store struct {
	db      *sqlx.DB
	logger  observability.Logger
	metrics observability.MetricsClient
}

// NewStore wraps an existing *sql.DB (already migrated) with the
// persistence API.
func NewStore(db *sql.DB, logger observability.Logger, metrics observability.MetricsClient) *Store {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Store{
		db:      sqlx.NewDb(db, "postgres"),
		logger:  logger,
		metrics: metrics,
	}
}

// SaveSnapshot persists a new snapshot of state for stateType.
func (s *Store) SaveSnapshot(ctx context.Context, stateType string, data any) (*Snapshot, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, atlaserrors.Wrap(err, "state_marshal_failed", atlaserrors.ClassValidation)
	}

	snap := &Snapshot{StateType: stateType, Data: payload, CreatedAt: time.Now().UTC()}
	row := s.db.QueryRowxContext(ctx,
		`INSERT INTO snapshots (state_type, data, created_at) VALUES ($1, $2, $3) RETURNING id`,
		snap.StateType, []byte(snap.Data), snap.CreatedAt,
	)
	if err := row.Scan(&snap.ID); err != nil {
		return nil, atlaserrors.Wrap(err, "state_save_failed", atlaserrors.ClassTransient)
	}

	s.logger.Info("snapshot saved", map[string]interface{}{"state_type": stateType, "id": snap.ID})
	if s.metrics != nil {
		s.metrics.IncrementCounterWithLabels("state_snapshots_saved", 1, map[string]string{"state_type": stateType})
	}
	return snap, nil
}

// LoadLatestSnapshot returns the most recent snapshot for stateType.
func (s *Store) LoadLatestSnapshot(ctx context.Context, stateType string) (*Snapshot, error) {
	var snap Snapshot
	err := s.db.GetContext(ctx, &snap,
		`SELECT id, state_type, data, created_at FROM snapshots
		 WHERE state_type = $1 ORDER BY created_at DESC LIMIT 1`, stateType)
	if err == sql.ErrNoRows {
		return nil, atlaserrors.New("state_not_found", "no snapshot for state type "+stateType, atlaserrors.ClassNotFound)
	}
	if err != nil {
		return nil, atlaserrors.Wrap(err, "state_load_failed", atlaserrors.ClassTransient)
	}
	return &snap, nil
}

// CreateRecoveryPoint records a recovery point for stateType, failing
// with a ClassNotFound error when no snapshot of that type exists. The
// recovery point stores no snapshot ids: RestoreFromRecoveryPoint
// resolves it to the latest snapshot of stateType created at or before
// the recovery point.
func (s *Store) CreateRecoveryPoint(ctx context.Context, stateType, description string) (*RecoveryPoint, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM snapshots s
			WHERE s.state_type = $1
		)`, stateType)
	if err != nil {
		return nil, atlaserrors.Wrap(err, "recovery_point_check_failed", atlaserrors.ClassTransient)
	}
	if !exists {
		return nil, atlaserrors.New("state_not_found", "no snapshot to anchor recovery point for "+stateType, atlaserrors.ClassNotFound)
	}

	rp := &RecoveryPoint{StateType: stateType, Description: description, CreatedAt: time.Now().UTC()}
	row := s.db.QueryRowxContext(ctx,
		`INSERT INTO recovery_points (state_type, description, created_at) VALUES ($1, $2, $3) RETURNING id`,
		rp.StateType, rp.Description, rp.CreatedAt,
	)
	if err := row.Scan(&rp.ID); err != nil {
		return nil, atlaserrors.Wrap(err, "recovery_point_create_failed", atlaserrors.ClassTransient)
	}
	return rp, nil
}

// RestoreFromRecoveryPoint returns the snapshot that was latest as of a
// named recovery point's creation. Returns a ClassNotFound error if the
// recovery point does not exist (the original raised ValueError here).
func (s *Store) RestoreFromRecoveryPoint(ctx context.Context, recoveryPointID int64) (*Snapshot, error) {
	var rp RecoveryPoint
	err := s.db.GetContext(ctx, &rp,
		`SELECT id, state_type, description, created_at FROM recovery_points WHERE id = $1`, recoveryPointID)
	if err == sql.ErrNoRows {
		return nil, atlaserrors.New("recovery_point_not_found", "recovery point not found", atlaserrors.ClassNotFound)
	}
	if err != nil {
		return nil, atlaserrors.Wrap(err, "recovery_point_lookup_failed", atlaserrors.ClassTransient)
	}

	var snap Snapshot
	err = s.db.GetContext(ctx, &snap,
		`SELECT id, state_type, data, created_at FROM snapshots
		 WHERE state_type = $1 AND created_at <= $2 ORDER BY created_at DESC LIMIT 1`,
		rp.StateType, rp.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, atlaserrors.New("state_not_found", "no snapshot available at recovery point", atlaserrors.ClassNotFound)
	}
	if err != nil {
		return nil, atlaserrors.Wrap(err, "state_restore_failed", atlaserrors.ClassTransient)
	}
	return &snap, nil
}

// ListRecoveryPoints returns every recovery point registered for stateType,
// newest first.
func (s *Store) ListRecoveryPoints(ctx context.Context, stateType string) ([]RecoveryPoint, error) {
	var points []RecoveryPoint
	err := s.db.SelectContext(ctx, &points,
		`SELECT id, state_type, description, created_at FROM recovery_points
		 WHERE state_type = $1 ORDER BY created_at DESC`, stateType)
	if err != nil {
		return nil, atlaserrors.Wrap(err, "recovery_point_list_failed", atlaserrors.ClassTransient)
	}
	return points, nil
}

// CleanupOldSnapshots deletes every snapshot older than before, except the
// newest snapshot per state type (so a restore path always has somewhere
// to land), matching the original's cleanup behavior.
func (s *Store) CleanupOldSnapshots(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE created_at < $1
		AND id NOT IN (
			SELECT DISTINCT ON (state_type) id FROM snapshots ORDER BY state_type, created_at DESC
		)`, before)
	if err != nil {
		return 0, atlaserrors.Wrap(err, "state_cleanup_failed", atlaserrors.ClassTransient)
	}
	n, _ := res.RowsAffected()
	s.logger.Info("cleaned up old snapshots", map[string]interface{}{"deleted": n})
	return n, nil
}
