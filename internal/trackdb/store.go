package trackdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/pointtrack/internal/sot/l8track"
	"github.com/banshee-data/pointtrack/internal/sot/pipeline"
	"github.com/banshee-data/pointtrack/internal/timeutil"
)

// Store is the tracking results database.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens the results database at path, creating it if needed, and
// brings its schema up to date. ":memory:" yields a private in-memory
// store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("trackdb: open %s: %w", path, err)
	}
	// One connection: writes serialize anyway, and an in-memory store
	// would otherwise hand every pooled connection its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA foreign_keys = ON;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("trackdb: set pragmas: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, clock: timeutil.RealClock{}}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one tracking run's write handle. It implements
// pipeline.ResultSink; SaveTrajectory may be called from several workers
// at once.
type Run struct {
	store *Store
	id    string
}

// CreateRun registers a new run with a JSON snapshot of its configuration
// and returns its write handle.
func (s *Store) CreateRun(ctx context.Context, config interface{}) (*Run, error) {
	snapshot, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("trackdb: snapshot config: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, config) VALUES (?, ?, ?)`,
		id, s.clock.Now().UTC().Format(time.RFC3339Nano), string(snapshot))
	if err != nil {
		return nil, fmt.Errorf("trackdb: create run: %w", err)
	}
	return &Run{store: s, id: id}, nil
}

// ID returns the run's identifier.
func (r *Run) ID() string { return r.id }

// SaveTrajectory writes one sequence's summary row and per-frame boxes in
// a single transaction.
func (r *Run) SaveTrajectory(ctx context.Context, tr pipeline.Trajectory) error {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("trackdb: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sequences (run_id, sequence_id, frame_count, final_state, mean_confidence)
		 VALUES (?, ?, ?, ?, ?)`,
		r.id, tr.SequenceID, len(tr.Results), string(tr.FinalState), tr.MeanConfidence(),
	); err != nil {
		return fmt.Errorf("trackdb: insert sequence %s: %w", tr.SequenceID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO frames (
			run_id, sequence_id, frame_index,
			center_x, center_y, center_z, length, width, height, heading_rad,
			confidence, state, degraded
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("trackdb: prepare frame insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range tr.Results {
		if _, err := stmt.ExecContext(ctx,
			r.id, tr.SequenceID, res.FrameIndex,
			res.Box.CenterX, res.Box.CenterY, res.Box.CenterZ,
			res.Box.Length, res.Box.Width, res.Box.Height, res.Box.HeadingRad,
			res.Confidence, string(res.State), res.Degraded,
		); err != nil {
			return fmt.Errorf("trackdb: insert frame %d of %s: %w", res.FrameIndex, tr.SequenceID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("trackdb: commit trajectory %s: %w", tr.SequenceID, err)
	}
	return nil
}

// Trajectory reads one saved sequence back, frames ordered by index.
func (s *Store) Trajectory(ctx context.Context, runID, sequenceID string) (pipeline.Trajectory, error) {
	tr := pipeline.Trajectory{SequenceID: sequenceID}

	var finalState string
	err := s.db.QueryRowContext(ctx,
		`SELECT final_state FROM sequences WHERE run_id = ? AND sequence_id = ?`,
		runID, sequenceID).Scan(&finalState)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Trajectory{}, fmt.Errorf("trackdb: run %s has no sequence %s", runID, sequenceID)
	}
	if err != nil {
		return pipeline.Trajectory{}, fmt.Errorf("trackdb: load sequence %s: %w", sequenceID, err)
	}
	tr.FinalState = l8track.TrackState(finalState)

	rows, err := s.db.QueryContext(ctx,
		`SELECT frame_index, center_x, center_y, center_z, length, width, height, heading_rad,
		        confidence, state, degraded
		 FROM frames WHERE run_id = ? AND sequence_id = ?
		 ORDER BY frame_index`,
		runID, sequenceID)
	if err != nil {
		return pipeline.Trajectory{}, fmt.Errorf("trackdb: load frames of %s: %w", sequenceID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var res l8track.Result
		var state string
		if err := rows.Scan(
			&res.FrameIndex,
			&res.Box.CenterX, &res.Box.CenterY, &res.Box.CenterZ,
			&res.Box.Length, &res.Box.Width, &res.Box.Height, &res.Box.HeadingRad,
			&res.Confidence, &state, &res.Degraded,
		); err != nil {
			return pipeline.Trajectory{}, fmt.Errorf("trackdb: scan frame of %s: %w", sequenceID, err)
		}
		res.State = l8track.TrackState(state)
		tr.Results = append(tr.Results, res)
	}
	if err := rows.Err(); err != nil {
		return pipeline.Trajectory{}, fmt.Errorf("trackdb: load frames of %s: %w", sequenceID, err)
	}
	return tr, nil
}
