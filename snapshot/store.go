// Package snapshot keeps named triangulation archives in a SQLite
// database.
package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/notargets/DGMesh/tria"
	"github.com/notargets/DGMesh/utils"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("snapshot: not found")

// Store is a snapshot database
type Store struct {
	db *sql.DB
}

// Info describes a stored snapshot without its archive
type Info struct {
	ID            string
	Label         string
	Dim           int
	SpaceDim      int
	NLevels       int
	NActiveCells  int
	NUsedVertices int
	Smoothing     string
	BoundaryIDs   []utils.BoundaryID
	CreatedAt     time.Time
}

// Open opens or creates the database at path and brings its schema up to
// date. ":memory:" gives a private in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps :memory: databases and pragmas consistent
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}
	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	utils.Diagf("opened snapshot store %s", path)
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save archives t under label and returns the new snapshot
func (s *Store) Save(ctx context.Context, label string, t *tria.Triangulation) (Info, error) {
	var buf bytes.Buffer
	if err := t.Save(&buf); err != nil {
		return Info{}, err
	}
	info := Info{
		ID:            uuid.NewString(),
		Label:         label,
		Dim:           t.Dim(),
		SpaceDim:      t.SpaceDim(),
		NLevels:       t.NLevels(),
		NActiveCells:  t.NActiveCells(),
		NUsedVertices: t.NUsedVertices(),
		Smoothing:     t.Smoothing().String(),
		BoundaryIDs:   t.BoundaryIDs(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Info{}, err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (snapshot_id, label, dim, spacedim, n_levels, n_active_cells, n_used_vertices, smoothing, archive)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.ID, info.Label, info.Dim, info.SpaceDim, info.NLevels, info.NActiveCells, info.NUsedVertices, info.Smoothing, buf.Bytes())
	if err != nil {
		return Info{}, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	for _, b := range info.BoundaryIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO snapshot_boundary_ids (snapshot_id, boundary_id) VALUES (?, ?)`, info.ID, int64(b)); err != nil {
			return Info{}, fmt.Errorf("failed to insert boundary id: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Info{}, err
	}
	utils.Diagf("saved snapshot %s %q: %d bytes", info.ID, label, buf.Len())
	return s.Get(ctx, info.ID)
}

// Load replaces the contents of t with snapshot id
func (s *Store) Load(ctx context.Context, id string, t *tria.Triangulation) error {
	var archive []byte
	err := s.db.QueryRowContext(ctx, `SELECT archive FROM snapshots WHERE snapshot_id = ?`, id).Scan(&archive)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	return t.Load(bytes.NewReader(archive))
}

const infoColumns = `snapshot_id, label, dim, spacedim, n_levels, n_active_cells, n_used_vertices, smoothing, created_at`

func scanInfo(row interface{ Scan(...any) error }) (Info, error) {
	var info Info
	err := row.Scan(&info.ID, &info.Label, &info.Dim, &info.SpaceDim, &info.NLevels,
		&info.NActiveCells, &info.NUsedVertices, &info.Smoothing, &info.CreatedAt)
	return info, err
}

func (s *Store) boundaryIDs(ctx context.Context, id string) ([]utils.BoundaryID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT boundary_id FROM snapshot_boundary_ids WHERE snapshot_id = ? ORDER BY boundary_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []utils.BoundaryID
	for rows.Next() {
		var b int64
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		out = append(out, utils.BoundaryID(b))
	}
	return out, rows.Err()
}

// Get returns the description of snapshot id
func (s *Store) Get(ctx context.Context, id string) (Info, error) {
	info, err := scanInfo(s.db.QueryRowContext(ctx, `SELECT `+infoColumns+` FROM snapshots WHERE snapshot_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Info{}, err
	}
	if info.BoundaryIDs, err = s.boundaryIDs(ctx, id); err != nil {
		return Info{}, err
	}
	return info, nil
}

// List returns the snapshots carrying label, or all snapshots for an empty
// label, oldest first
func (s *Store) List(ctx context.Context, label string) ([]Info, error) {
	query := `SELECT ` + infoColumns + ` FROM snapshots`
	var args []any
	if label != "" {
		query += ` WHERE label = ?`
		args = append(args, label)
	}
	query += ` ORDER BY created_at, rowid`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var out []Info
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, info)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// the single connection is free again once rows is closed
	for i := range out {
		if out[i].BoundaryIDs, err = s.boundaryIDs(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Delete removes snapshot id
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE snapshot_id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
