package geofence

import (
	"context"

	"workforce-backend/internal/platform/db"
)

// RegionStore は office_locations への insert-only なアクセス
type RegionStore interface {
	Insert(ctx context.Context, r Region) error
	List(ctx context.Context) ([]Region, error)
}

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

func (s *Store) Insert(ctx context.Context, r Region) error {
	const q = `
	INSERT INTO office_locations (id, name, latitude, longitude, radius_meters, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, r.ID, r.Name, r.Latitude, r.Longitude, r.RadiusMeters, r.CreatedAt)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return ErrConflict("office location already exists")
		}
		return err
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]Region, error) {
	const q = `
	SELECT id, name, latitude, longitude, radius_meters, created_at
	FROM office_locations
	ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Region, 0, 8)
	for rows.Next() {
		var r Region
		if err := rows.Scan(&r.ID, &r.Name, &r.Latitude, &r.Longitude, &r.RadiusMeters, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ RegionStore = (*Store)(nil)
