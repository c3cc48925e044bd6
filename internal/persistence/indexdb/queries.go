package indexdb

import (
	"context"
	"database/sql"
	"errors"
)

type SnapshotInfo struct {
	Tick          uint64 `json:"tick"`
	Path          string `json:"path"`
	WorldID       string `json:"world_id"`
	Seed          int64  `json:"seed"`
	Containers    int    `json:"containers"`
	Processes     int    `json:"processes"`
	Stockpile     int    `json:"stockpile"`
	CatalogDigest string `json:"catalog_digest"`
}

type ExtractionTotal struct {
	Item    string `json:"item"`
	Quality string `json:"quality,omitempty"`
	Count   int    `json:"count"`
	Batches int    `json:"batches"`
}

type SignalCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// ErrNotFound is returned by single-row lookups with no match.
var ErrNotFound = errors.New("not found")

func (s *SQLiteIndex) Snapshots(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick,path,world_id,seed,containers,processes,stockpile,catalog_digest
		FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotInfo
	for rows.Next() {
		var si SnapshotInfo
		var tick int64
		if err := rows.Scan(&tick, &si.Path, &si.WorldID, &si.Seed, &si.Containers, &si.Processes, &si.Stockpile, &si.CatalogDigest); err != nil {
			return nil, err
		}
		si.Tick = uint64(tick)
		out = append(out, si)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) LatestSnapshot(ctx context.Context) (SnapshotInfo, error) {
	list, err := s.Snapshots(ctx, 1)
	if err != nil {
		return SnapshotInfo{}, err
	}
	if len(list) == 0 {
		return SnapshotInfo{}, ErrNotFound
	}
	return list[0], nil
}

func (s *SQLiteIndex) TickDigest(ctx context.Context, tick uint64) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM ticks WHERE tick=?`, int64(tick)).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return d, err
}

// ExtractionTotals sums EXTRACT audits by item and quality, largest first.
func (s *SQLiteIndex) ExtractionTotals(ctx context.Context) ([]ExtractionTotal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item, COALESCE(quality,''), SUM(count), COUNT(*)
		FROM audits WHERE action='EXTRACT' GROUP BY item, quality ORDER BY SUM(count) DESC, item`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExtractionTotal
	for rows.Next() {
		var e ExtractionTotal
		if err := rows.Scan(&e.Item, &e.Quality, &e.Count, &e.Batches); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SignalCounts counts signals by kind in [fromTick, toTick]. toTick 0 means
// no upper bound.
func (s *SQLiteIndex) SignalCounts(ctx context.Context, fromTick, toTick uint64) ([]SignalCount, error) {
	q := `SELECT kind, COUNT(*) FROM signals WHERE tick >= ?`
	args := []any{int64(fromTick)}
	if toTick > 0 {
		q += ` AND tick <= ?`
		args = append(args, int64(toTick))
	}
	q += ` GROUP BY kind ORDER BY kind`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SignalCount
	for rows.Next() {
		var c SignalCount
		if err := rows.Scan(&c.Kind, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CatalogDigest returns the stored digest for a catalog entry name, e.g.
// "loaded" or "processors.json".
func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name=?`, name).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return d, err
}
