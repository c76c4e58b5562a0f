package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/steveyegge/sabre/internal/types"
)

// GetToolchain returns the indexed snapshot for version, or nil if absent
func (s *SQLiteStorage) GetToolchain(ctx context.Context, version string) (*types.ToolchainSnapshot, error) {
	var snap types.ToolchainSnapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT version, long_version, sha256, size, path
		FROM toolchains WHERE version = ?
	`, version).Scan(&snap.Version, &snap.LongVersion, &snap.SHA256, &snap.Size, &snap.Path)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get toolchain %s: %w", version, err)
	}
	return &snap, nil
}

// PutToolchain inserts or replaces the index row for snap.Version
func (s *SQLiteStorage) PutToolchain(ctx context.Context, snap types.ToolchainSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO toolchains (version, long_version, sha256, size, path, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET
			long_version = excluded.long_version,
			sha256 = excluded.sha256,
			size = excluded.size,
			path = excluded.path,
			fetched_at = excluded.fetched_at
	`, snap.Version, snap.LongVersion, snap.SHA256, snap.Size, snap.Path, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to put toolchain %s: %w", snap.Version, err)
	}
	return nil
}

// DeleteToolchain removes the index row, reporting whether one existed
func (s *SQLiteStorage) DeleteToolchain(ctx context.Context, version string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM toolchains WHERE version = ?`, version)
	if err != nil {
		return false, fmt.Errorf("failed to delete toolchain %s: %w", version, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ListToolchains returns every indexed snapshot ordered by version string
func (s *SQLiteStorage) ListToolchains(ctx context.Context) ([]types.ToolchainSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, long_version, sha256, size, path
		FROM toolchains ORDER BY version
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list toolchains: %w", err)
	}
	defer rows.Close()

	var out []types.ToolchainSnapshot
	for rows.Next() {
		var snap types.ToolchainSnapshot
		if err := rows.Scan(&snap.Version, &snap.LongVersion, &snap.SHA256, &snap.Size, &snap.Path); err != nil {
			return nil, fmt.Errorf("failed to scan toolchain: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// CountBySHA256 returns how many versions reference a blob
func (s *SQLiteStorage) CountBySHA256(ctx context.Context, sha string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM toolchains WHERE sha256 = ?`, sha).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count toolchains: %w", err)
	}
	return n, nil
}
