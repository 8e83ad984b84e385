package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flockhq/flock/internal/record"
)

// ReplaceMembers swaps the entire member directory cache for the rows
// fetched from the server. The replace runs in one transaction so readers
// never observe a half-refreshed directory. Invalid rows abort the whole
// refresh; a partially trusted directory is worse than a stale one.
func (s *Store) ReplaceMembers(ctx context.Context, members []*record.Member) error {
	for _, m := range members {
		m.SetDefaults()
		if err := m.Validate(); err != nil {
			return fmt.Errorf("invalid member: %w", err)
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin member refresh", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM members`); err != nil {
		return storageErr("clear members", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO members (
			id, full_name, email, phone, role, approved,
			server_updated_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return storageErr("prepare member insert", err)
	}
	defer stmt.Close()

	for _, m := range members {
		_, err := stmt.ExecContext(ctx,
			m.ID, m.FullName, m.Email, m.Phone, string(m.Role), boolToInt(m.Approved),
			timeToNullString(m.ServerUpdatedAt), formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
		)
		if err != nil {
			return storageErr("insert member", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit member refresh", err)
	}
	return nil
}

// GetMember retrieves a single member by id.
func (s *Store) GetMember(ctx context.Context, id string) (*record.Member, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, full_name, email, phone, role, approved,
		       server_updated_at, created_at, updated_at
		FROM members WHERE id = ?
	`, id)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member %s: %w", id, ErrNotFound)
		}
		return nil, storageErr("get member", err)
	}
	return m, nil
}

// MemberFilter configures ListMembers.
type MemberFilter struct {
	// Role keeps only members with this role ("" = all).
	Role record.Role
	// ApprovedOnly drops members still in the join-approval workflow.
	ApprovedOnly bool
	// Limit restricts the number of results (0 = no limit).
	Limit int
	// Offset skips the first N results (for pagination).
	Offset int
}

// ListMembers retrieves directory rows sorted by name.
func (s *Store) ListMembers(ctx context.Context, filter MemberFilter) ([]*record.Member, error) {
	query := `
		SELECT id, full_name, email, phone, role, approved,
		       server_updated_at, created_at, updated_at
		FROM members
	`
	var conds []string
	var args []any
	if filter.Role != "" {
		conds = append(conds, "role = ?")
		args = append(args, string(filter.Role))
	}
	if filter.ApprovedOnly {
		conds = append(conds, "approved = 1")
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY full_name ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list members", err)
	}
	defer rows.Close()

	var members []*record.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, storageErr("scan member", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate members", err)
	}
	return members, nil
}

// MemberCacheAge reports how long ago the directory cache was refreshed,
// based on the newest ServerUpdatedAt. Returns false when the cache is
// empty or was never fetched from the server.
func (s *Store) MemberCacheAge(ctx context.Context) (time.Duration, bool, error) {
	var newest sql.NullString
	err := s.conn.QueryRowContext(ctx,
		`SELECT MAX(server_updated_at) FROM members`,
	).Scan(&newest)
	if err != nil {
		return 0, false, storageErr("read member cache age", err)
	}
	t := nullStringToTime(newest)
	if t == nil {
		return 0, false, nil
	}
	return time.Since(*t), true, nil
}

func scanMember(row scannable) (*record.Member, error) {
	var m record.Member
	var role, createdAt, updatedAt string
	var approved int
	var serverUpdatedAt sql.NullString

	err := row.Scan(
		&m.ID, &m.FullName, &m.Email, &m.Phone, &role, &approved,
		&serverUpdatedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Role = record.Role(role)
	m.Approved = approved != 0
	m.ServerUpdatedAt = nullStringToTime(serverUpdatedAt)
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
