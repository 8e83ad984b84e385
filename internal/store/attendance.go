package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flockhq/flock/internal/record"
)

// InsertAttendance adds an attendance record with pending status.
func (s *Store) InsertAttendance(ctx context.Context, a *record.Attendance) error {
	a.SetDefaults()
	a.SyncStatus = record.StatusPending
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid attendance record: %w", err)
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO attendance (
			id, member_id, service_id, service_date, status,
			recorded_by, sync_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.MemberID, a.ServiceID, formatTime(a.ServiceDate),
		string(a.Status), a.RecordedBy, a.SyncStatus.String(),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	return storageErr("insert attendance", err)
}

// SetAttendanceStatus changes a mark (present/absent/excused) and returns
// the record to pending for re-upload.
func (s *Store) SetAttendanceStatus(ctx context.Context, id string, status record.AttendanceStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid attendance status %q", status)
	}
	res, err := s.conn.ExecContext(ctx, `
		UPDATE attendance SET status = ?, sync_status = ?, updated_at = ? WHERE id = ?
	`, string(status), record.StatusPending.String(), formatTime(time.Now()), id)
	if err != nil {
		return storageErr("update attendance", err)
	}
	return requireRow(res, "attendance record", id)
}

// MarkAttendanceSynced flips an attendance record to synced. Only the
// syncer calls this.
func (s *Store) MarkAttendanceSynced(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE attendance SET sync_status = ? WHERE id = ?
	`, record.StatusSynced.String(), id)
	if err != nil {
		return storageErr("mark attendance synced", err)
	}
	return requireRow(res, "attendance record", id)
}

// GetAttendance retrieves a single attendance record by id.
func (s *Store) GetAttendance(ctx context.Context, id string) (*record.Attendance, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, member_id, service_id, service_date, status,
		       recorded_by, sync_status, created_at, updated_at
		FROM attendance WHERE id = ?
	`, id)
	a, err := scanAttendance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("attendance record %s: %w", id, ErrNotFound)
		}
		return nil, storageErr("get attendance", err)
	}
	return a, nil
}

// ListPendingAttendance returns all attendance records awaiting upload,
// oldest first.
func (s *Store) ListPendingAttendance(ctx context.Context) ([]*record.Attendance, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, member_id, service_id, service_date, status,
		       recorded_by, sync_status, created_at, updated_at
		FROM attendance WHERE sync_status = ? ORDER BY created_at ASC
	`, record.StatusPending.String())
	if err != nil {
		return nil, storageErr("list pending attendance", err)
	}
	defer rows.Close()

	var records []*record.Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, storageErr("scan attendance", err)
		}
		records = append(records, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate attendance", err)
	}
	return records, nil
}

// ListAttendanceForService returns every mark for one service.
func (s *Store) ListAttendanceForService(ctx context.Context, serviceID string) ([]*record.Attendance, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, member_id, service_id, service_date, status,
		       recorded_by, sync_status, created_at, updated_at
		FROM attendance WHERE service_id = ? ORDER BY member_id ASC
	`, serviceID)
	if err != nil {
		return nil, storageErr("list attendance for service", err)
	}
	defer rows.Close()

	var records []*record.Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, storageErr("scan attendance", err)
		}
		records = append(records, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate attendance", err)
	}
	return records, nil
}

func scanAttendance(row scannable) (*record.Attendance, error) {
	var a record.Attendance
	var serviceDate, status, syncStatus, createdAt, updatedAt string

	err := row.Scan(
		&a.ID, &a.MemberID, &a.ServiceID, &serviceDate, &status,
		&a.RecordedBy, &syncStatus, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ServiceDate = parseTime(serviceDate)
	a.Status = record.AttendanceStatus(status)
	a.SyncStatus = record.SyncStatus(syncStatus)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}
