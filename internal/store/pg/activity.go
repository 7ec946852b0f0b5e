package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"medicore.org/internal/audit"
	"medicore.org/internal/ids"
)

var _ audit.Recorder = (*Store)(nil)

const activityColumns = `
	id, coalesce(user_id,''), activity_type, coalesce(details,''),
	coalesce(table_name,''), coalesce(record_id,''),
	coalesce(ip_address,''), coalesce(user_agent,''), created_at`

func (s *Store) Record(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	entry.ActorID = strings.TrimSpace(entry.ActorID)
	entry.ActivityType = strings.TrimSpace(entry.ActivityType)
	if entry.ActivityType == "" {
		return audit.Entry{}, errors.Join(audit.ErrInvalidInput, errors.New("activity type is required"))
	}

	entry.ID = ids.New()
	err := s.db.QueryRowContext(ctx, `
		insert into user_activity (id, user_id, activity_type, details,
			table_name, record_id, ip_address, user_agent)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
		returning created_at
	`, entry.ID, nullIfEmpty(entry.ActorID), entry.ActivityType,
		nullIfEmpty(entry.Details), nullIfEmpty(entry.TableName),
		nullIfEmpty(entry.RecordID), nullIfEmpty(entry.IPAddress),
		nullIfEmpty(entry.UserAgent)).Scan(&entry.CreatedAt)
	if err != nil {
		return audit.Entry{}, err
	}
	return entry, nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+activityColumns+`
		from user_activity
		order by created_at desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *Store) ByActor(ctx context.Context, actorID string, limit int) ([]audit.Entry, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, errors.Join(audit.ErrInvalidInput, errors.New("actor id is required"))
	}
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+activityColumns+`
		from user_activity
		where user_id = $1
		order by created_at desc
		limit $2
	`, actorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// Cleanup deletes entries older than the retention window and reports the
// number removed.
func (s *Store) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, errors.Join(audit.ErrInvalidInput, errors.New("retention days must be positive"))
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`delete from user_activity where created_at < now() - interval '%d days'`, retentionDays))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func collectEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var result []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActivityType, &e.Details,
			&e.TableName, &e.RecordID, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
