package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mgrist/acm-roster/internal/domain/model"
	"github.com/mgrist/acm-roster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RefreshJournal = (*JournalRepo)(nil)

// timeLayout is fixed-width so started_at sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// JournalRepo is the SQLite implementation of the RefreshJournal port interface.
type JournalRepo struct {
	db *DB
}

// NewJournalRepo creates a new JournalRepo backed by the given DB.
func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// Record appends a refresh record. A record without an ID gets a new UUID and
// one without a start time is stamped with the current time.
func (r *JournalRepo) Record(ctx context.Context, rec model.RefreshRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	const query = `INSERT INTO refresh_journal
		(id, trigger_kind, started_at, duration_ns, member_count, subscriber_count, current_count, expired_count, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		rec.ID,
		string(rec.Trigger),
		rec.StartedAt.UTC().Format(timeLayout),
		int64(rec.Duration),
		rec.Members,
		rec.Subscribers,
		rec.Current,
		rec.Expired,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("record refresh %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns up to limit records, newest first. Records with equal
// start times come back in reverse insertion order.
// A non-positive limit returns an empty slice.
func (r *JournalRepo) ListRecent(ctx context.Context, limit int) ([]model.RefreshRecord, error) {
	records := []model.RefreshRecord{}
	if limit <= 0 {
		return records, nil
	}

	const query = `SELECT id, trigger_kind, started_at, duration_ns, member_count, subscriber_count, current_count, expired_count, error_message
		FROM refresh_journal ORDER BY started_at DESC, rowid DESC LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list refreshes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec       model.RefreshRecord
			trigger   string
			startedAt string
			duration  int64
		)
		if err := rows.Scan(&rec.ID, &trigger, &startedAt, &duration,
			&rec.Members, &rec.Subscribers, &rec.Current, &rec.Expired, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan refresh: %w", err)
		}

		rec.Trigger = model.RefreshTrigger(trigger)
		rec.Duration = time.Duration(duration)
		rec.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at for refresh %s: %w", rec.ID, err)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refreshes: %w", err)
	}

	return records, nil
}
