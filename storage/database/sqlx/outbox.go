package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/notify"
)

type outboxRow struct {
	StudentID   string      `db:"student_id"`
	EventKey    string      `db:"event_key"`
	AttemptedAt time.Time   `db:"attempted_at"`
	Outcome     string      `db:"outcome"`
	Reason      null.String `db:"reason"`
}

func (row outboxRow) record() notify.Record {
	return notify.Record{
		StudentID:   row.StudentID,
		EventKey:    row.EventKey,
		AttemptedAt: row.AttemptedAt,
		Outcome:     notify.Outcome(row.Outcome),
		Reason:      row.Reason.String,
	}
}

type outboxRepository struct {
	repo
}

var _ notify.Repository = (*outboxRepository)(nil) // interface compliance check

func NewOutboxRepository(exec core.DBExecutor) *outboxRepository {
	return &outboxRepository{repo{exec: exec}}
}

// ClaimRecord relies on the (student_id, event_key) primary key: a rejected insert means already attempted.
func (r outboxRepository) ClaimRecord(ctx context.Context, rec notify.Record) (bool, error) {
	n, err := r.execAffected(ctx, `
		INSERT INTO outbox (student_id, event_key, attempted_at, outcome, reason) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		rec.StudentID, rec.EventKey, rec.AttemptedAt.UTC(), string(rec.Outcome), null.NewString(rec.Reason, rec.Reason != ""))
	if err != nil {
		return false, errors.Wrap(err, "inserting outbox record")
	}
	return n == 1, nil
}

func (r outboxRepository) ResolveRecord(ctx context.Context, rec notify.Record) error {
	n, err := r.execAffected(ctx,
		"UPDATE outbox SET outcome = ?, reason = ?, attempted_at = ? WHERE student_id = ? AND event_key = ?",
		string(rec.Outcome), null.NewString(rec.Reason, rec.Reason != ""), rec.AttemptedAt.UTC(), rec.StudentID, rec.EventKey)
	if err != nil {
		return errors.Wrap(err, "updating outbox record")
	}
	if n == 0 {
		return errors.Errorf("no outbox record for student %s and event %s", rec.StudentID, rec.EventKey)
	}
	return nil
}

func (r outboxRepository) QueryRecords(ctx context.Context, eventKey string) ([]notify.Record, error) {
	rows := make([]outboxRow, 0)
	err := r.exec.SelectContext(ctx, &rows, r.q(`
		SELECT student_id, event_key, attempted_at, outcome, reason FROM outbox
		WHERE event_key = ? ORDER BY attempted_at, student_id`), eventKey)
	if err != nil {
		return nil, errors.Wrap(err, "selecting outbox records")
	}
	records := make([]notify.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}
