package inmemdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/DexterJames00/EduTrack360/core/notify"
)

type outboxRepository struct {
	db *outboxTable
}

var _ notify.Repository = (*outboxRepository)(nil)

func NewOutboxRepository(db *DB) *outboxRepository {
	return &outboxRepository{db: db.outbox}
}

func (repo *outboxRepository) ClaimRecord(_ context.Context, rec notify.Record) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := outboxKey{rec.StudentID, rec.EventKey}
	if _, ok := repo.db.table[key]; ok {
		return false, nil
	}
	repo.db.table[key] = rec
	return true, nil
}

func (repo *outboxRepository) ResolveRecord(_ context.Context, rec notify.Record) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := outboxKey{rec.StudentID, rec.EventKey}
	if _, ok := repo.db.table[key]; !ok {
		return errors.Errorf("no outbox record for student %s and event %s", rec.StudentID, rec.EventKey)
	}
	repo.db.table[key] = rec
	return nil
}

func (repo *outboxRepository) QueryRecords(_ context.Context, eventKey string) ([]notify.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]notify.Record, 0)
	for key, rec := range repo.db.table {
		if key.eventKey == eventKey {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StudentID < records[j].StudentID })
	return records, nil
}
