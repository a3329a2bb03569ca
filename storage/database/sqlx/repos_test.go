package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DexterJames00/EduTrack360/core/notify"
	"github.com/DexterJames00/EduTrack360/core/school"
	sqlxrepos "github.com/DexterJames00/EduTrack360/storage/database/sqlx"
	"github.com/DexterJames00/EduTrack360/tests"
)

func TestSchoolRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewSchoolRepository(db)
	ctx := context.Background()

	green := testutil.CreateSchool(t, repo, "greenfield", "Greenfield High")
	river := testutil.CreateSchool(t, repo, "RIVERSIDE", "Riverside Academy")
	ana := testutil.CreateStudent(t, repo, green, "a1b2", "Ana", "Santos")
	ben := testutil.CreateStudent(t, repo, river, "A1B2", "Ben", "Lim")

	_, err := repo.CreateSchool(ctx, school.School{ID: "dup", Code: "Greenfield", Name: "Copy"})
	assert.Equal(t, school.ErrCodeExists, err)
	_, err = repo.CreateStudent(ctx, school.Student{ID: "dup", SchoolID: green.ID, Code: "A1B2"})
	assert.Equal(t, school.ErrCodeExists, err)

	got, err := repo.GetSchoolByCode(ctx, "GREENFIELD")
	require.NoError(t, err)
	assert.Equal(t, green, got)

	_, err = repo.GetSchoolByCode(ctx, "NOWHERE")
	assert.Equal(t, school.ErrNotFound, err)

	std, err := repo.GetStudentByCode(ctx, river.ID, "A1B2")
	require.NoError(t, err)
	assert.Equal(t, ben, std)

	_, err = repo.GetStudentByID(ctx, "missing")
	assert.Equal(t, school.ErrNotFound, errors.Cause(err))

	stds, err := repo.GetStudentsByID(ctx, ana.ID, "missing", ben.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []school.Student{ana, ben}, stds)

	ids, err := repo.QueryStudentIDs(ctx, green.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ana.ID}, ids)
}

func TestOutboxRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewOutboxRepository(db)
	ctx := context.Background()
	at := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

	rec := notify.Record{StudentID: "s1", EventKey: "ev", AttemptedAt: at, Outcome: notify.OutcomePending}
	claimed, err := repo.ClaimRecord(ctx, rec)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.ClaimRecord(ctx, rec)
	require.NoError(t, err)
	assert.False(t, claimed, "one record per student and event")

	claimed, err = repo.ClaimRecord(ctx, notify.Record{StudentID: "s1", EventKey: "other", AttemptedAt: at, Outcome: notify.OutcomePending})
	require.NoError(t, err)
	assert.True(t, claimed)

	rec.Outcome, rec.Reason = notify.OutcomeUndeliverable, "blocked"
	rec.AttemptedAt = at.Add(time.Second)
	require.NoError(t, repo.ResolveRecord(ctx, rec))
	assert.Error(t, repo.ResolveRecord(ctx, notify.Record{StudentID: "s2", EventKey: "ev", Outcome: notify.OutcomeDelivered}))

	records, err := repo.QueryRecords(ctx, "ev")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, notify.OutcomeUndeliverable, records[0].Outcome)
	assert.Equal(t, "blocked", records[0].Reason)
	assert.True(t, rec.AttemptedAt.Equal(records[0].AttemptedAt))

	records, err = repo.QueryRecords(ctx, "other")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "", records[0].Reason)
}
