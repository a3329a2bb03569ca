package inmemdb

import (
	"context"
	"sort"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/school"
)

type schoolRepository struct {
	db *schoolTable
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db.school}
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sch.Code = core.NormalizeCode(sch.Code)
	for _, s := range repo.db.schools {
		if s.Code == sch.Code {
			return school.School{}, school.ErrCodeExists
		}
	}
	repo.db.schools[sch.ID] = sch
	return sch, nil
}

func (repo *schoolRepository) CreateStudent(_ context.Context, std school.Student) (school.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	std.Code = core.NormalizeCode(std.Code)
	for _, s := range repo.db.students {
		if s.SchoolID == std.SchoolID && s.Code == std.Code {
			return school.Student{}, school.ErrCodeExists
		}
	}
	repo.db.students[std.ID] = std
	return std, nil
}

func (repo *schoolRepository) GetSchoolByCode(_ context.Context, code string) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	code = core.NormalizeCode(code)
	for _, s := range repo.db.schools {
		if s.Code == code {
			return s, nil
		}
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) GetSchoolByID(_ context.Context, id string) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.schools[id]; ok {
		return s, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) GetStudentByCode(_ context.Context, schoolID, code string) (school.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	code = core.NormalizeCode(code)
	for _, s := range repo.db.students {
		if s.SchoolID == schoolID && s.Code == code {
			return s, nil
		}
	}
	return school.Student{}, school.ErrNotFound
}

func (repo *schoolRepository) GetStudentByID(_ context.Context, id string) (school.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return s, nil
	}
	return school.Student{}, school.ErrNotFound
}

func (repo *schoolRepository) GetStudentsByID(_ context.Context, ids ...string) ([]school.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]school.Student, 0, len(ids))
	for _, id := range ids {
		if s, ok := repo.db.students[id]; ok {
			students = append(students, s)
		}
	}
	return students, nil
}

func (repo *schoolRepository) QueryStudentIDs(_ context.Context, schoolID string) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]school.Student, 0)
	for _, s := range repo.db.students {
		if s.SchoolID == schoolID {
			students = append(students, s)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Code < students[j].Code })

	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	return ids, nil
}
