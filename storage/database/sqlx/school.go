package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/school"
)

const studentColumns = "id, school_id, code, first_name, last_name, grade_level"

type schoolRepository struct {
	repo
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{repo{exec: exec}}
}

func (r schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	sch.Code = core.NormalizeCode(sch.Code)
	n, err := r.execAffected(ctx, "INSERT INTO schools (id, code, name) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		sch.ID, sch.Code, sch.Name)
	if err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	if n == 0 {
		return school.School{}, school.ErrCodeExists
	}
	return sch, nil
}

func (r schoolRepository) CreateStudent(ctx context.Context, std school.Student) (school.Student, error) {
	std.Code = core.NormalizeCode(std.Code)
	n, err := r.execAffected(ctx,
		"INSERT INTO students ("+studentColumns+") VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING",
		std.ID, std.SchoolID, std.Code, std.FirstName, std.LastName, std.GradeLevel)
	if err != nil {
		return school.Student{}, errors.Wrap(err, "inserting student")
	}
	if n == 0 {
		return school.Student{}, school.ErrCodeExists
	}
	return std, nil
}

func (r schoolRepository) GetSchoolByCode(ctx context.Context, code string) (school.School, error) {
	var sch school.School
	if err := r.get(ctx, &sch, "SELECT id, code, name FROM schools WHERE code = ?", core.NormalizeCode(code)); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "getting school by code")
	}
	return sch, nil
}

func (r schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	var sch school.School
	if err := r.get(ctx, &sch, "SELECT id, code, name FROM schools WHERE id = ?", id); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "getting school by id")
	}
	return sch, nil
}

func (r schoolRepository) GetStudentByCode(ctx context.Context, schoolID, code string) (school.Student, error) {
	var std school.Student
	err := r.get(ctx, &std, "SELECT "+studentColumns+" FROM students WHERE school_id = ? AND code = ?",
		schoolID, core.NormalizeCode(code))
	if err != nil {
		return school.Student{}, trapNoRowsErr(err, school.ErrNotFound, "getting student by code")
	}
	return std, nil
}

func (r schoolRepository) GetStudentByID(ctx context.Context, id string) (school.Student, error) {
	var std school.Student
	if err := r.get(ctx, &std, "SELECT "+studentColumns+" FROM students WHERE id = ?", id); err != nil {
		return school.Student{}, trapNoRowsErr(err, school.ErrNotFound, "getting student by id")
	}
	return std, nil
}

func (r schoolRepository) GetStudentsByID(ctx context.Context, ids ...string) ([]school.Student, error) {
	students := make([]school.Student, 0, len(ids))
	if len(ids) == 0 {
		return students, nil
	}
	query, args, err := r.in("SELECT "+studentColumns+" FROM students WHERE id IN (?)", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building students query")
	}
	if err = r.exec.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	return students, nil
}

func (r schoolRepository) QueryStudentIDs(ctx context.Context, schoolID string) ([]string, error) {
	ids := make([]string, 0)
	if err := r.exec.SelectContext(ctx, &ids, r.q("SELECT id FROM students WHERE school_id = ? ORDER BY code"), schoolID); err != nil {
		return nil, errors.Wrap(err, "selecting student ids")
	}
	return ids, nil
}
