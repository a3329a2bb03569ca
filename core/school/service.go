package school

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/DexterJames00/EduTrack360/core"
)

var (
	// errors
	ErrNotFound        = errors.New("not found")
	ErrMalformedCodes  = errors.New("expected exactly a school code and a student code")
	ErrAmbiguousCodes  = errors.New("codes match more than one student")
	ErrSchoolNotFound  = errors.New("school not found")
	ErrStudentNotFound = errors.New("student not found in school")
	ErrInvalidDeepLink = errors.New("invalid registration link")
	ErrCodeExists      = errors.New("code already in use")
)

// DeepLinkSeparator joins the school and student codes in a deep link payload.
const DeepLinkSeparator = "_"

type (
	Repository interface {
		CreateSchool(ctx context.Context, sch School) (School, error)
		// CreateStudent returns ErrCodeExists if the code is taken within the school.
		CreateStudent(ctx context.Context, std Student) (Student, error)
		GetSchoolByCode(ctx context.Context, code string) (School, error)
		GetSchoolByID(ctx context.Context, id string) (School, error)
		GetStudentByCode(ctx context.Context, schoolID, code string) (Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		GetStudentsByID(ctx context.Context, ids ...string) ([]Student, error)
		QueryStudentIDs(ctx context.Context, schoolID string) ([]string, error)
	}

	// Resolution is the result of resolving a pair of codes.
	// School is set whenever a school code matched, even if the student did not.
	Resolution struct {
		School  School
		Student Student
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve maps free text holding a school code and a student code, in either order, to exactly one student.
// Codes are matched case-insensitively and a student code is only ever looked up inside the matched school.
func (svc *Service) Resolve(ctx context.Context, raw string) (Resolution, error) {
	tokens := strings.Fields(raw)
	if len(tokens) != 2 {
		return Resolution{}, ErrMalformedCodes
	}
	return svc.resolvePair(ctx, core.NormalizeCode(tokens[0]), core.NormalizeCode(tokens[1]))
}

// ResolveDeepLink resolves a deep link payload of the form SCHOOL_STUDENT.
func (svc *Service) ResolveDeepLink(ctx context.Context, payload string) (Resolution, error) {
	parts := strings.Split(core.NormalizeCode(payload), DeepLinkSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Resolution{}, ErrInvalidDeepLink
	}

	res, found, err := svc.tryPair(ctx, parts[0], parts[1])
	if err != nil {
		return Resolution{}, err
	}
	switch {
	case found:
		return res, nil
	case res.School.ID != "":
		return res, ErrStudentNotFound
	default:
		return res, ErrSchoolNotFound
	}
}

func (svc *Service) resolvePair(ctx context.Context, a, b string) (Resolution, error) {
	first, firstFound, err := svc.tryPair(ctx, a, b)
	if err != nil {
		return Resolution{}, err
	}
	var second Resolution
	var secondFound bool
	if a != b {
		second, secondFound, err = svc.tryPair(ctx, b, a)
		if err != nil {
			return Resolution{}, err
		}
	}

	switch {
	case firstFound && secondFound:
		if first.Student.ID == second.Student.ID {
			return first, nil
		}
		return Resolution{}, ErrAmbiguousCodes
	case firstFound:
		return first, nil
	case secondFound:
		return second, nil
	case first.School.ID != "":
		return Resolution{School: first.School}, ErrStudentNotFound
	case second.School.ID != "":
		return Resolution{School: second.School}, ErrStudentNotFound
	default:
		return Resolution{}, ErrSchoolNotFound
	}
}

// tryPair interprets schoolCode as the school and studentCode as a student of that school.
func (svc *Service) tryPair(ctx context.Context, schoolCode, studentCode string) (Resolution, bool, error) {
	sch, err := svc.repo.GetSchoolByCode(ctx, schoolCode)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Resolution{}, false, nil
		}
		return Resolution{}, false, errors.Wrap(err, "getting school by code")
	}

	std, err := svc.repo.GetStudentByCode(ctx, sch.ID, studentCode)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Resolution{School: sch}, false, nil
		}
		return Resolution{}, false, errors.Wrap(err, "getting student by code")
	}
	return Resolution{School: sch, Student: std}, true, nil
}

func (svc *Service) GetSchoolByCode(ctx context.Context, code string) (School, error) {
	return svc.repo.GetSchoolByCode(ctx, core.NormalizeCode(code))
}

func (svc *Service) GetSchool(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchoolByID(ctx, id)
}

func (svc *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

// GetStudents returns the students found among ids; unknown ids are skipped.
func (svc *Service) GetStudents(ctx context.Context, ids ...string) ([]Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return svc.repo.GetStudentsByID(ctx, ids...)
}

// ListStudentIDs returns the ids of all the students of a school.
func (svc *Service) ListStudentIDs(ctx context.Context, schoolID string) ([]string, error) {
	return svc.repo.QueryStudentIDs(ctx, schoolID)
}
