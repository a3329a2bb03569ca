package school

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/DexterJames00/EduTrack360/core"
)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength      = 8
	maxCodeAttempts = 10
)

var errNoFreeCode = errors.New("could not generate a free student code")

// GenerateCode returns a random code of CodeLength characters in A-Z0-9.
func GenerateCode() (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "generating code")
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

type NewSchool struct {
	Code string
	Name string
}

type NewStudent struct {
	SchoolCode string
	FirstName  string
	LastName   string
	GradeLevel string
}

func (svc *Service) CreateSchool(ctx context.Context, ns NewSchool) (School, error) {
	code := core.NormalizeCode(ns.Code)
	if code == "" || strings.ContainsAny(code, " \t"+DeepLinkSeparator) {
		return School{}, core.NewFieldError("code", "must be a single word without underscores")
	}
	return svc.repo.CreateSchool(ctx, School{ID: uuid.NewString(), Code: code, Name: core.CleanString(ns.Name)})
}

// CreateStudent adds a student to a school under a freshly generated code.
func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	sch, err := svc.GetSchoolByCode(ctx, ns.SchoolCode)
	if err != nil {
		return Student{}, err
	}
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return Student{}, err
		}
		std, err := svc.repo.CreateStudent(ctx, Student{
			ID:         uuid.NewString(),
			SchoolID:   sch.ID,
			Code:       code,
			FirstName:  core.CleanString(ns.FirstName),
			LastName:   core.CleanString(ns.LastName),
			GradeLevel: core.CleanString(ns.GradeLevel),
		})
		if errors.Cause(err) == ErrCodeExists {
			continue
		}
		return std, err
	}
	return Student{}, errNoFreeCode
}
