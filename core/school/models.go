package school

import "strings"

type (
	// School is a tenant of the attendance system.
	School struct {
		ID   string `json:"id" db:"id"`
		Code string `json:"code" db:"code"`
		Name string `json:"name" db:"name"`
	}

	// Student is a recipient identity; Code is unique within its school only.
	Student struct {
		ID         string `json:"id" db:"id"`
		SchoolID   string `json:"school_id" db:"school_id"`
		Code       string `json:"code" db:"code"`
		FirstName  string `json:"first_name" db:"first_name"`
		LastName   string `json:"last_name" db:"last_name"`
		GradeLevel string `json:"grade_level" db:"grade_level"`
	}
)

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}
