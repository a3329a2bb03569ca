package notify

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/pkg/errors"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/school"
)

var attendanceTmpl = template.Must(template.New("attendance").Option("missingkey=error").Parse(
	`📚 <b>Attendance Notification</b>

👤 <b>Name:</b> {{.Name}}
📖 <b>Subject:</b> {{.Subject}}
📅 <b>Date:</b> {{.Date}}
🕐 <b>Time:</b> {{.StartTime}} - {{.EndTime}}
{{.Marker}} <b>Status:</b> {{.Status}}

---
This is an automated message from your school attendance system.`))

// AttendanceEvent is one recorded attendance session.
type AttendanceEvent struct {
	SubjectID   string
	SubjectName string
	Date        string // YYYY-MM-DD
	StartTime   string
	EndTime     string
	Statuses    map[string]string // {studentID: status}
}

// AttendanceEventKey identifies an attendance session; recipients are notified once per key.
func AttendanceEventKey(subjectID, date string) string {
	return "attendance:" + subjectID + ":" + date
}

func (ev AttendanceEvent) Key() string {
	return AttendanceEventKey(ev.SubjectID, ev.Date)
}

func (ev AttendanceEvent) StudentIDs() []string {
	ids := make([]string, 0, len(ev.Statuses))
	for id := range ev.Statuses {
		ids = append(ids, id)
	}
	return ids
}

// Renderer renders the attendance notification of a student.
func (ev AttendanceEvent) Renderer() Render {
	return func(std school.Student) (string, error) {
		status, ok := ev.Statuses[std.ID]
		if !ok {
			return "", errors.Errorf("no attendance status for student %s", std.ID)
		}
		status = core.CleanString(status, true)
		marker, ok := core.AttendanceStatuses[status]
		if !ok {
			marker = "📝"
		}

		var buf bytes.Buffer
		err := attendanceTmpl.Execute(&buf, map[string]string{
			"Name":      std.FullName(),
			"Subject":   ev.SubjectName,
			"Date":      ev.Date,
			"StartTime": ev.StartTime,
			"EndTime":   ev.EndTime,
			"Marker":    marker,
			"Status":    capitalize(status),
		})
		if err != nil {
			return "", errors.Wrap(err, "executing attendance template")
		}
		return buf.String(), nil
	}
}

// AnnouncementRenderer renders a school-wide announcement addressed to each student.
func AnnouncementRenderer(sch school.School, message string) Render {
	return func(std school.Student) (string, error) {
		var buf bytes.Buffer
		err := announcementTmpl.Execute(&buf, map[string]string{
			"FirstName": std.FirstName,
			"Message":   message,
			"School":    sch.Name,
		})
		if err != nil {
			return "", errors.Wrap(err, "executing announcement template")
		}
		return buf.String(), nil
	}
}

var announcementTmpl = template.Must(template.New("announcement").Option("missingkey=error").Parse(
	`📢 <b>SCHOOL ANNOUNCEMENT</b>

👤 <b>Dear {{.FirstName}},</b>

{{.Message}}

<i>From: {{.School}}</i>`))

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// AnnouncementEventKey identifies a school announcement.
func AnnouncementEventKey(schoolID, announcementID string) string {
	return "announcement:" + schoolID + ":" + announcementID
}
