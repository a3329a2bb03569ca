package core

// AttendanceStatuses maps the statuses reported by the attendance system to their marker.
var AttendanceStatuses = map[string]string{
	"present": "✅",
	"absent":  "❌",
	"late":    "🕐",
	"excused": "📝",
}
