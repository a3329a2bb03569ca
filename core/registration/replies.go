package registration

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/DexterJames00/EduTrack360/core/school"
)

// Replies are sent with the HTML parse mode; every value coming from users or the database is escaped.

func helpReply(appName string) string {
	return fmt.Sprintf("👋 <b>Welcome to the %s attendance bot!</b>\n\n"+
		"To receive attendance notifications, you can:\n\n"+
		"1️⃣ <b>Use your invitation link</b>\n"+
		"   Open the link provided by your school\n\n"+
		"2️⃣ <b>Register manually</b>\n"+
		"   Send your school code and student code\n"+
		"   Example: <code>GREENFIELD ABC123</code>\n\n"+
		"📝 Contact your school administrator for your codes or an invitation link.",
		html.EscapeString(appName))
}

func linkedReply(res school.Resolution) string {
	return fmt.Sprintf("✅ <b>Successfully linked!</b>\n\n"+
		"👤 <b>Student:</b> %s\n"+
		"🏫 <b>School:</b> %s\n"+
		"📚 <b>Grade:</b> %s\n\n"+
		"You will now receive attendance notifications from %s.",
		html.EscapeString(res.Student.FullName()),
		html.EscapeString(res.School.Name),
		html.EscapeString(res.Student.GradeLevel),
		html.EscapeString(res.School.Name))
}

func alreadyLinkedReply(res school.Resolution) string {
	return fmt.Sprintf("ℹ️ This chat is already registered for %s (%s).\n"+
		"You will keep receiving attendance notifications.",
		html.EscapeString(res.Student.FullName()),
		html.EscapeString(res.School.Name))
}

func conflictOtherChannelReply(res school.Resolution) string {
	return fmt.Sprintf("⚠️ This student code is already linked to another Telegram account.\n"+
		"Student: %s\n\n"+
		"If this is your account, please contact your school administrator.",
		html.EscapeString(res.Student.FullName()))
}

func channelTakenReply() string {
	return "⚠️ This Telegram account is already linked to another student.\n\n" +
		"Please contact your school administrator."
}

func notFoundReply(res school.Resolution) string {
	if res.School.ID != "" {
		return fmt.Sprintf("❌ No student with this code was found at %s.\n"+
			"Please check your student code and try again.",
			html.EscapeString(res.School.Name))
	}
	return "❌ No matching school was found. Please check:\n" +
		"• Your school code is correct\n" +
		"• Your student code is correct\n\n" +
		"Format: <code>SCHOOL_CODE STUDENT_CODE</code>"
}

func malformedReply() string {
	return "❌ Invalid format. Please send exactly your school code and your student code.\n" +
		"Example: <code>GREENFIELD ABC123</code>"
}

func ambiguousReply() string {
	return "⚠️ These codes match more than one student.\n" +
		"Please contact your school administrator for an invitation link."
}

func invalidLinkReply() string {
	return "❌ Invalid invitation link. Please use the complete link provided by your school."
}

func failedReply() string {
	return "❌ Registration failed, please try again later."
}

// InviteLink builds the deep link that registers the opening chat for the student.
func InviteLink(botHandle string, sch school.School, std school.Student) string {
	payload := strings.ToUpper(sch.Code) + school.DeepLinkSeparator + strings.ToUpper(std.Code)
	return "https://t.me/" + url.PathEscape(strings.TrimPrefix(botHandle, "@")) + "?start=" + url.QueryEscape(payload)
}
