package registration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DexterJames00/EduTrack360/core/channel"
	"github.com/DexterJames00/EduTrack360/core/school"
	logsvc "github.com/DexterJames00/EduTrack360/services/logger"
	inmemdb "github.com/DexterJames00/EduTrack360/storage/database/inmem"
	"github.com/DexterJames00/EduTrack360/tests"
)

type fixture struct {
	svc      *Service
	bot      *testutil.Bot
	channels *channel.Service
	sch      school.School
	ana      school.Student
	ben      school.Student
}

func setup(t *testing.T) fixture {
	db := inmemdb.Open()
	schoolRepo := inmemdb.NewSchoolRepository(db)
	channels := channel.NewService(inmemdb.NewChannelRepository(db), testclock.NewClock(time.Now()))
	bot := testutil.NewBot()

	f := fixture{
		svc:      NewService("EduTrack360", school.NewService(schoolRepo), channels, bot, logsvc.NewNopLogger()),
		bot:      bot,
		channels: channels,
		sch:      testutil.CreateSchool(t, schoolRepo, "GREENFIELD", "Greenfield <High>"),
	}
	f.ana = testutil.CreateStudent(t, schoolRepo, f.sch, "A1B2", "Ana", "Santos")
	f.ben = testutil.CreateStudent(t, schoolRepo, f.sch, "C3D4", "Ben", "Lim")
	return f
}

func TestService_HandleMessage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		msg       Message
		want      Outcome
		wantReply string
	}{
		{name: "help", msg: Message{ChatID: "100", Text: "/start"}, want: Help, wantReply: "Welcome to the EduTrack360 attendance bot"},
		{name: "small talk", msg: Message{ChatID: "100", Text: "hi"}, want: Help, wantReply: "Register manually"},
		{name: "unknown school", msg: Message{ChatID: "100", Text: "NOWHERE A1B2"}, want: NotFound, wantReply: "No matching school was found"},
		{name: "unknown student", msg: Message{ChatID: "100", Text: "GREENFIELD ZZZZ"}, want: NotFound, wantReply: "at Greenfield &lt;High&gt;"},
		{name: "too many codes", msg: Message{ChatID: "100", Text: "GREENFIELD A1B2 C3D4"}, want: Malformed, wantReply: "Invalid format"},
		{name: "broken deep link", msg: Message{ChatID: "100", Text: "/start GREENFIELD"}, want: InvalidLink, wantReply: "Invalid invitation link"},
		{name: "text registration", msg: Message{ChatID: "100", Text: "a1b2 greenfield"}, want: Linked, wantReply: "Successfully linked"},
		{name: "redelivered update", msg: Message{ChatID: "100", Text: "a1b2 greenfield"}, want: AlreadyLinked, wantReply: "already registered for Ana Santos"},
		{name: "student linked elsewhere", msg: Message{ChatID: "200", Text: "/start GREENFIELD_A1B2"}, want: ConflictOtherChannel, wantReply: "already linked to another Telegram account"},
		{name: "chat linked to another student", msg: Message{ChatID: "100", Text: "/start GREENFIELD_C3D4"}, want: ChannelTaken, wantReply: "already linked to another student"},
		{name: "deep link registration", msg: Message{ChatID: "200", Text: "/start greenfield_c3d4"}, want: Linked, wantReply: "Ben Lim"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(f.bot.Sent())
			got := f.svc.HandleMessage(ctx, tt.msg)
			assert.Equal(t, tt.want, got, got.String())

			sent := f.bot.Sent()
			require.Len(t, sent, before+1, "exactly one reply per message")
			assert.Equal(t, tt.msg.ChatID, sent[before].ChannelID)
			assert.Contains(t, sent[before].Text, tt.wantReply)
		})
	}

	ch, ok, err := f.channels.LookupChannel(ctx, f.ana.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "100", ch)
}

func TestService_HandleMessage_noChat(t *testing.T) {
	f := setup(t)

	assert.Equal(t, Ignored, f.svc.HandleMessage(context.Background(), Message{Text: "GREENFIELD A1B2"}))
	assert.Empty(t, f.bot.Sent())
}

func TestService_HandleMessage_undeliverableReply(t *testing.T) {
	f := setup(t)
	f.bot.Failures["100"] = "blocked"

	// the link stands even when the confirmation cannot be delivered
	assert.Equal(t, Linked, f.svc.HandleMessage(context.Background(), Message{ChatID: "100", Text: "GREENFIELD A1B2"}))
	_, ok, err := f.channels.LookupChannel(context.Background(), f.ana.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

type failingDirectory struct{}

func (failingDirectory) Link(context.Context, string, string) (channel.LinkResult, error) {
	return 0, errors.New("connection reset")
}

func TestService_HandleMessage_storageFailure(t *testing.T) {
	f := setup(t)
	f.svc.directory = failingDirectory{}

	assert.Equal(t, Failed, f.svc.HandleMessage(context.Background(), Message{ChatID: "100", Text: "GREENFIELD A1B2"}))
	sent := f.bot.Sent()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0].Text, "❌ Registration failed"))
}

func TestInviteLink(t *testing.T) {
	sch := school.School{Code: "greenfield"}
	std := school.Student{Code: "a1b2"}
	assert.Equal(t, "https://t.me/edutrack_bot?start=GREENFIELD_A1B2", InviteLink("@edutrack_bot", sch, std))
}
