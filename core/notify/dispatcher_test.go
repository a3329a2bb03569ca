package notify_test

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/juju/clock/testclock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/channel"
	"github.com/DexterJames00/EduTrack360/core/notify"
	"github.com/DexterJames00/EduTrack360/core/school"
	emailsvc "github.com/DexterJames00/EduTrack360/services/email"
	logsvc "github.com/DexterJames00/EduTrack360/services/logger"
	inmemdb "github.com/DexterJames00/EduTrack360/storage/database/inmem"
	sqlxrepos "github.com/DexterJames00/EduTrack360/storage/database/sqlx"
	"github.com/DexterJames00/EduTrack360/tests"
)

type fixture struct {
	db       *inmemdb.DB
	bot      *testutil.Bot
	channels *channel.Service
	schools  *school.Service
	sch      school.School
	students []school.Student
}

func setup(t *testing.T, nStudents int) fixture {
	db := inmemdb.Open()
	schoolRepo := inmemdb.NewSchoolRepository(db)
	f := fixture{
		db:       db,
		bot:      testutil.NewBot(),
		channels: channel.NewService(inmemdb.NewChannelRepository(db), testclock.NewClock(time.Now())),
		schools:  school.NewService(schoolRepo),
		sch:      testutil.CreateSchool(t, schoolRepo, "GREENFIELD", "Greenfield High"),
	}
	for i := 0; i < nStudents; i++ {
		f.students = append(f.students, testutil.CreateStudent(t, schoolRepo, f.sch, fmt.Sprintf("S%03d", i), "Student", fmt.Sprint(i)))
	}
	return f
}

func (f fixture) link(t *testing.T, std school.Student, chatID string) {
	_, err := f.channels.Link(context.Background(), std.ID, chatID)
	require.NoError(t, err)
}

func (f fixture) dispatcher(repo notify.Repository, opts ...notify.Option) *notify.Dispatcher {
	if repo == nil {
		repo = inmemdb.NewOutboxRepository(f.db)
	}
	clk := testclock.NewClock(time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC))
	return notify.NewDispatcher(repo, f.schools, f.channels, f.bot, clk, logsvc.NewNopLogger(), opts...)
}

func staticRender(text string) notify.Render {
	return func(school.Student) (string, error) { return text, nil }
}

func outcomes(report notify.Report) map[string]notify.Outcome {
	out := make(map[string]notify.Outcome, len(report.Results))
	for _, res := range report.Results {
		out[res.StudentID] = res.Outcome
	}
	return out
}

func TestDispatcher_Dispatch(t *testing.T) {
	f := setup(t, 3)
	a, b, c := f.students[0], f.students[1], f.students[2]
	f.link(t, a, "100")
	f.link(t, b, "200")
	f.bot.Failures["200"] = core.ReasonBlocked
	d := f.dispatcher(nil)
	ctx := context.Background()

	report, err := d.Dispatch(ctx, "event-1", []string{a.ID, b.ID, c.ID}, staticRender("hello"))
	require.NoError(t, err)
	assert.Equal(t, map[string]notify.Outcome{
		a.ID: notify.OutcomeDelivered,
		b.ID: notify.OutcomeUndeliverable,
		c.ID: notify.OutcomeNoChannel,
	}, outcomes(report))
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 1, report.Undeliverable)
	assert.Equal(t, []string{c.ID}, report.WithoutChannel)
	assert.Equal(t, "1 notified, 1 without a linked channel, 1 undeliverable", report.Summary())
	assert.Equal(t, []string{"hello"}, f.bot.SentTo("100"))

	records, err := d.Records(ctx, "event-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		if rec.StudentID == b.ID {
			assert.Equal(t, core.ReasonBlocked, rec.Reason)
		}
		assert.NotEqual(t, notify.OutcomePending, rec.Outcome)
	}

	// a second dispatch of the same event sends nothing
	sent := len(f.bot.Sent())
	report, err = d.Dispatch(ctx, "event-1", []string{a.ID, b.ID, c.ID}, staticRender("hello"))
	require.NoError(t, err)
	assert.Equal(t, 3, report.AlreadyAttempted)
	assert.Len(t, f.bot.Sent(), sent)

	// a different event is independent
	report, err = d.Dispatch(ctx, "event-2", []string{a.ID}, staticRender("bye"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Delivered)
}

func TestDispatcher_Dispatch_recipients(t *testing.T) {
	f := setup(t, 2)
	a, b := f.students[0], f.students[1]
	f.link(t, a, "100")
	d := f.dispatcher(nil)

	report, err := d.Dispatch(context.Background(), "event", []string{a.ID, a.ID, " ", "ghost", b.ID, a.ID}, staticRender("hi"))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total())
	assert.Equal(t, 1, report.UnknownRecipient)
	assert.Equal(t, notify.OutcomeUnknownRecipient, outcomes(report)["ghost"])
	assert.Equal(t, []string{"hi"}, f.bot.SentTo("100"), "duplicates are notified once")

	report, err = d.Dispatch(context.Background(), "empty", nil, staticRender("hi"))
	require.NoError(t, err)
	assert.Zero(t, report.Total())
}

func TestDispatcher_Dispatch_manyRecipients(t *testing.T) {
	f := setup(t, 50)
	ids := make([]string, 0, len(f.students))
	for i, std := range f.students {
		if i%5 != 0 {
			f.link(t, std, fmt.Sprintf("chat-%d", i))
		}
		ids = append(ids, std.ID)
	}
	d := f.dispatcher(nil, notify.WithWorkers(4))

	report, err := d.Dispatch(context.Background(), "bulk", ids, staticRender("hi"))
	require.NoError(t, err)
	assert.Equal(t, 40, report.Delivered)
	assert.Equal(t, 10, report.NoChannel)
	assert.Len(t, f.bot.Sent(), 40)
}

func TestDispatcher_Dispatch_truncates(t *testing.T) {
	f := setup(t, 1)
	f.link(t, f.students[0], "100")
	d := f.dispatcher(nil)

	long := strings.Repeat("é", notify.MaxMessageLength+10)
	_, err := d.Dispatch(context.Background(), "long", []string{f.students[0].ID}, staticRender(long))
	require.NoError(t, err)

	sent := f.bot.SentTo("100")
	require.Len(t, sent, 1)
	assert.Equal(t, notify.MaxMessageLength, utf8.RuneCountInString(sent[0]))
	assert.True(t, strings.HasSuffix(sent[0], notify.TruncationMarker))
}

func TestDispatcher_Dispatch_renderFailure(t *testing.T) {
	f := setup(t, 1)
	f.link(t, f.students[0], "100")
	d := f.dispatcher(nil)

	render := func(school.Student) (string, error) { return "", errors.New("boom") }
	report, err := d.Dispatch(context.Background(), "render", []string{f.students[0].ID}, render)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, notify.OutcomeUndeliverable, report.Results[0].Outcome)
	assert.Equal(t, notify.ReasonRenderFailed, report.Results[0].Reason)
	assert.Empty(t, f.bot.Sent())
}

type failingOutbox struct {
	notify.Repository
	failFor string
}

func (r failingOutbox) ResolveRecord(ctx context.Context, rec notify.Record) error {
	if rec.StudentID == r.failFor {
		return errors.New("disk full")
	}
	return r.Repository.ResolveRecord(ctx, rec)
}

type failingStudents struct{}

func (failingStudents) GetStudents(context.Context, ...string) ([]school.Student, error) {
	return nil, errors.New("connection refused")
}

func TestDispatcher_Dispatch_storageFailure(t *testing.T) {
	f := setup(t, 2)
	a, b := f.students[0], f.students[1]
	f.link(t, a, "100")
	f.link(t, b, "200")
	d := f.dispatcher(failingOutbox{Repository: inmemdb.NewOutboxRepository(f.db), failFor: a.ID})

	report, err := d.Dispatch(context.Background(), "event", []string{a.ID, b.ID}, staticRender("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, report.Errored)
	assert.Equal(t, 1, report.Delivered, "other recipients are still notified")
	assert.Equal(t, notify.OutcomeErrored, outcomes(report)[a.ID])

	d = notify.NewDispatcher(inmemdb.NewOutboxRepository(inmemdb.Open()), failingStudents{}, f.channels, f.bot,
		testclock.NewClock(time.Now()), logsvc.NewNopLogger())
	report, err = d.Dispatch(context.Background(), "event", []string{a.ID, b.ID}, staticRender("hi"))
	require.Error(t, err)
	assert.Equal(t, 2, report.Errored)
}

// cancelingMessenger cancels the caller's context while a send is in flight.
type cancelingMessenger struct {
	core.Messenger
	cancel context.CancelFunc
}

func (m cancelingMessenger) Send(ctx context.Context, channelID, text string) core.Delivery {
	m.cancel()
	if ctx.Err() != nil {
		return core.Undeliverable(core.ReasonTimeout)
	}
	return m.Messenger.Send(ctx, channelID, text)
}

func TestDispatcher_Dispatch_callerCancelled(t *testing.T) {
	f := setup(t, 2)
	a, b := f.students[0], f.students[1]
	f.link(t, a, "100")
	f.link(t, b, "200")
	outbox := sqlxrepos.NewOutboxRepository(testutil.PrepareDB(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := testclock.NewClock(time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC))
	d := notify.NewDispatcher(outbox, f.schools, f.channels, cancelingMessenger{Messenger: f.bot, cancel: cancel},
		clk, logsvc.NewNopLogger(), notify.WithWorkers(1))

	report, err := d.Dispatch(ctx, "event", []string{a.ID, b.ID}, staticRender("hi"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Delivered)

	records, err := d.Records(context.Background(), "event")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, notify.OutcomeDelivered, rec.Outcome)
	}

	report, err = d.Dispatch(context.Background(), "event", []string{a.ID, b.ID}, staticRender("hi"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.AlreadyAttempted)
	assert.Len(t, f.bot.Sent(), 2)
}

func TestDispatcher_Dispatch_gapReport(t *testing.T) {
	f := setup(t, 2)
	f.link(t, f.students[0], "100")
	mailer := emailsvc.NewConsoleServiceMock(testutil.NewConfig(), logsvc.NewNopLogger())
	to := mail.Address{Name: "Registrar", Address: "registrar@greenfield.test"}
	d := f.dispatcher(nil, notify.WithGapReport(mailer, to))

	_, err := d.Dispatch(context.Background(), "event", []string{f.students[0].ID, f.students[1].ID}, staticRender("hi"))
	require.NoError(t, err)

	sent := mailer.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, []mail.Address{to}, sent[0].To)
	assert.Equal(t, "1 student(s) without a linked channel", sent[0].Subject)
	assert.Contains(t, sent[0].BodyStr, "- Student 1 (S001)")
	assert.Equal(t, notify.GapReportCategory, sent[0].Category)
	assert.Equal(t, map[string]string{"event_key": "event"}, sent[0].Tags)

	// nothing to report when everyone is linked
	_, err = d.Dispatch(context.Background(), "event-2", []string{f.students[0].ID}, staticRender("hi"))
	require.NoError(t, err)
	assert.Len(t, mailer.SentMessages(), 1)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{name: "short", text: "hello", max: 10, want: "hello"},
		{name: "exact", text: "hello", max: 5, want: "hello"},
		{name: "cut", text: strings.Repeat("a", 30), max: 20, want: "aaaaaaa" + notify.TruncationMarker},
		{name: "tiny max", text: "hello world, long text", max: 3, want: notify.TruncationMarker},
		{name: "entities count once", text: strings.Repeat("&amp;", 10), max: 10, want: strings.Repeat("&amp;", 10)},
		{name: "tags do not count", text: "<b>hello</b>", max: 5, want: "<b>hello</b>"},
		{name: "cut between entities", text: strings.Repeat("&amp;", 30), max: 20, want: strings.Repeat("&amp;", 7) + notify.TruncationMarker},
		{name: "open tags closed", text: "<b>" + strings.Repeat("a", 30) + "</b>", max: 20, want: "<b>aaaaaaa</b>" + notify.TruncationMarker},
		{
			name: "nested tags closed in order",
			text: `<a href="https://t.me/x"><i>` + strings.Repeat("a", 30) + "</i></a>",
			max:  20,
			want: `<a href="https://t.me/x"><i>aaaaaaa</i></a>` + notify.TruncationMarker,
		},
		{name: "bare ampersand", text: "a & b" + strings.Repeat("c", 30), max: 20, want: "a & bcc" + notify.TruncationMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, notify.Truncate(tt.text, tt.max))
		})
	}
}

func TestReport_Summary(t *testing.T) {
	assert.Equal(t, "0 notified, 0 without a linked channel", notify.Report{}.Summary())
	assert.Equal(t, "2 notified, 1 without a linked channel, 3 already notified, 1 unknown, 4 failed",
		notify.Report{Delivered: 2, NoChannel: 1, AlreadyAttempted: 3, UnknownRecipient: 1, Errored: 4}.Summary())
}
