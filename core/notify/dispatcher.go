package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/juju/clock"
	"github.com/pkg/errors"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/school"
)

const (
	DefaultWorkers = 8

	// MaxMessageLength is the provider limit, in characters.
	MaxMessageLength = 4096
	TruncationMarker = "\n…(truncated)"

	GapReportCategory = "gap-report"
)

type (
	Repository interface {
		// ClaimRecord inserts a pending record; false means one already exists for (student, event).
		ClaimRecord(ctx context.Context, rec Record) (bool, error)
		ResolveRecord(ctx context.Context, rec Record) error
		QueryRecords(ctx context.Context, eventKey string) ([]Record, error)
	}

	Students interface {
		GetStudents(ctx context.Context, ids ...string) ([]school.Student, error)
	}

	Directory interface {
		LookupChannel(ctx context.Context, studentID string) (string, bool, error)
	}

	// Render produces the message text for one recipient.
	Render func(std school.Student) (string, error)

	Dispatcher struct {
		repo      Repository
		students  Students
		directory Directory
		messenger core.Messenger
		clock     clock.Clock
		logger    core.Logger
		workers   int

		email       core.EmailService
		reportEmail []mail.Address
	}

	Option func(*Dispatcher)
)

// WithWorkers bounds the number of concurrent sends.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithGapReport emails the list of recipients without a linked channel after each dispatch that has some.
func WithGapReport(email core.EmailService, to ...mail.Address) Option {
	return func(d *Dispatcher) {
		d.email = email
		d.reportEmail = to
	}
}

func NewDispatcher(
	repo Repository,
	students Students,
	directory Directory,
	messenger core.Messenger,
	clk clock.Clock,
	logger core.Logger,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		repo:      repo,
		students:  students,
		directory: directory,
		messenger: messenger,
		clock:     clk,
		logger:    logger,
		workers:   DefaultWorkers,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch notifies every recipient independently and reports what happened to each.
// A recipient already recorded for eventKey is skipped. Transport failures are recorded outcomes;
// storage failures are returned as an error alongside the complete report.
// Cancelling ctx does not stop a dispatch: every claimed record must be resolved.
func (d *Dispatcher) Dispatch(ctx context.Context, eventKey string, studentIDs []string, render Render) (Report, error) {
	ctx = context.WithoutCancel(ctx)
	report := Report{EventKey: eventKey, WithoutChannel: []string{}, Results: []Result{}}
	ids := dedupe(studentIDs)
	if len(ids) == 0 {
		return report, nil
	}

	students, err := d.students.GetStudents(ctx, ids...)
	if err != nil {
		err = errors.Wrap(err, "getting students")
		for _, id := range ids {
			report.add(Result{StudentID: id, Outcome: OutcomeErrored, Err: err})
		}
		return report, err
	}
	byID := make(map[string]school.Student, len(students))
	for _, std := range students {
		byID[std.ID] = std
	}

	jobs := make(chan school.Student)
	results := make(chan Result)
	workers := d.workers
	if workers > len(ids) {
		workers = len(ids)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for std := range jobs {
				results <- d.notify(ctx, eventKey, std, render)
			}
		}()
	}

	go func() {
		for _, id := range ids {
			if std, ok := byID[id]; ok {
				jobs <- std
			}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			report.add(Result{StudentID: id, Outcome: OutcomeUnknownRecipient})
		}
	}

	var firstErr error
	for res := range results {
		if res.Err != nil && firstErr == nil {
			firstErr = res.Err
		}
		report.add(res)
	}

	d.logger.Info(fmt.Sprintf("dispatch %s: %s", eventKey, report.Summary()))
	d.sendGapReport(report, byID)

	if firstErr != nil {
		return report, errors.Wrapf(firstErr, "%d recipient(s) failed", report.Errored)
	}
	return report, nil
}

func (d *Dispatcher) notify(ctx context.Context, eventKey string, std school.Student, render Render) Result {
	res := Result{StudentID: std.ID}
	rec := Record{StudentID: std.ID, EventKey: eventKey, AttemptedAt: d.clock.Now().UTC(), Outcome: OutcomePending}

	claimed, err := d.repo.ClaimRecord(ctx, rec)
	if err != nil {
		return d.errored(res, errors.Wrap(err, "claiming outbox record"))
	}
	if !claimed {
		res.Outcome = OutcomeAlreadyAttempted
		return res
	}

	chatID, ok, err := d.directory.LookupChannel(ctx, std.ID)
	if err != nil {
		return d.errored(res, errors.Wrap(err, "looking up channel"))
	}

	switch {
	case !ok:
		rec.Outcome = OutcomeNoChannel
	default:
		text, err := render(std)
		if err != nil {
			d.logger.Error(fmt.Sprintf("rendering %s for student %s", eventKey, std.ID), err)
			rec.Outcome, rec.Reason = OutcomeUndeliverable, ReasonRenderFailed
			break
		}
		if delivery := d.messenger.Send(ctx, chatID, Truncate(text, MaxMessageLength)); delivery.Delivered {
			rec.Outcome = OutcomeDelivered
		} else {
			rec.Outcome, rec.Reason = OutcomeUndeliverable, delivery.Reason
		}
	}

	rec.AttemptedAt = d.clock.Now().UTC()
	if err = d.repo.ResolveRecord(ctx, rec); err != nil {
		res.Reason = string(rec.Outcome)
		return d.errored(res, errors.Wrap(err, "resolving outbox record"))
	}
	res.Outcome, res.Reason = rec.Outcome, rec.Reason
	return res
}

func (d *Dispatcher) errored(res Result, err error) Result {
	d.logger.Error(fmt.Sprintf("notifying student %s", res.StudentID), err)
	res.Outcome = OutcomeErrored
	res.Err = err
	return res
}

func (d *Dispatcher) sendGapReport(report Report, students map[string]school.Student) {
	if report.NoChannel == 0 || d.email == nil || len(d.reportEmail) == 0 {
		return
	}
	body := new(strings.Builder)
	_, _ = fmt.Fprintf(body, "Dispatch %s: %s.\n\n", report.EventKey, report.Summary())
	_, _ = fmt.Fprint(body, "Students without a linked channel:\n")
	for _, id := range report.WithoutChannel {
		std := students[id]
		_, _ = fmt.Fprintf(body, "- %s (%s)\n", std.FullName(), std.Code)
	}
	d.email.SendMessages(&core.EmailMessage{
		To:       d.reportEmail,
		Subject:  fmt.Sprintf("%d student(s) without a linked channel", report.NoChannel),
		BodyStr:  body.String(),
		Category: GapReportCategory,
		Tags:     map[string]string{"event_key": report.EventKey},
	})
}

// Truncate cuts an HTML message to at most max visible characters, ending it with TruncationMarker when cut.
// Tags do not count and an entity counts as one character. A cut never splits either, and tags left open are closed.
func Truncate(text string, max int) string {
	if visibleLength(text) <= max {
		return text
	}
	keep := max - utf8.RuneCountInString(TruncationMarker)

	var (
		out  strings.Builder
		open []string
		n    int
	)
	for i := 0; i < len(text) && n < keep; {
		if text[i] == '<' {
			end := strings.IndexByte(text[i:], '>')
			if end < 0 {
				break
			}
			tag := text[i : i+end+1]
			open = trackTag(open, tag)
			out.WriteString(tag)
			i += end + 1
			continue
		}
		size := charSize(text[i:])
		out.WriteString(text[i : i+size])
		n++
		i += size
	}
	for j := len(open) - 1; j >= 0; j-- {
		out.WriteString("</" + open[j] + ">")
	}
	out.WriteString(TruncationMarker)
	return out.String()
}

// visibleLength counts the characters of an HTML message as the provider displays them.
func visibleLength(text string) int {
	n := 0
	for i := 0; i < len(text); {
		if text[i] == '<' {
			if end := strings.IndexByte(text[i:], '>'); end >= 0 {
				i += end + 1
				continue
			}
		}
		i += charSize(text[i:])
		n++
	}
	return n
}

// charSize is the byte length of the character starting text: a whole entity or a single rune.
func charSize(text string) int {
	if text[0] == '&' {
		if end := strings.IndexByte(text, ';'); end > 1 && end <= maxEntityLength && isEntityName(text[1:end]) {
			return end + 1
		}
	}
	_, size := utf8.DecodeRuneInString(text)
	return size
}

const maxEntityLength = 10

func isEntityName(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '#' && i == 0:
		default:
			return false
		}
	}
	return true
}

// trackTag pushes opening tags and pops closed ones.
func trackTag(open []string, tag string) []string {
	body := strings.TrimSuffix(strings.TrimPrefix(tag, "<"), ">")
	if strings.HasSuffix(body, "/") {
		return open
	}
	if strings.HasPrefix(body, "/") {
		name := strings.ToLower(strings.TrimSpace(body[1:]))
		for j := len(open) - 1; j >= 0; j-- {
			if open[j] == name {
				return append(open[:j], open[j+1:]...)
			}
		}
		return open
	}
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return open
	}
	return append(open, strings.ToLower(fields[0]))
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Records lists the outbox records of an event.
func (d *Dispatcher) Records(ctx context.Context, eventKey string) ([]Record, error) {
	return d.repo.QueryRecords(ctx, eventKey)
}
