package notify

import (
	"fmt"
	"strings"
	"time"
)

// Outcome of a notification for one recipient.
type Outcome string

const (
	// persisted
	OutcomePending       Outcome = "pending"
	OutcomeDelivered     Outcome = "delivered"
	OutcomeUndeliverable Outcome = "undeliverable"
	OutcomeNoChannel     Outcome = "no_channel"

	// report only
	OutcomeAlreadyAttempted Outcome = "already_attempted"
	OutcomeUnknownRecipient Outcome = "unknown_recipient"
	OutcomeErrored          Outcome = "errored"
)

// ReasonRenderFailed is recorded when the message for a recipient could not be rendered.
const ReasonRenderFailed = "render_failed"

type (
	// Record is the outbox entry of one recipient for one event.
	Record struct {
		StudentID   string    `json:"student_id" db:"student_id"`
		EventKey    string    `json:"event_key" db:"event_key"`
		AttemptedAt time.Time `json:"attempted_at" db:"attempted_at"`
		Outcome     Outcome   `json:"outcome" db:"outcome"`
		Reason      string    `json:"reason,omitempty" db:"reason"`
	}

	Result struct {
		StudentID string  `json:"student_id"`
		Outcome   Outcome `json:"outcome"`
		Reason    string  `json:"reason,omitempty"`
		Err       error   `json:"-"`
	}

	// Report aggregates the results of one dispatch call.
	Report struct {
		EventKey         string   `json:"event_key"`
		Delivered        int      `json:"delivered"`
		Undeliverable    int      `json:"undeliverable"`
		NoChannel        int      `json:"no_channel"`
		AlreadyAttempted int      `json:"already_attempted"`
		UnknownRecipient int      `json:"unknown_recipient"`
		Errored          int      `json:"errored"`
		WithoutChannel   []string `json:"without_channel"`
		Results          []Result `json:"results"`
	}
)

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	switch res.Outcome {
	case OutcomeDelivered:
		r.Delivered++
	case OutcomeUndeliverable:
		r.Undeliverable++
	case OutcomeNoChannel:
		r.NoChannel++
		r.WithoutChannel = append(r.WithoutChannel, res.StudentID)
	case OutcomeAlreadyAttempted:
		r.AlreadyAttempted++
	case OutcomeUnknownRecipient:
		r.UnknownRecipient++
	case OutcomeErrored:
		r.Errored++
	}
}

func (r Report) Total() int {
	return len(r.Results)
}

// Summary is the caller-facing one-liner, eg. "12 notified, 3 without a linked channel".
func (r Report) Summary() string {
	parts := []string{
		fmt.Sprintf("%d notified", r.Delivered),
		fmt.Sprintf("%d without a linked channel", r.NoChannel),
	}
	if r.Undeliverable > 0 {
		parts = append(parts, fmt.Sprintf("%d undeliverable", r.Undeliverable))
	}
	if r.AlreadyAttempted > 0 {
		parts = append(parts, fmt.Sprintf("%d already notified", r.AlreadyAttempted))
	}
	if r.UnknownRecipient > 0 {
		parts = append(parts, fmt.Sprintf("%d unknown", r.UnknownRecipient))
	}
	if r.Errored > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Errored))
	}
	return strings.Join(parts, ", ")
}
