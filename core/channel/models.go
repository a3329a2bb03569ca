package channel

import "time"

// LinkResult classifies the outcome of a link attempt.
type LinkResult int

const (
	Linked LinkResult = iota + 1
	AlreadyLinked
	ConflictOtherChannel // the student is linked to another channel
	ConflictChannelTaken // the channel is linked to another student
)

var linkResultNames = map[LinkResult]string{
	Linked:               "linked",
	AlreadyLinked:        "already_linked",
	ConflictOtherChannel: "conflict_other_channel",
	ConflictChannelTaken: "conflict_channel_taken",
}

func (r LinkResult) String() string {
	if name, ok := linkResultNames[r]; ok {
		return name
	}
	return "unknown"
}

type (
	// Link binds a student to an external channel (chat) id.
	Link struct {
		StudentID string    `json:"student_id" db:"student_id"`
		ChannelID string    `json:"channel_id" db:"channel_id"`
		LinkedAt  time.Time `json:"linked_at" db:"linked_at"`
	}

	// Stats is the per-school connection summary.
	Stats struct {
		Total        int `json:"total" db:"total"`
		Connected    int `json:"connected" db:"connected"`
		NotConnected int `json:"not_connected" db:"-"`
	}
)
