package channel

import (
	"context"

	"github.com/juju/clock"
	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound     = errors.New("link not found")
	ErrUnclassified = errors.New("link rejected but no conflicting link found")
	ErrEmptyChannel = errors.New("channel id is required")
	ErrEmptyStudent = errors.New("student id is required")
)

type (
	Repository interface {
		// CreateLink inserts the link unless the student or the channel is already linked.
		// It reports whether a row was inserted; a conflict is not an error.
		CreateLink(ctx context.Context, link Link) (bool, error)
		GetLinkByStudent(ctx context.Context, studentID string) (Link, error)
		GetLinkByChannel(ctx context.Context, channelID string) (Link, error)
		GetLinksByStudents(ctx context.Context, studentIDs ...string) ([]Link, error)
		DeleteLink(ctx context.Context, studentID string) error
		SchoolStats(ctx context.Context, schoolID string) (Stats, error)
	}

	Service struct {
		repo  Repository
		clock clock.Clock
	}
)

func NewService(repo Repository, clk clock.Clock) *Service {
	return &Service{repo: repo, clock: clk}
}

// Link binds studentID to channelID. Uniqueness of both sides is enforced by the storage layer;
// existing rows are only read back to classify a rejected insert.
func (svc *Service) Link(ctx context.Context, studentID, channelID string) (LinkResult, error) {
	if studentID == "" {
		return 0, ErrEmptyStudent
	}
	if channelID == "" {
		return 0, ErrEmptyChannel
	}

	link := Link{StudentID: studentID, ChannelID: channelID, LinkedAt: svc.clock.Now().UTC()}
	inserted, err := svc.repo.CreateLink(ctx, link)
	if err != nil {
		return 0, errors.Wrap(err, "creating link")
	}
	if inserted {
		return Linked, nil
	}
	return svc.classifyConflict(ctx, studentID, channelID)
}

func (svc *Service) classifyConflict(ctx context.Context, studentID, channelID string) (LinkResult, error) {
	existing, err := svc.repo.GetLinkByStudent(ctx, studentID)
	switch {
	case err == nil:
		if existing.ChannelID == channelID {
			return AlreadyLinked, nil
		}
		return ConflictOtherChannel, nil
	case errors.Cause(err) != ErrNotFound:
		return 0, errors.Wrap(err, "getting link by student")
	}

	if _, err = svc.repo.GetLinkByChannel(ctx, channelID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			// the conflicting link was removed in between
			return 0, ErrUnclassified
		}
		return 0, errors.Wrap(err, "getting link by channel")
	}
	return ConflictChannelTaken, nil
}

// LookupChannel returns the channel linked to studentID, if any.
func (svc *Service) LookupChannel(ctx context.Context, studentID string) (string, bool, error) {
	link, err := svc.repo.GetLinkByStudent(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "getting link by student")
	}
	return link.ChannelID, true, nil
}

// LookupChannels returns {studentID: channelID} for the linked students among studentIDs.
func (svc *Service) LookupChannels(ctx context.Context, studentIDs ...string) (map[string]string, error) {
	channels := make(map[string]string, len(studentIDs))
	if len(studentIDs) == 0 {
		return channels, nil
	}
	links, err := svc.repo.GetLinksByStudents(ctx, studentIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "getting links by students")
	}
	for _, l := range links {
		channels[l.StudentID] = l.ChannelID
	}
	return channels, nil
}

// Unlink clears the student's link so it can be registered again from another channel.
func (svc *Service) Unlink(ctx context.Context, studentID string) error {
	if err := svc.repo.DeleteLink(ctx, studentID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "deleting link")
	}
	return nil
}

func (svc *Service) Stats(ctx context.Context, schoolID string) (Stats, error) {
	st, err := svc.repo.SchoolStats(ctx, schoolID)
	if err != nil {
		return Stats{}, errors.Wrap(err, "getting school stats")
	}
	st.NotConnected = st.Total - st.Connected
	return st, nil
}
