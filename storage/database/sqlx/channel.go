package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/channel"
)

type channelRepository struct {
	repo
}

var _ channel.Repository = (*channelRepository)(nil) // interface compliance check

func NewChannelRepository(exec core.DBExecutor) *channelRepository {
	return &channelRepository{repo{exec: exec}}
}

// CreateLink relies on the primary key (student_id) and the unique channel_id to reject conflicting links.
func (r channelRepository) CreateLink(ctx context.Context, link channel.Link) (bool, error) {
	n, err := r.execAffected(ctx,
		"INSERT INTO linked_channels (student_id, channel_id, linked_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		link.StudentID, link.ChannelID, link.LinkedAt.UTC())
	if err != nil {
		return false, errors.Wrap(err, "inserting link")
	}
	return n == 1, nil
}

func (r channelRepository) GetLinkByStudent(ctx context.Context, studentID string) (channel.Link, error) {
	var link channel.Link
	err := r.get(ctx, &link, "SELECT student_id, channel_id, linked_at FROM linked_channels WHERE student_id = ?", studentID)
	if err != nil {
		return channel.Link{}, trapNoRowsErr(err, channel.ErrNotFound, "getting link by student")
	}
	return link, nil
}

func (r channelRepository) GetLinkByChannel(ctx context.Context, channelID string) (channel.Link, error) {
	var link channel.Link
	err := r.get(ctx, &link, "SELECT student_id, channel_id, linked_at FROM linked_channels WHERE channel_id = ?", channelID)
	if err != nil {
		return channel.Link{}, trapNoRowsErr(err, channel.ErrNotFound, "getting link by channel")
	}
	return link, nil
}

func (r channelRepository) GetLinksByStudents(ctx context.Context, studentIDs ...string) ([]channel.Link, error) {
	links := make([]channel.Link, 0, len(studentIDs))
	if len(studentIDs) == 0 {
		return links, nil
	}
	query, args, err := r.in("SELECT student_id, channel_id, linked_at FROM linked_channels WHERE student_id IN (?)", studentIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building links query")
	}
	if err = r.exec.SelectContext(ctx, &links, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting links")
	}
	return links, nil
}

func (r channelRepository) DeleteLink(ctx context.Context, studentID string) error {
	n, err := r.execAffected(ctx, "DELETE FROM linked_channels WHERE student_id = ?", studentID)
	if err != nil {
		return errors.Wrap(err, "deleting link")
	}
	if n == 0 {
		return channel.ErrNotFound
	}
	return nil
}

func (r channelRepository) SchoolStats(ctx context.Context, schoolID string) (channel.Stats, error) {
	var st channel.Stats
	err := r.get(ctx, &st, `
		SELECT COUNT(s.id) AS total, COUNT(lc.student_id) AS connected
		FROM students s
		LEFT JOIN linked_channels lc ON lc.student_id = s.id
		WHERE s.school_id = ?`, schoolID)
	if err != nil {
		return channel.Stats{}, errors.Wrap(err, "counting links")
	}
	return st, nil
}
