package inmemdb

import (
	"context"

	"github.com/DexterJames00/EduTrack360/core/channel"
)

type channelRepository struct {
	db      *channelTable
	schools *schoolTable
}

var _ channel.Repository = (*channelRepository)(nil)

func NewChannelRepository(db *DB) *channelRepository {
	return &channelRepository{db: db.channel, schools: db.school}
}

func (repo *channelRepository) CreateLink(_ context.Context, link channel.Link) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.byStudent[link.StudentID]; ok {
		return false, nil
	}
	if _, ok := repo.db.byChannel[link.ChannelID]; ok {
		return false, nil
	}
	repo.db.byStudent[link.StudentID] = link
	repo.db.byChannel[link.ChannelID] = link.StudentID
	return true, nil
}

func (repo *channelRepository) GetLinkByStudent(_ context.Context, studentID string) (channel.Link, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if link, ok := repo.db.byStudent[studentID]; ok {
		return link, nil
	}
	return channel.Link{}, channel.ErrNotFound
}

func (repo *channelRepository) GetLinkByChannel(_ context.Context, channelID string) (channel.Link, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if studentID, ok := repo.db.byChannel[channelID]; ok {
		return repo.db.byStudent[studentID], nil
	}
	return channel.Link{}, channel.ErrNotFound
}

func (repo *channelRepository) GetLinksByStudents(_ context.Context, studentIDs ...string) ([]channel.Link, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	links := make([]channel.Link, 0, len(studentIDs))
	for _, id := range studentIDs {
		if link, ok := repo.db.byStudent[id]; ok {
			links = append(links, link)
		}
	}
	return links, nil
}

func (repo *channelRepository) DeleteLink(_ context.Context, studentID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	link, ok := repo.db.byStudent[studentID]
	if !ok {
		return channel.ErrNotFound
	}
	delete(repo.db.byStudent, studentID)
	delete(repo.db.byChannel, link.ChannelID)
	return nil
}

func (repo *channelRepository) SchoolStats(_ context.Context, schoolID string) (channel.Stats, error) {
	repo.schools.RLock()
	defer repo.schools.RUnlock()
	repo.db.RLock()
	defer repo.db.RUnlock()

	var st channel.Stats
	for _, std := range repo.schools.students {
		if std.SchoolID != schoolID {
			continue
		}
		st.Total++
		if _, ok := repo.db.byStudent[std.ID]; ok {
			st.Connected++
		}
	}
	return st, nil
}
