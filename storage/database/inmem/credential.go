package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/DexterJames00/EduTrack360/core/credential"
)

type credentialRepository struct {
	db *credentialTable
}

var _ credential.Repository = (*credentialRepository)(nil)

func NewCredentialRepository(db *DB) *credentialRepository {
	return &credentialRepository{db: db.credential}
}

func (repo *credentialRepository) withActive(cred credential.Credential) credential.Credential {
	cred.Active = cred.ID == repo.db.activeID
	return cred
}

func (repo *credentialRepository) UpsertCredential(_ context.Context, cred credential.Credential) (credential.Credential, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, c := range repo.db.table {
		if c.Token == cred.Token {
			c.Handle = cred.Handle
			c.UpdatedAt = cred.UpdatedAt
			repo.db.table[id] = c
			return repo.withActive(c), nil
		}
	}
	cred.Active = false
	repo.db.table[cred.ID] = cred
	return cred, nil
}

func (repo *credentialRepository) ActivateCredential(_ context.Context, id string, _ time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return credential.ErrNotFound
	}
	repo.db.activeID = id
	return nil
}

func (repo *credentialRepository) GetActiveCredential(_ context.Context) (credential.Credential, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.table[repo.db.activeID]; ok {
		return repo.withActive(c), nil
	}
	return credential.Credential{}, credential.ErrNotFound
}

func (repo *credentialRepository) QueryCredentials(_ context.Context) ([]credential.Credential, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	creds := make([]credential.Credential, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		creds = append(creds, repo.withActive(c))
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].CreatedAt.Before(creds[j].CreatedAt) })
	return creds, nil
}
