package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/credential"
)

const credentialSelect = `
	SELECT c.id, c.token, c.handle, c.created_at, c.updated_at, (ac.credential_id IS NOT NULL) AS active
	FROM credentials c
	LEFT JOIN active_credential ac ON ac.credential_id = c.id`

type credentialRepository struct {
	repo
}

var _ credential.Repository = (*credentialRepository)(nil) // interface compliance check

func NewCredentialRepository(exec core.DBExecutor) *credentialRepository {
	return &credentialRepository{repo{exec: exec}}
}

func (r credentialRepository) UpsertCredential(ctx context.Context, cred credential.Credential) (credential.Credential, error) {
	var stored credential.Credential
	err := r.get(ctx, &stored, `
		INSERT INTO credentials (id, token, handle, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (token) DO UPDATE SET handle = excluded.handle, updated_at = excluded.updated_at
		RETURNING id, token, handle, created_at, updated_at`,
		cred.ID, cred.Token, cred.Handle, cred.CreatedAt.UTC(), cred.UpdatedAt.UTC())
	if err != nil {
		return credential.Credential{}, errors.Wrap(err, "upserting credential")
	}
	return stored, nil
}

// ActivateCredential swaps the single active slot in one statement.
func (r credentialRepository) ActivateCredential(ctx context.Context, id string, at time.Time) error {
	_, err := r.execAffected(ctx, `
		INSERT INTO active_credential (singleton, credential_id, activated_at) VALUES (TRUE, ?, ?)
		ON CONFLICT (singleton) DO UPDATE SET credential_id = excluded.credential_id, activated_at = excluded.activated_at`,
		id, at.UTC())
	if err != nil {
		return errors.Wrap(err, "activating credential")
	}
	return nil
}

func (r credentialRepository) GetActiveCredential(ctx context.Context) (credential.Credential, error) {
	var cred credential.Credential
	if err := r.get(ctx, &cred, credentialSelect+" WHERE ac.credential_id IS NOT NULL"); err != nil {
		return credential.Credential{}, trapNoRowsErr(err, credential.ErrNotFound, "getting active credential")
	}
	return cred, nil
}

func (r credentialRepository) QueryCredentials(ctx context.Context) ([]credential.Credential, error) {
	creds := make([]credential.Credential, 0)
	if err := r.exec.SelectContext(ctx, &creds, r.q(credentialSelect+" ORDER BY c.created_at")); err != nil {
		return nil, errors.Wrap(err, "selecting credentials")
	}
	return creds, nil
}
