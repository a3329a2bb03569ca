package credential

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/pkg/errors"

	"github.com/DexterJames00/EduTrack360/core"
)

var (
	// errors
	ErrNotFound           = errors.New("credential not found")
	ErrNoActiveCredential = errors.New("no active bot credential")
	ErrEmptyToken         = errors.New("bot token is required")
	ErrInvalidPublicURL   = errors.New("public url must be an http(s) url with a host")
)

// WebhookPath is where the provider posts updates.
const WebhookPath = "/webhook"

type (
	Repository interface {
		// UpsertCredential inserts the credential, or refreshes the handle of the one with the same token.
		UpsertCredential(ctx context.Context, cred Credential) (Credential, error)
		// ActivateCredential points the single active slot to id, replacing whatever it held.
		ActivateCredential(ctx context.Context, id string, at time.Time) error
		GetActiveCredential(ctx context.Context) (Credential, error)
		QueryCredentials(ctx context.Context) ([]Credential, error)
	}

	// Verifier is the part of the provider the credential store talks to.
	Verifier interface {
		VerifyCredential(ctx context.Context, token string) (core.BotIdentity, error)
		RegisterWebhook(ctx context.Context, url, secret string) error
	}

	// Reader gives read access to the active credential.
	Reader struct {
		repo Repository
	}

	Service struct {
		*Reader
		repo          Repository
		verifier      Verifier
		clock         clock.Clock
		webhookSecret string
	}
)

func NewReader(repo Repository) *Reader {
	return &Reader{repo: repo}
}

// Current returns the active credential or ErrNoActiveCredential.
func (r *Reader) Current(ctx context.Context) (Credential, error) {
	cred, err := r.repo.GetActiveCredential(ctx)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Credential{}, ErrNoActiveCredential
		}
		return Credential{}, errors.Wrap(err, "getting active credential")
	}
	return cred, nil
}

// CurrentToken returns the token of the active credential.
func (r *Reader) CurrentToken(ctx context.Context) (string, error) {
	cred, err := r.Current(ctx)
	if err != nil {
		return "", err
	}
	return cred.Token, nil
}

func NewService(repo Repository, verifier Verifier, clk clock.Clock, webhookSecret string) *Service {
	return &Service{
		Reader:        NewReader(repo),
		repo:          repo,
		verifier:      verifier,
		clock:         clk,
		webhookSecret: webhookSecret,
	}
}

// Activate verifies the token with the provider, stores it and makes it the only active credential.
func (svc *Service) Activate(ctx context.Context, token string) (Credential, error) {
	token = core.CleanString(token)
	if token == "" {
		return Credential{}, ErrEmptyToken
	}

	ident, err := svc.verifier.VerifyCredential(ctx, token)
	if err != nil {
		return Credential{}, err
	}

	now := svc.clock.Now().UTC()
	cred, err := svc.repo.UpsertCredential(ctx, Credential{
		ID:        uuid.NewString(),
		Token:     token,
		Handle:    ident.Username,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Credential{}, errors.Wrap(err, "upserting credential")
	}

	if err = svc.repo.ActivateCredential(ctx, cred.ID, now); err != nil {
		return Credential{}, errors.Wrap(err, "activating credential")
	}
	cred.Active = true
	return cred, nil
}

func (svc *Service) List(ctx context.Context) ([]Credential, error) {
	creds, err := svc.repo.QueryCredentials(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying credentials")
	}
	return creds, nil
}

// ConfigureWebhook registers `<publicBaseURL>/webhook` with the provider and returns the registered url.
// An http base url is upgraded to https.
func (svc *Service) ConfigureWebhook(ctx context.Context, publicBaseURL string) (string, error) {
	hookURL, err := WebhookURL(publicBaseURL)
	if err != nil {
		return "", err
	}
	if err = svc.verifier.RegisterWebhook(ctx, hookURL, svc.webhookSecret); err != nil {
		return "", err
	}
	return hookURL, nil
}

// WebhookURL builds the https webhook url from a public base url.
func WebhookURL(publicBaseURL string) (string, error) {
	u, err := url.Parse(core.CleanString(publicBaseURL))
	if err != nil || u.Host == "" {
		return "", ErrInvalidPublicURL
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		u.Scheme = "https"
	default:
		return "", ErrInvalidPublicURL
	}
	u.Scheme = "https"
	u.Path = strings.TrimRight(u.Path, "/") + WebhookPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
