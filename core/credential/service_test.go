package credential_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/credential"
	inmemdb "github.com/DexterJames00/EduTrack360/storage/database/inmem"
	sqlxrepos "github.com/DexterJames00/EduTrack360/storage/database/sqlx"
	"github.com/DexterJames00/EduTrack360/tests"
)

var backends = map[string]func(t *testing.T) credential.Repository{
	"inmem": func(t *testing.T) credential.Repository {
		return inmemdb.NewCredentialRepository(inmemdb.Open())
	},
	"sqlite": func(t *testing.T) credential.Repository {
		return sqlxrepos.NewCredentialRepository(testutil.PrepareDB(t))
	},
}

func setup(t *testing.T, newRepo func(t *testing.T) credential.Repository) (*credential.Service, *testutil.Bot, *testclock.Clock) {
	bot := testutil.NewBot()
	clk := testclock.NewClock(time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC))
	return credential.NewService(newRepo(t), bot, clk, "s3cr3t"), bot, clk
}

func TestService_Activate(t *testing.T) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			svc, bot, clk := setup(t, newRepo)
			bot.ValidTokens = []string{"111:aaa", "222:bbb"}
			ctx := context.Background()

			_, err := svc.Current(ctx)
			assert.Equal(t, credential.ErrNoActiveCredential, err)

			_, err = svc.Activate(ctx, "  ")
			assert.Equal(t, credential.ErrEmptyToken, err)

			_, err = svc.Activate(ctx, "999:nope")
			assert.Equal(t, core.ErrInvalidCredential, err)
			_, err = svc.Current(ctx)
			assert.Equal(t, credential.ErrNoActiveCredential, err, "a rejected token is never stored")

			first, err := svc.Activate(ctx, " 111:aaa ")
			require.NoError(t, err)
			assert.True(t, first.Active)
			assert.Equal(t, "edutrack_111_bot", first.Handle)

			clk.Advance(time.Hour)
			second, err := svc.Activate(ctx, "222:bbb")
			require.NoError(t, err)

			tok, err := svc.CurrentToken(ctx)
			require.NoError(t, err)
			assert.Equal(t, "222:bbb", tok)

			// re-activating a known token reuses its row
			again, err := svc.Activate(ctx, "111:aaa")
			require.NoError(t, err)
			assert.Equal(t, first.ID, again.ID)

			creds, err := svc.List(ctx)
			require.NoError(t, err)
			require.Len(t, creds, 2)
			active := 0
			for _, c := range creds {
				if c.Active {
					active++
					assert.Equal(t, first.ID, c.ID)
				}
			}
			assert.Equal(t, 1, active)
			assert.NotEqual(t, first.ID, second.ID)
		})
	}
}

func TestService_Activate_unreachable(t *testing.T) {
	svc, bot, _ := setup(t, backends["inmem"])
	bot.Unreachable = true

	_, err := svc.Activate(context.Background(), "111:aaa")
	assert.Equal(t, core.ErrProviderUnreachable, err)
}

func TestService_Activate_concurrent(t *testing.T) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			svc, _, _ := setup(t, newRepo)
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := svc.Activate(ctx, fmt.Sprintf("%d:token", 100+i))
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			creds, err := svc.List(ctx)
			require.NoError(t, err)
			assert.Len(t, creds, 10)
			active := 0
			for _, c := range creds {
				if c.Active {
					active++
				}
			}
			assert.Equal(t, 1, active)

			current, err := svc.Current(ctx)
			require.NoError(t, err)
			assert.True(t, current.Active)
		})
	}
}

func TestService_ConfigureWebhook(t *testing.T) {
	svc, bot, _ := setup(t, backends["inmem"])

	hookURL, err := svc.ConfigureWebhook(context.Background(), "http://api.example.com/edu/")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/edu/webhook", hookURL)
	assert.Equal(t, []string{hookURL}, bot.Webhooks())

	_, err = svc.ConfigureWebhook(context.Background(), "not a url")
	assert.Equal(t, credential.ErrInvalidPublicURL, err)
}

func TestWebhookURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr error
	}{
		{base: "https://api.example.com", want: "https://api.example.com/webhook"},
		{base: "https://api.example.com/", want: "https://api.example.com/webhook"},
		{base: "http://api.example.com:8443/base?x=1#frag", want: "https://api.example.com:8443/base/webhook"},
		{base: " HTTPS://api.example.com ", want: "https://api.example.com/webhook"},
		{base: "ftp://api.example.com", wantErr: credential.ErrInvalidPublicURL},
		{base: "api.example.com", wantErr: credential.ErrInvalidPublicURL},
		{base: "", wantErr: credential.ErrInvalidPublicURL},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := credential.WebhookURL(tt.base)
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCredential_MaskedToken(t *testing.T) {
	assert.Equal(t, "123456:****", credential.Credential{Token: "123456:ABC-def"}.MaskedToken())
	assert.Equal(t, "abcd****", credential.Credential{Token: "abcdefgh"}.MaskedToken())
	assert.Equal(t, "****", credential.Credential{Token: "abc"}.MaskedToken())
}
