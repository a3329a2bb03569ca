package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/juju/clock/testclock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/DexterJames00/EduTrack360/apps/api/echo"
	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/channel"
	"github.com/DexterJames00/EduTrack360/core/credential"
	"github.com/DexterJames00/EduTrack360/core/school"
	sqlxrepos "github.com/DexterJames00/EduTrack360/storage/database/sqlx"
	"github.com/DexterJames00/EduTrack360/tests"
)

type fixture struct {
	cli        *commandLine
	out        *bytes.Buffer
	bot        *testutil.Bot
	schoolRepo school.Repository
}

func setup(t *testing.T) fixture {
	db := testutil.PrepareDB(t)
	conf := testutil.NewConfig()
	bot := testutil.NewBot()
	clk := testclock.NewClock(time.Now())
	schoolRepo := sqlxrepos.NewSchoolRepository(db)
	out := new(bytes.Buffer)

	return fixture{
		cli: &commandLine{
			conf:     conf,
			db:       db,
			out:      out,
			schools:  school.NewService(schoolRepo),
			channels: channel.NewService(sqlxrepos.NewChannelRepository(db), clk),
			creds:    credential.NewService(sqlxrepos.NewCredentialRepository(db), bot, clk, conf.Bot.WebhookSecret),
		},
		out:        out,
		bot:        bot,
		schoolRepo: schoolRepo,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	runMigrationsFunc = func(ctx context.Context, db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := f.cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	f := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "addschool: no args", args: []string{"addschool"}, wantErr: errHelp},
		{name: "addschool: no name", args: []string{"addschool", "-code", "GREENFIELD"}, wantErr: errHelp},
		{name: "addstudent: no school", args: []string{"addstudent", "-first", "Ana", "-last", "Cruz"}, wantErr: errHelp},
		{name: "invite: no args", args: []string{"invite"}, wantErr: errHelp},
		{name: "unlink: no args", args: []string{"unlink"}, wantErr: errHelp},
		{name: "setwebhook: no args", args: []string{"setwebhook"}, wantErr: errHelp},
		{name: "token: no role", args: []string{"token", "-subject", "staff-1"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, f.cli.run(args))
		})
	}
}

func Test_commandLine_schools(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.cli.run([]string{"admin", "addschool", "-code", "greenfield", "-name", "Greenfield High"}))
	assert.Contains(t, f.out.String(), "school GREENFIELD created: Greenfield High")

	sch, err := f.schoolRepo.GetSchoolByCode(ctx, "GREENFIELD")
	require.NoError(t, err)

	err = f.cli.run([]string{"admin", "addschool", "-code", "green_field", "-name", "Bad"})
	var vErr *core.ValidationError
	assert.ErrorAs(t, err, &vErr)

	err = f.cli.run([]string{"admin", "addstudent", "-school", "nowhere", "-first", "Ana", "-last", "Cruz"})
	assert.Equal(t, school.ErrNotFound, errors.Cause(err))

	f.out.Reset()
	require.NoError(t, f.cli.run([]string{"admin", "addstudent", "-school", "greenfield", "-first", "Ana", "-last", "Cruz", "-grade", "8"}))
	ids, err := f.schoolRepo.QueryStudentIDs(ctx, sch.ID)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	std, err := f.schoolRepo.GetStudentByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, std.Code, school.CodeLength)
	assert.Equal(t, "8", std.GradeLevel)
	assert.Contains(t, f.out.String(), "student "+std.Code+" created: Ana Cruz")

	// invite needs an active credential for the bot handle
	err = f.cli.run([]string{"admin", "invite", "-student", std.ID})
	assert.Equal(t, credential.ErrNoActiveCredential, errors.Cause(err))

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("4242:secret"), nil }
	require.NoError(t, f.cli.run([]string{"admin", "activatecredential"}))
	assert.Contains(t, f.out.String(), "credential 4242:**** activated for @edutrack_4242_bot")

	f.out.Reset()
	require.NoError(t, f.cli.run([]string{"admin", "invite", "-student", std.ID}))
	assert.Contains(t, f.out.String(), "https://t.me/edutrack_4242_bot?start=GREENFIELD_"+std.Code)
	assert.Contains(t, f.out.String(), "or send: GREENFIELD "+std.Code)

	err = f.cli.run([]string{"admin", "unlink", "-student", std.ID})
	assert.Equal(t, channel.ErrNotFound, errors.Cause(err))

	_, err = f.cli.channels.Link(ctx, std.ID, "555")
	require.NoError(t, err)
	require.NoError(t, f.cli.run([]string{"admin", "unlink", "-student", std.ID}))
	_, linked, err := f.cli.channels.LookupChannel(ctx, std.ID)
	require.NoError(t, err)
	assert.False(t, linked)
}

func Test_commandLine_credentials(t *testing.T) {
	f := setup(t)
	f.bot.ValidTokens = []string{"4242:good"}

	type extra struct {
		token string
	}
	tests := []cliTest{
		{name: "empty token", args: []string{"activatecredential"}, wantErr: errHelp},
		{name: "rejected token", args: []string{"activatecredential"}, extra: extra{token: "4242:bad"}, wantErr: core.ErrInvalidCredential},
		{name: "valid token", args: []string{"activatecredential"}, extra: extra{token: "4242:good"}},
		{name: "insecure webhook url", args: []string{"setwebhook", "-url", "ftp://api.example.com"}, wantErr: credential.ErrInvalidPublicURL},
		{name: "webhook", args: []string{"setwebhook", "-url", "https://api.example.com/"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.token), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := f.cli.run(args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			assert.NoError(t, err)
		})
	}

	cred, err := f.cli.creds.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4242:good", cred.Token)
	assert.Equal(t, []string{"https://api.example.com/webhook"}, f.bot.Webhooks())
}

func Test_commandLine_token(t *testing.T) {
	f := setup(t)

	err := f.cli.run([]string{"admin", "token", "-subject", "staff-1", "-role", "janitor"})
	assert.Equal(t, errUnknownRole, errors.Cause(err))

	require.NoError(t, f.cli.run([]string{"admin", "token", "-subject", "staff-1", "-name", "Ms. Reyes", "-role", "Instructor,admin"}))

	claims := new(echoapi.Claims)
	_, err = jwt.ParseWithClaims(strings.TrimSpace(f.out.String()), claims, func(*jwt.Token) (interface{}, error) {
		return []byte(f.cli.conf.SecretKey), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "staff-1", claims.Subject)
	assert.Equal(t, "Ms. Reyes", claims.Name)
	assert.Equal(t, []string{echoapi.RoleInstructor, echoapi.RoleAdmin}, claims.Roles)
}
