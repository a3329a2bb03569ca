package testutil

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/school"
	"github.com/DexterJames00/EduTrack360/storage/database"
)

// NewConfig returns a test configuration backed by an in-memory sqlite database.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Debug = false
	conf.Database.Engine = core.EngineSQLite
	conf.Database.Name = ":memory:"
	conf.Bot.WebhookSecret = "s3cr3t"
	return conf
}

// PrepareDB opens a fresh, migrated in-memory database closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.Open(NewConfig())
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	return db
}

func CreateSchool(t *testing.T, repo school.Repository, code, name string) school.School {
	t.Helper()

	sch, err := repo.CreateSchool(context.Background(), school.School{
		ID:   uuid.NewString(),
		Code: core.NormalizeCode(code),
		Name: name,
	})
	if err != nil {
		t.Fatalf("createSchool() failed: %v", err)
	}
	return sch
}

func CreateStudent(t *testing.T, repo school.Repository, sch school.School, code, firstName, lastName string) school.Student {
	t.Helper()

	std, err := repo.CreateStudent(context.Background(), school.Student{
		ID:         uuid.NewString(),
		SchoolID:   sch.ID,
		Code:       core.NormalizeCode(code),
		FirstName:  firstName,
		LastName:   lastName,
		GradeLevel: "7",
	})
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return std
}

type SentMessage struct {
	ChannelID string
	Text      string
}

// Bot is an in-process core.BotGateway recording everything it is asked to do.
type Bot struct {
	mu sync.Mutex

	// Failures maps a channel id to the reason its sends fail with.
	Failures map[string]string
	// ValidTokens lists the tokens VerifyCredential accepts; any non-empty token when nil.
	ValidTokens []string
	Unreachable bool

	sent     []SentMessage
	webhooks []string
}

var _ core.BotGateway = (*Bot)(nil)

func NewBot() *Bot {
	return &Bot{Failures: make(map[string]string)}
}

func (b *Bot) Send(_ context.Context, channelID, text string) core.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sent = append(b.sent, SentMessage{ChannelID: channelID, Text: text})
	if reason, ok := b.Failures[channelID]; ok {
		return core.Undeliverable(reason)
	}
	return core.Delivered()
}

func (b *Bot) VerifyCredential(_ context.Context, token string) (core.BotIdentity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Unreachable {
		return core.BotIdentity{}, core.ErrProviderUnreachable
	}
	valid := token != ""
	if b.ValidTokens != nil {
		valid = false
		for _, tok := range b.ValidTokens {
			if tok == token {
				valid = true
				break
			}
		}
	}
	if !valid {
		return core.BotIdentity{}, core.ErrInvalidCredential
	}
	id, _ := strconv.ParseInt(strings.SplitN(token, ":", 2)[0], 10, 64)
	return core.BotIdentity{ID: id, Username: "edutrack_" + strconv.FormatInt(id, 10) + "_bot"}, nil
}

func (b *Bot) RegisterWebhook(_ context.Context, url, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Unreachable {
		return core.ErrProviderUnreachable
	}
	b.webhooks = append(b.webhooks, url)
	return nil
}

// Sent returns a copy of the messages sent so far.
func (b *Bot) Sent() []SentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SentMessage(nil), b.sent...)
}

// SentTo returns the texts sent to channelID.
func (b *Bot) SentTo(channelID string) []string {
	var texts []string
	for _, msg := range b.Sent() {
		if msg.ChannelID == channelID {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

func (b *Bot) Webhooks() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.webhooks...)
}
