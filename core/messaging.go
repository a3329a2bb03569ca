package core

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrInvalidCredential   = errors.New("bot credential rejected by the provider")
	ErrProviderUnreachable = errors.New("messaging provider unreachable")
)

// Undeliverable reasons
const (
	ReasonNoCredential = "no_credential"
	ReasonTimeout      = "timeout"
	ReasonUnreachable  = "unreachable"
	ReasonBlocked      = "blocked"
	ReasonChatNotFound = "chat_not_found"
	ReasonRateLimited  = "rate_limited"
	ReasonRejected     = "rejected"
	ReasonCircuitOpen  = "circuit_open"
)

type (
	// Delivery is the result of a single outbound send. A failed send is never an error.
	Delivery struct {
		Delivered bool
		Reason    string // set when !Delivered
	}

	// BotIdentity is what the provider reports for a valid credential.
	BotIdentity struct {
		ID       int64
		Username string
	}

	// Messenger sends text messages to a channel (chat) id.
	Messenger interface {
		Send(ctx context.Context, channelID, text string) Delivery
	}

	// BotGateway is the full provider surface.
	BotGateway interface {
		Messenger
		VerifyCredential(ctx context.Context, token string) (BotIdentity, error)
		RegisterWebhook(ctx context.Context, url, secret string) error
	}
)

func Delivered() Delivery {
	return Delivery{Delivered: true}
}

func Undeliverable(reason string) Delivery {
	return Delivery{Reason: reason}
}
