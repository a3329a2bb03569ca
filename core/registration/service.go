package registration

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/channel"
	"github.com/DexterJames00/EduTrack360/core/school"
)

// Outcome is the result of handling one inbound message.
type Outcome int

const (
	Ignored Outcome = iota // no chat to reply to
	Help
	Linked
	AlreadyLinked
	ConflictOtherChannel
	ChannelTaken
	NotFound
	Malformed
	Ambiguous
	InvalidLink
	Failed
)

var outcomeNames = map[Outcome]string{
	Ignored:              "ignored",
	Help:                 "help",
	Linked:               "linked",
	AlreadyLinked:        "already_linked",
	ConflictOtherChannel: "conflict_other_channel",
	ChannelTaken:         "channel_taken",
	NotFound:             "not_found",
	Malformed:            "malformed",
	Ambiguous:            "ambiguous",
	InvalidLink:          "invalid_link",
	Failed:               "failed",
}

func (o Outcome) String() string {
	return outcomeNames[o]
}

type (
	// Message is an inbound text message from a chat.
	Message struct {
		ChatID string
		Text   string
	}

	Resolver interface {
		Resolve(ctx context.Context, raw string) (school.Resolution, error)
		ResolveDeepLink(ctx context.Context, payload string) (school.Resolution, error)
	}

	Directory interface {
		Link(ctx context.Context, studentID, channelID string) (channel.LinkResult, error)
	}

	Service struct {
		appName   string
		resolver  Resolver
		directory Directory
		messenger core.Messenger
		logger    core.Logger
	}
)

func NewService(appName string, resolver Resolver, directory Directory, messenger core.Messenger, logger core.Logger) *Service {
	return &Service{
		appName:   appName,
		resolver:  resolver,
		directory: directory,
		messenger: messenger,
		logger:    logger,
	}
}

// HandleMessage classifies msg, links the chat when it carries valid codes and sends exactly one reply.
// Failures are turned into a reply and the Failed outcome; they are logged, not returned.
func (svc *Service) HandleMessage(ctx context.Context, msg Message) Outcome {
	if msg.ChatID == "" {
		return Ignored
	}

	outcome, reply := svc.handle(ctx, msg)
	if d := svc.messenger.Send(ctx, msg.ChatID, reply); !d.Delivered {
		svc.logger.Warn(
			fmt.Sprintf("registration reply to chat %s not delivered: %s", msg.ChatID, d.Reason),
			map[string]interface{}{"outcome": outcome.String()},
		)
	}
	return outcome
}

func (svc *Service) handle(ctx context.Context, msg Message) (Outcome, string) {
	intent, payload := Classify(msg.Text)

	var (
		res school.Resolution
		err error
	)
	switch intent {
	case IntentRegisterDeepLink:
		res, err = svc.resolver.ResolveDeepLink(ctx, payload)
	case IntentRegisterText:
		res, err = svc.resolver.Resolve(ctx, msg.Text)
	default:
		return Help, helpReply(svc.appName)
	}

	switch errors.Cause(err) {
	case nil:
	case school.ErrSchoolNotFound, school.ErrStudentNotFound:
		return NotFound, notFoundReply(res)
	case school.ErrMalformedCodes:
		return Malformed, malformedReply()
	case school.ErrAmbiguousCodes:
		return Ambiguous, ambiguousReply()
	case school.ErrInvalidDeepLink:
		return InvalidLink, invalidLinkReply()
	default:
		svc.logger.Error("resolving registration codes", err)
		return Failed, failedReply()
	}

	result, err := svc.directory.Link(ctx, res.Student.ID, msg.ChatID)
	if err != nil {
		svc.logger.Error("linking channel", err, map[string]interface{}{"student_id": res.Student.ID})
		return Failed, failedReply()
	}

	switch result {
	case channel.Linked:
		svc.logger.Info(fmt.Sprintf("student %s linked to chat %s", res.Student.ID, msg.ChatID))
		return Linked, linkedReply(res)
	case channel.AlreadyLinked:
		return AlreadyLinked, alreadyLinkedReply(res)
	case channel.ConflictOtherChannel:
		return ConflictOtherChannel, conflictOtherChannelReply(res)
	case channel.ConflictChannelTaken:
		return ChannelTaken, channelTakenReply()
	default:
		svc.logger.Error(fmt.Sprintf("unexpected link result: %s", result))
		return Failed, failedReply()
	}
}
