package emailsvc

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/DexterJames00/EduTrack360/core"
)

const (
	sendEndpoint       = "/v3/mail/send"
	defaultSendTimeout = 15 * time.Second
)

// sendgridService delivers operator emails (dispatch gap reports) through the SendGrid v3 API.
type sendgridService struct {
	key        string
	host       string
	from       *sgmail.Email
	replyTo    *sgmail.Email
	subjPrefix string
	timeout    time.Duration
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *sendgridService {
	from := conf.Email.FromAddress()
	svc := &sendgridService{
		key:        conf.Email.SendgridApiKey,
		host:       conf.Email.SendgridHost,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		timeout:    conf.Email.SendTimeout,
		logger:     logger,
	}
	if svc.host == "" {
		svc.host = "https://api.sendgrid.com"
	}
	if svc.timeout <= 0 {
		svc.timeout = defaultSendTimeout
	}
	if addr := conf.Email.ReplyToAddress(); addr != nil {
		svc.replyTo = toSGEmail(*addr)
	}
	return svc
}

// SendMessages sends each message in its own goroutine; failures are logged.
func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if msg == nil || !msg.HasRecipients() || !msg.HasContent() {
			continue
		}
		go func(msg core.EmailMessage) {
			ctx, cancel := context.WithTimeout(context.Background(), svc.timeout)
			defer cancel()
			if err := svc.send(ctx, msg); err != nil {
				svc.logger.Error(fmt.Sprintf("sending email %q", msg.Subject), err)
			}
		}(*msg)
	}
}

func (svc *sendgridService) build(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(toSGEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(toSGEmail(cc))
	}
	for k, v := range msg.Tags {
		p.SetCustomArg(k, v)
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	if svc.replyTo != nil {
		m.SetReplyTo(svc.replyTo)
	}
	m.AddPersonalizations(p)
	if msg.Category != "" {
		m.AddCategories(msg.Category)
	}
	if msg.BodyStr != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.BodyStr))
	}
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

func (svc *sendgridService) send(ctx context.Context, msg core.EmailMessage) error {
	req := sendgrid.GetRequest(svc.key, sendEndpoint, svc.host)
	req.Method = rest.Post
	req.Body = sgmail.GetRequestBody(svc.build(msg))

	// retries on 429 using the provider's rate limit reset
	res, err := sendgrid.MakeRequestRetryWithContext(ctx, req)
	if err != nil {
		return errors.Wrap(err, "posting to sendgrid")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	svc.logger.Debug(fmt.Sprintf("email %q accepted for %d recipient(s)", msg.Subject, len(msg.To)+len(msg.Cc)))
	return nil
}

func toSGEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}
