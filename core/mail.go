package core

import "net/mail"

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Subject string
		BodyStr string // simple text/plain content
		HTML    string // optional text/html alternative

		// Category groups messages in the provider's statistics (eg. "gap-report").
		Category string
		// Tags are attached to the message as provider custom args.
		Tags map[string]string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.BodyStr != "" || m.HTML != "" }
