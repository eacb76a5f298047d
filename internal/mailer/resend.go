package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/resend/resend-go/v2"

	pkglogger "github.com/stockify/contact-api/pkg/logger"
)

// ResendTransport sends emails through the Resend API.
type ResendTransport struct {
	client      *resend.Client
	fromAddress string
	fromName    string
	logger      *slog.Logger
}

// NewResendTransport creates a Resend-backed transport.
func NewResendTransport(apiKey, fromAddress, fromName string, logger *slog.Logger) *ResendTransport {
	return &ResendTransport{
		client:      resend.NewClient(apiKey),
		fromAddress: fromAddress,
		fromName:    fromName,
		logger:      logger,
	}
}

// Send delivers the message to one recipient.
func (t *ResendTransport) Send(ctx context.Context, recipient string, msg *Message) error {
	params := &resend.SendEmailRequest{
		From:    t.from(),
		To:      []string{recipient},
		Subject: msg.Subject,
		Html:    msg.HTMLBody,
		Text:    msg.TextBody,
	}

	for _, att := range msg.Attachments {
		if att.Filename == "" || len(att.Content) == 0 {
			return Permanent(fmt.Errorf("attachment missing filename or content"))
		}
		params.Attachments = append(params.Attachments, &resend.Attachment{
			Filename:    att.Filename,
			Content:     att.Content,
			ContentType: att.ContentType,
		})
	}

	sent, err := t.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return classifyResendError(err)
	}

	t.logger.Info("email sent via resend",
		slog.String("recipient", pkglogger.MaskEmail(recipient)),
		slog.String("message_id", sent.Id))
	return nil
}

func (t *ResendTransport) from() string {
	if t.fromName == "" {
		return t.fromAddress
	}
	return fmt.Sprintf("%s <%s>", t.fromName, t.fromAddress)
}

// classifyResendError maps Resend API failures onto the
// transient/permanent taxonomy. The API reports validation and
// rejection errors with 4xx semantics; throttling and server errors
// are retryable.
func classifyResendError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(err)
	}

	message := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "too many requests", "500", "502", "503", "internal server"} {
		if strings.Contains(message, marker) {
			return Transient(err)
		}
	}

	return Permanent(err)
}
