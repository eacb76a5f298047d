package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/stockify/contact-api/pkg/logger"
)

// SESTransport sends emails using AWS SES.
type SESTransport struct {
	client      *ses.Client
	fromAddress string
	fromName    string
	logger      *slog.Logger
}

// NewSESTransport creates an SES-backed transport.
func NewSESTransport(region, fromAddress, fromName string, logger *slog.Logger) (*SESTransport, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESTransport{
		client:      ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		fromName:    fromName,
		logger:      logger,
	}, nil
}

// Send delivers the message to one recipient. Messages with attachments
// go through SendRawEmail since the structured SendEmail API does not
// support them.
func (t *SESTransport) Send(ctx context.Context, recipient string, msg *Message) error {
	var (
		messageID string
		err       error
	)
	if len(msg.Attachments) > 0 {
		messageID, err = t.sendRaw(ctx, recipient, msg)
	} else {
		messageID, err = t.sendSimple(ctx, recipient, msg)
	}
	if err != nil {
		return classifySESError(err)
	}

	t.logger.Info("email sent via SES",
		slog.String("recipient", pkglogger.MaskEmail(recipient)),
		slog.String("message_id", messageID))
	return nil
}

func (t *SESTransport) sendSimple(ctx context.Context, recipient string, msg *Message) (string, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(t.source()),
		Destination: &types.Destination{
			ToAddresses: []string{recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(msg.Subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(msg.HTMLBody),
				},
				Text: &types.Content{
					Data: aws.String(msg.TextBody),
				},
			},
		},
	}

	result, err := t.client.SendEmail(ctx, input)
	if err != nil {
		return "", err
	}
	return aws.ToString(result.MessageId), nil
}

func (t *SESTransport) sendRaw(ctx context.Context, recipient string, msg *Message) (string, error) {
	raw, err := buildRawMessage(t.source(), recipient, msg)
	if err != nil {
		// Malformed attachments never succeed on retry
		return "", Permanent(err)
	}

	result, err := t.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		Source:       aws.String(t.source()),
		Destinations: []string{recipient},
		RawMessage:   &types.RawMessage{Data: raw},
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(result.MessageId), nil
}

func (t *SESTransport) source() string {
	if t.fromName == "" {
		return t.fromAddress
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", t.fromName), t.fromAddress)
}

// buildRawMessage assembles an RFC 2822 multipart/mixed message with an
// alternative text/html part followed by base64-encoded attachments.
func buildRawMessage(from, to string, msg *Message) ([]byte, error) {
	var buf bytes.Buffer

	const mixedBoundary = "mixed-2f1c9a7e"
	const altBoundary = "alt-8b3d41f0"

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mixedBoundary)

	fmt.Fprintf(&buf, "--%s\r\n", mixedBoundary)
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", altBoundary)

	fmt.Fprintf(&buf, "--%s\r\n", altBoundary)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(msg.TextBody)
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", altBoundary)
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	buf.WriteString(msg.HTMLBody)
	buf.WriteString("\r\n")
	fmt.Fprintf(&buf, "--%s--\r\n", altBoundary)

	for _, att := range msg.Attachments {
		if att.Filename == "" || len(att.Content) == 0 {
			return nil, fmt.Errorf("attachment missing filename or content")
		}
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		fmt.Fprintf(&buf, "--%s\r\n", mixedBoundary)
		fmt.Fprintf(&buf, "Content-Type: %s\r\n", contentType)
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n\r\n", att.Filename)

		encoded := base64.StdEncoding.EncodeToString(att.Content)
		for len(encoded) > 76 {
			buf.WriteString(encoded[:76])
			buf.WriteString("\r\n")
			encoded = encoded[76:]
		}
		buf.WriteString(encoded)
		buf.WriteString("\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", mixedBoundary)

	return buf.Bytes(), nil
}

// classifySESError maps SES failures onto the transient/permanent
// taxonomy. Modeled rejections cannot succeed on retry; throttling and
// network failures can.
func classifySESError(err error) error {
	if IsPermanent(err) || err == nil {
		return err
	}

	var (
		rejected        *types.MessageRejected
		domainNotVerif  *types.MailFromDomainNotVerifiedException
		missingConfig   *types.ConfigurationSetDoesNotExistException
		sendingPaused   *types.AccountSendingPausedException
		cfgSendingPause *types.ConfigurationSetSendingPausedException
	)
	switch {
	case errors.As(err, &rejected),
		errors.As(err, &domainNotVerif),
		errors.As(err, &missingConfig),
		errors.As(err, &sendingPaused),
		errors.As(err, &cfgSendingPause):
		return Permanent(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(err)
	}

	// Throttling, 5xx and anything unmodeled: worth retrying
	return Transient(err)
}
