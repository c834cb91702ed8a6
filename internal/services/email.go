package services

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
)

type EmailService interface {
	SendExport(ctx context.Context, toEmail string, filename string, csvData []byte, rows int) error
}

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type emailService struct {
	log       *logger.Logger
	client    mailSender
	fromEmail string
}

func NewEmailService(log *logger.Logger, apiKey string, fromEmail string) (EmailService, error) {
	serviceLog := log.With("service", "EmailService")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing SENDGRID_API_KEY", errs.ErrExportUnavailable)
	}
	if fromEmail == "" {
		serviceLog.Warn("SENDGRID_EXPORT_EMAIL not set; using fallback no-reply@gemini-chat.local")
		fromEmail = "no-reply@gemini-chat.local"
	}
	return newEmailService(serviceLog, sendgrid.NewSendClient(apiKey), fromEmail), nil
}

func newEmailService(log *logger.Logger, client mailSender, fromEmail string) *emailService {
	return &emailService{log: log, client: client, fromEmail: fromEmail}
}

// SendExport mails csvData to toEmail as an attachment.
func (es *emailService) SendExport(ctx context.Context, toEmail string, filename string, csvData []byte, rows int) error {
	from := mail.NewEmail("Gemini Chat", es.fromEmail)
	to := mail.NewEmail("", toEmail)
	subject := "Your chat history export"
	plain := fmt.Sprintf("Attached are your %d most recent exchanges.", rows)
	html := fmt.Sprintf("<p>Attached are your <strong>%d</strong> most recent exchanges.</p>", rows)
	message := mail.NewSingleEmail(from, subject, to, plain, html)

	attachment := mail.NewAttachment()
	attachment.SetContent(base64.StdEncoding.EncodeToString(csvData))
	attachment.SetType("text/csv")
	attachment.SetFilename(filename)
	attachment.SetDisposition("attachment")
	message.AddAttachment(attachment)

	response, err := es.client.SendWithContext(ctx, message)
	if err != nil {
		es.log.Warn("Sendgrid email send failed", "error", err)
		return err
	}
	if response.StatusCode >= 300 {
		es.log.Warn("Sendgrid rejected email", "statusCode", response.StatusCode, "body", response.Body)
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}
	es.log.Info("Export email sent", "to", toEmail, "statusCode", response.StatusCode)
	return nil
}
