package mailer

import (
	"fmt"
	"html"
	"time"

	"github.com/stockify/contact-api/internal/models"
)

// OTPMessage builds the verification email carrying the one-time code.
func OTPMessage(contact models.ContactData, code string, ttl time.Duration) *Message {
	name := html.EscapeString(contact.Name)
	minutes := int(ttl.Minutes())

	htmlBody := fmt.Sprintf(`
<div style="font-family: 'Segoe UI', Tahoma, sans-serif; max-width: 600px; margin: auto; padding: 24px; background-color: #ffffff; border: 1px solid #e0e0e0; border-radius: 8px;">
    <h2 style="color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 10px;">Verification Code</h2>
    <p style="font-size: 16px; color: #34495e;">Hi <strong>%s</strong>,</p>
    <p style="font-size: 15px; color: #555;">Please use the following one-time passcode to verify your email address:</p>
    <div style="background-color: #f2f6fc; padding: 16px; border: 2px dashed #3498db; border-radius: 6px; text-align: center; margin: 20px 0;">
        <span style="font-size: 28px; color: #2c3e50; font-weight: bold; letter-spacing: 4px;">%s</span>
    </div>
    <p style="font-size: 14px; color: #7f8c8d;">This code is valid for the next <strong>%d minutes</strong>.</p>
    <p style="font-size: 14px; color: #7f8c8d;">If you didn't request this verification, you can safely ignore this email.</p>
    <hr style="margin: 30px 0;">
    <p style="font-size: 12px; color: #bdc3c7;">This is an automated message. Please do not reply.</p>
</div>`, name, code, minutes)

	textBody := fmt.Sprintf(`Hi %s,

Your verification code is: %s

This code is valid for the next %d minutes.

If you didn't request this verification, you can safely ignore this email.

This is an automated message. Please do not reply.
`, contact.Name, code, minutes)

	return &Message{
		Subject:  fmt.Sprintf("Verification Code - %s", contact.Subject),
		HTMLBody: htmlBody,
		TextBody: textBody,
	}
}

// ConfirmationMessage builds the thank-you email sent to the submitter
// after a verified submission.
func ConfirmationMessage(contact models.ContactData) *Message {
	name := html.EscapeString(contact.Name)
	message := html.EscapeString(contact.Message)

	htmlBody := fmt.Sprintf(`
<div style="font-family: 'Segoe UI', Tahoma, sans-serif; color: #2c3e50; line-height: 1.6; max-width: 600px; margin: auto; padding: 20px; border: 1px solid #e0e0e0; border-radius: 10px; background-color: #f9f9f9;">
    <h2 style="color: #2980b9; border-bottom: 2px solid #2980b9; padding-bottom: 10px;">Thank You for Contacting Us!</h2>
    <p>Hi <strong>%s</strong>,</p>
    <p>We've received your message and our support team will get back to you within <strong>24-48 hours</strong>.</p>
    <div style="background-color: #ffffff; padding: 15px; border-left: 4px solid #3498db; margin: 20px 0;">
        <p style="margin: 0;"><strong>Your message:</strong></p>
        <p style="margin: 5px 0 0;">%s</p>
    </div>
    <p>If your matter is urgent, feel free to reply to this email.</p>
    <p style="margin-top: 10px;"><strong>— Support Team</strong></p>
</div>`, name, message)

	textBody := fmt.Sprintf(`Hi %s,

We've received your message and our support team will get back to you within 24-48 hours.

Your message:
%s

If your matter is urgent, feel free to reply to this email.

— Support Team
`, contact.Name, contact.Message)

	return &Message{
		Subject:  "Thank you for contacting us",
		HTMLBody: htmlBody,
		TextBody: textBody,
	}
}

// AdminNotificationMessage builds the notification email sent to the
// administrator list for a verified submission.
func AdminNotificationMessage(contact models.ContactData) *Message {
	company := contact.Company
	if company == "" {
		company = "Not provided"
	}

	htmlBody := fmt.Sprintf(`
<div style="font-family: 'Segoe UI', Tahoma, sans-serif; max-width: 600px; margin: auto; padding: 20px; background-color: #fefefe; border: 1px solid #ddd; border-radius: 10px; color: #2c3e50;">
    <h2 style="color: #c0392b; border-bottom: 2px solid #c0392b; padding-bottom: 10px;">New Contact Form Submission</h2>
    <table style="width: 100%%; border-collapse: collapse;">
        <tr><td style="padding: 8px 0;"><strong>Name:</strong></td><td style="padding: 8px 0;">%s</td></tr>
        <tr style="background-color: #f9f9f9;"><td style="padding: 8px 0;"><strong>Email:</strong></td><td style="padding: 8px 0;">%s</td></tr>
        <tr><td style="padding: 8px 0;"><strong>Phone:</strong></td><td style="padding: 8px 0;">%s</td></tr>
        <tr style="background-color: #f9f9f9;"><td style="padding: 8px 0;"><strong>Company:</strong></td><td style="padding: 8px 0;">%s</td></tr>
        <tr><td style="padding: 8px 0; vertical-align: top;"><strong>Message:</strong></td><td style="padding: 8px 0; white-space: pre-wrap;">%s</td></tr>
    </table>
    <p style="margin-top: 20px; font-size: 12px; color: #999;">This message was automatically generated from the contact form.</p>
</div>`,
		html.EscapeString(contact.Name),
		html.EscapeString(contact.Email),
		html.EscapeString(contact.Phone),
		html.EscapeString(company),
		html.EscapeString(contact.Message))

	textBody := fmt.Sprintf(`New contact form submission

Name:    %s
Email:   %s
Phone:   %s
Company: %s

Message:
%s
`, contact.Name, contact.Email, contact.Phone, company, contact.Message)

	return &Message{
		Subject:  fmt.Sprintf("New Contact: %s", contact.Subject),
		HTMLBody: htmlBody,
		TextBody: textBody,
	}
}
