package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendCancellationCompleted(toEmail, provider, confirmationCode string) error
	SendCancellationFailed(toEmail, provider, reason string) error
	SendActionRequired(toEmail, provider, instructions string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
}

func NewEmailService(host string, port int, username, password, senderEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
	}
}

func (s *emailService) SendCancellationCompleted(toEmail, provider, confirmationCode string) error {
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Your %s subscription is cancelled</h2>
			<p>We confirmed the cancellation with the provider.</p>
			<p>Confirmation code:</p>
			<h1 style="color: #4CAF50; letter-spacing: 3px;">%s</h1>
			<p>Keep this code in case the provider keeps billing you.</p>
		</div>
	`, provider, confirmationCode)

	return s.send(toEmail, fmt.Sprintf("%s cancellation confirmed", provider), body)
}

func (s *emailService) SendCancellationFailed(toEmail, provider, reason string) error {
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>We could not cancel %s automatically</h2>
			<p>%s</p>
			<p>You can retry from the app, or cancel directly with the provider.</p>
		</div>
	`, provider, reason)

	return s.send(toEmail, fmt.Sprintf("%s cancellation failed", provider), body)
}

func (s *emailService) SendActionRequired(toEmail, provider, instructions string) error {
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>One more step to cancel %s</h2>
			<p>The provider needs you to finish the cancellation yourself:</p>
			<pre style="background: #f5f5f5; padding: 12px; white-space: pre-wrap;">%s</pre>
			<p>Once done, confirm the result in the app so we can close the request.</p>
		</div>
	`, provider, instructions)

	return s.send(toEmail, fmt.Sprintf("Action needed to cancel %s", provider), body)
}

func (s *emailService) send(toEmail, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send %q to %s: %v\n", subject, toEmail, err)
		return err
	}

	return nil
}
