package mailer

import (
	"fmt"
	"os"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendFeedbackRequest(toEmail, runID, constructName string, revision int) error
	SendRunFinished(toEmail, runID, constructName, status string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	frontendURL string // Added to construct links
}

func NewEmailService(host string, port int, username, password, senderEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	// Get Frontend URL from ENV or default to a safe placeholder
	frontendURL := os.Getenv("FRONTEND_URL")

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		frontendURL: frontendURL,
	}
}

func (s *emailService) SendFeedbackRequest(toEmail, runID, constructName string, revision int) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Your item generation run is waiting for feedback")

	// Construct the clickable link pointing to the FRONTEND
	reviewLink := fmt.Sprintf("%s/runs/%s", s.frontendURL, runID)

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Feedback Requested</h2>
			<p>Your item generation run for <b>%s</b> (round %d) has finished its review pass and is waiting for your feedback.</p>
			<a href="%s" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Review Items</a>
			<p>Or copy this link:</p>
			<p>%s</p>
			<p>The run stays suspended until you respond or cancel it.</p>
		</div>
	`, constructName, revision, reviewLink, reviewLink)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send feedback request to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Feedback request sent to %s\n", toEmail)
	return nil
}

func (s *emailService) SendRunFinished(toEmail, runID, constructName, status string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("Item generation run %s", status))

	resultLink := fmt.Sprintf("%s/runs/%s", s.frontendURL, runID)

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Run %s</h2>
			<p>Your item generation run for <b>%s</b> has finished with status <b>%s</b>.</p>
			<a href="%s" style="background-color: #4CAF50; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">View Results</a>
			<p>Or copy this link:</p>
			<p>%s</p>
		</div>
	`, status, constructName, status, resultLink, resultLink)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send run finished mail to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Run finished mail sent to %s\n", toEmail)
	return nil
}
