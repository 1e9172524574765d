package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"scilems/models"

	"gopkg.in/gomail.v2"
)

const (
	subjectApproved = "SCILEMS - Your Borrow Request Has Been Approved"
	subjectBorrowed = "SCILEMS - Items Successfully Borrowed"
	subjectRejected = "SCILEMS - Borrow Request Update"
	subjectOverdue  = "SCILEMS - Item Return Overdue"

	mailDateLayout = "January 2, 2006"
)

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	CC       []string
}

// Mailer sends the lending emails over SMTP.
type Mailer struct {
	from   string
	cc     []string
	dialer *gomail.Dialer
	// sender overrides the dialer when set.
	sender gomail.Sender
	loc    *time.Location
}

func NewMailer(cfg MailConfig, loc *time.Location) *Mailer {
	if loc == nil {
		loc = time.Local
	}
	return &Mailer{
		from:   cfg.From,
		cc:     cfg.CC,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		loc:    loc,
	}
}

func (m *Mailer) SendEmail(to, subject, text, html string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, "SCILEMS Support")
	msg.SetHeader("To", to)
	if len(m.cc) > 0 {
		msg.SetHeader("Cc", m.cc...)
	}
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	if html != "" {
		msg.AddAlternative("text/html", html)
	}

	if m.sender != nil {
		return gomail.Send(m.sender, msg)
	}
	return m.dialer.DialAndSend(msg)
}

func (m *Mailer) SendApproved(to, name, txnID string, items []models.BorrowedItem, pickUpDate *time.Time) error {
	data := mailData{
		Name:    name,
		TxnID:   txnID,
		Items:   lines(items),
		Date:    m.date(pickUpDate, "To be determined"),
		Heading: "Request Approved!",
		Intro:   "Great news! Your borrow request has been approved.",
		Note:    "Please make sure to pick up your items on the scheduled date. If you need to reschedule, please contact our support team.",
		DateKey: "Pick-up Date",
	}
	return m.render(to, subjectApproved, data)
}

func (m *Mailer) SendBorrowed(to, name, txnID string, items []models.BorrowedItem, returnDate *time.Time) error {
	due := m.date(returnDate, "the agreed date")
	data := mailData{
		Name:    name,
		TxnID:   txnID,
		Items:   lines(items),
		Date:    due,
		Heading: "Items Successfully Borrowed!",
		Intro:   "Your items have been successfully borrowed from SCILEMS!",
		Note:    fmt.Sprintf("Please return all items by %s to avoid any late fees or penalties.", due),
		DateKey: "Return Date",
	}
	return m.render(to, subjectBorrowed, data)
}

func (m *Mailer) SendRejected(to, name, txnID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "No specific reason provided"
	}
	data := mailData{
		Name:    name,
		TxnID:   txnID,
		Heading: "Borrow Request Update",
		Intro:   "We regret to inform you that your borrow request could not be approved at this time.",
		Note:    "Reason: " + reason,
	}
	return m.render(to, subjectRejected, data)
}

func (m *Mailer) SendOverdue(to, name, txnID string, dueDate *time.Time) error {
	data := mailData{
		Name:    name,
		TxnID:   txnID,
		Date:    m.date(dueDate, "its due date"),
		Heading: "Return Overdue",
		Intro:   "The items you borrowed from SCILEMS are past their return date.",
		Note:    "Please return them as soon as possible or contact our support team.",
		DateKey: "Due Date",
	}
	return m.render(to, subjectOverdue, data)
}

func (m *Mailer) date(t *time.Time, fallback string) string {
	if t == nil || t.IsZero() {
		return fallback
	}
	return t.In(m.loc).Format(mailDateLayout)
}

type mailLine struct {
	Name     string
	Quantity int
}

type mailData struct {
	Name    string
	TxnID   string
	Items   []mailLine
	DateKey string
	Date    string
	Heading string
	Intro   string
	Note    string
}

func lines(items []models.BorrowedItem) []mailLine {
	out := make([]mailLine, 0, len(items))
	for _, it := range items {
		name := it.Name
		if name == "" {
			name = "Equipment Item"
		}
		out = append(out, mailLine{Name: name, Quantity: it.Quantity})
	}
	return out
}

var htmlBody = template.Must(template.New("mail").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #e0e0e0; border-radius: 5px;">
<h2 style="text-align: center; color: #333;">{{.Heading}}</h2>
<p>Hello <strong>{{.Name}}</strong>,</p>
<p>{{.Intro}}</p>
<div style="background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
<p><strong>Transaction ID:</strong> {{.TxnID}}</p>
{{- if .DateKey}}
<p><strong>{{.DateKey}}:</strong> {{.Date}}</p>
{{- end}}
</div>
{{- if .Items}}
<ul style="background-color: #f9f9f9; padding: 15px; border-radius: 5px;">
{{- range .Items}}
<li>{{.Name}} <strong>(Quantity: {{.Quantity}})</strong></li>
{{- end}}
</ul>
{{- end}}
<p>{{.Note}}</p>
<p style="text-align: center; font-size: 12px; color: #666;">This is an automated message, please do not reply to this email.</p>
</div>`))

func (m *Mailer) render(to, subject string, d mailData) error {
	var text strings.Builder
	fmt.Fprintf(&text, "Hello %s,\n\n%s\n\nTransaction ID: %s\n", d.Name, d.Intro, d.TxnID)
	if d.DateKey != "" {
		fmt.Fprintf(&text, "%s: %s\n", d.DateKey, d.Date)
	}
	if len(d.Items) > 0 {
		text.WriteString("\nItems:\n")
		for _, it := range d.Items {
			fmt.Fprintf(&text, "- %s (Quantity: %d)\n", it.Name, it.Quantity)
		}
	}
	fmt.Fprintf(&text, "\n%s\n\nThank you for using SCILEMS!\n", d.Note)

	var html bytes.Buffer
	if err := htmlBody.Execute(&html, d); err != nil {
		return fmt.Errorf("render %q: %w", subject, err)
	}
	return m.SendEmail(to, subject, text.String(), html.String())
}
