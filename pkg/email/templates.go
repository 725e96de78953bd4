package email

import (
	"fmt"
	"html"
	"strings"
)

// BookingEmailData carries what the booking outcome emails show.
type BookingEmailData struct {
	RecipientName     string
	RecipientEmail    string
	BookingRef        string
	CompanyName       string
	OfficeName        string
	AppointmentDate   string
	FailureKind       string
	ExportArtifactURL string
	// Link is the outcome page the intake UI redirects to.
	Link string
}

// BuildBookingConfirmedEmail is sent once a booking request is accepted.
func BuildBookingConfirmedEmail(cfg Config, data BookingEmailData) Message {
	name := firstNonEmpty(data.RecipientName, "there")
	date := firstNonEmpty(data.AppointmentDate, "to be scheduled")

	subject := fmt.Sprintf("Booking %s received", data.BookingRef)

	textBody := fmt.Sprintf(`Hi %s,

Your health check booking request has been received.

Reference: %s
Company: %s
Office: %s
Appointment date: %s

You can view the booking here:
%s

Thanks,
The %s Team`,
		name, data.BookingRef, data.CompanyName, data.OfficeName, date, data.Link, cfg.AppName)

	rows := [][2]string{
		{"Reference", data.BookingRef},
		{"Company", data.CompanyName},
		{"Office", data.OfficeName},
		{"Appointment date", date},
	}
	htmlBody := layout(cfg, name, "Your health check booking request has been received.", rows, data.Link, "View booking")

	return Message{
		To:         []string{data.RecipientEmail},
		ReplyTo:    cfg.SupportEmail,
		Subject:    subject,
		TextBody:   textBody,
		HTMLBody:   htmlBody,
		BookingRef: data.BookingRef,
	}
}

// BuildBookingFailedEmail is sent when a submission ends in failure. The
// draft is kept, so the link lets the user retry.
func BuildBookingFailedEmail(cfg Config, data BookingEmailData) Message {
	name := firstNonEmpty(data.RecipientName, "there")

	subject := fmt.Sprintf("%s booking could not be submitted", cfg.AppName)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "We could not submit your health check booking for %s (%s).\n", data.OfficeName, data.CompanyName)
	b.WriteString("Your details have been kept and you can retry from the link below:\n")
	b.WriteString(data.Link + "\n")
	if data.ExportArtifactURL != "" {
		b.WriteString("\nA report of the rows that need attention is available here:\n")
		b.WriteString(data.ExportArtifactURL + "\n")
	}
	if cfg.SupportEmail != "" {
		fmt.Fprintf(&b, "\nIf this keeps happening, contact %s.\n", cfg.SupportEmail)
	}
	fmt.Fprintf(&b, "\nThanks,\nThe %s Team", cfg.AppName)

	rows := [][2]string{
		{"Company", data.CompanyName},
		{"Office", data.OfficeName},
		{"Reason", data.FailureKind},
	}
	if data.ExportArtifactURL != "" {
		rows = append(rows, [2]string{"Error report", data.ExportArtifactURL})
	}
	htmlBody := layout(cfg, name, "We could not submit your health check booking. Your details have been kept.", rows, data.Link, "Retry booking")

	return Message{
		To:       []string{data.RecipientEmail},
		ReplyTo:  cfg.SupportEmail,
		Subject:  subject,
		TextBody: b.String(),
		HTMLBody: htmlBody,
	}
}

func layout(cfg Config, name, lead string, rows [][2]string, link, action string) string {
	var table strings.Builder
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		fmt.Fprintf(&table, `<tr><td style="padding: 4px 12px 4px 0; color: #666;">%s</td><td style="padding: 4px 0;"><strong>%s</strong></td></tr>`,
			html.EscapeString(r[0]), html.EscapeString(r[1]))
	}

	button := ""
	if link != "" {
		button = fmt.Sprintf(`<p style="text-align: center; margin: 30px 0;">
        <a href="%s" style="background-color: %s; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">%s</a>
    </p>`, html.EscapeString(link), cfg.PrimaryColor, html.EscapeString(action))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: %s;">Hi %s,</h2>
    <p>%s</p>
    <table>%s</table>
    %s
    <p style="color: #666; font-size: 14px;">Thanks,<br>The %s Team</p>
</body>
</html>`,
		cfg.PrimaryColor, html.EscapeString(name), html.EscapeString(lead), table.String(), button, html.EscapeString(cfg.AppName))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
