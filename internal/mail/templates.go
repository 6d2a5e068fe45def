package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "welcome"}}<h2>Welcome {{.Name}}!</h2>
<p>Your {{.AppName}} account has been successfully created.</p>
<p>You can now login to your account.</p>
<p><a href="{{.LoginURL}}">Click here to login</a></p>{{end}}

{{define "password-reset"}}<h2>Password Reset Request</h2>
<p>Hello {{.Name}},</p>
<p>You requested to reset your password. Click the link below to proceed:</p>
<p><a href="{{.ResetURL}}">Reset Password</a></p>
<p>This link will expire in {{.ExpiresIn}}.</p>
<p>If you didn't request this, please ignore this email.</p>{{end}}

{{define "password-changed"}}<h2>Password Changed</h2>
<p>Hello {{.Name}},</p>
<p>The password for your {{.AppName}} account was just changed.</p>
<p>If you did not make this change, reset your password immediately or contact support.</p>{{end}}

{{define "contact-confirmation"}}<h2>Thank You for Contacting Us</h2>
<p>Dear {{.Name}},</p>
<p>We have received your message and will get back to you within 24-48 hours.</p>
<p><strong>Your Message:</strong></p>
<p>{{.Message}}</p>
<p>Best regards,<br>{{.AppName}} Support Team</p>{{end}}

{{define "contact-notification"}}<h2>New Contact Form Submission</h2>
<p><strong>From:</strong> {{.Name}} ({{.Email}})</p>
<p><strong>Subject:</strong> {{.Subject}}</p>
<p><strong>Category:</strong> {{.Category}}</p>
{{if .Phone}}<p><strong>Phone:</strong> {{.Phone}}</p>{{end}}
<p><strong>Message:</strong><br>{{.Message}}</p>
<p><strong>Submitted:</strong> {{.Submitted}}</p>{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
