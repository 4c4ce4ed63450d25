package template

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"unicast/internal/domain/messaging"
)

var _ messaging.TemplateRenderer = (*Renderer)(nil)

// smsMaxRunes bounds the rendered SMS body to a single segment-friendly
// string.
const smsMaxRunes = 160

// typeMeta holds the per-type template sources. Bodies are text/template
// sources over templateData; the email body doubles as the source for the
// HTML version.
type typeMeta struct {
	subjectTmpl string
	heading     string
	emailTmpl   string
	smsTmpl     string
}

var registry = map[messaging.MessageType]typeMeta{
	messaging.TypeInvitation: {
		subjectTmpl: "Invitation: {{.Title}}",
		heading:     "Event Invitation",
		emailTmpl: `Hello {{.Username}},

You are invited to attend: {{.Title}}

Date: {{.Date}}
{{- if .Time}}
Time: {{.Time}}
{{- end}}
{{- if .Location}}
Location: {{.Location}}
{{- end}}
{{- if .Description}}

{{.Description}}
{{- end}}

Please confirm your attendance by visiting the event page.

Best regards,
Unicast`,
		smsTmpl: `You're invited to {{.Title}} on {{.Date}}{{if .Time}} at {{.Time}}{{end}}{{if .Location}}, {{.Location}}{{end}}. RSVP on the event page.`,
	},
	messaging.TypeReminder: {
		subjectTmpl: "Reminder: {{.Title}} is coming up",
		heading:     "Event Reminder",
		emailTmpl: `Hello {{.Username}},

This is a reminder that {{.Title}} is coming up soon.

Date: {{.Date}}
{{- if .Time}}
Time: {{.Time}}
{{- end}}
{{- if .Location}}
Location: {{.Location}}
{{- end}}

We look forward to seeing you there!

Best regards,
Unicast`,
		smsTmpl: `Reminder: {{.Title}} is on {{.Date}}{{if .Time}} at {{.Time}}{{end}}{{if .Location}}, {{.Location}}{{end}}. See you there!`,
	},
	messaging.TypeThankYou: {
		subjectTmpl: "Thank you for attending: {{.Title}}",
		heading:     "Thank You",
		emailTmpl: `Hello {{.Username}},

Thank you for attending {{.Title}}!

We hope you enjoyed the event. Please take a moment to share your feedback to help us improve future events.

Best regards,
Unicast`,
		smsTmpl: `Thank you for attending {{.Title}}! We'd love your feedback on the event page.`,
	},
	messaging.TypeUpdate: {
		subjectTmpl: "Update: {{.Title}}",
		heading:     "Event Update",
		emailTmpl: `Hello {{.Username}},

There is an update for {{.Title}}.

Date: {{.Date}}
{{- if .Time}}
Time: {{.Time}}
{{- end}}
{{- if .Location}}
Location: {{.Location}}
{{- end}}
{{- if .Description}}

{{.Description}}
{{- end}}

Check the event page for the latest details.

Best regards,
Unicast`,
		smsTmpl: `Update for {{.Title}}: check the event page for the latest details.`,
	},
	messaging.TypeCustom: {
		subjectTmpl: "A message about {{.Title}}",
		heading:     "Message from the Organizer",
		emailTmpl: `Hello {{.Username}},

The organizer of {{.Title}} has a message for you.
{{- if .Description}}

{{.Description}}
{{- end}}

Visit the event page for details.

Best regards,
Unicast`,
		smsTmpl: `The organizer of {{.Title}} has a message for you. See the event page.`,
	},
}

const htmlShell = `<!DOCTYPE html>
<html>
<body>
  <h1>{{.Heading}}</h1>
{{- range .Paragraphs}}
  <p>{{.}}</p>
{{- end}}
</body>
</html>`

// templateData is the flattened, pre-formatted input to all templates.
// Optional event fields are empty strings and templates omit them.
type templateData struct {
	Username    string
	Title       string
	Date        string
	Time        string
	Location    string
	Description string
}

// compiled holds the parsed templates for one message type.
type compiled struct {
	subject *texttemplate.Template
	heading string
	email   *texttemplate.Template
	sms     *texttemplate.Template
}

// Renderer produces message content from the embedded template registry.
// Render is deterministic and performs no I/O: the same event, recipient,
// type and channel always yield byte-identical content.
type Renderer struct {
	types map[messaging.MessageType]compiled
	html  *htmltemplate.Template
}

// NewRenderer creates a renderer with all templates parsed up front.
func NewRenderer() *Renderer {
	types := make(map[messaging.MessageType]compiled, len(registry))
	for msgType, meta := range registry {
		name := string(msgType)
		types[msgType] = compiled{
			subject: texttemplate.Must(texttemplate.New(name + ":subject").Parse(meta.subjectTmpl)),
			heading: meta.heading,
			email:   texttemplate.Must(texttemplate.New(name + ":email").Parse(meta.emailTmpl)),
			sms:     texttemplate.Must(texttemplate.New(name + ":sms").Parse(meta.smsTmpl)),
		}
	}
	return &Renderer{
		types: types,
		html:  htmltemplate.Must(htmltemplate.New("shell").Parse(htmlShell)),
	}
}

// Render produces the content for one cell. Subject is only populated for
// email; the SMS body is truncated to a single bounded-length string.
func (r *Renderer) Render(event *messaging.Event, recipient *messaging.User, msgType messaging.MessageType, channel messaging.Channel) (messaging.Content, error) {
	tmpls, ok := r.types[msgType]
	if !ok {
		return messaging.Content{}, fmt.Errorf("no template registered for type: %s", msgType)
	}

	data := templateData{
		Username:    recipient.Username,
		Title:       event.Title,
		Date:        event.Date.Format("Monday, January 2, 2006"),
		Time:        event.Time,
		Location:    event.Location,
		Description: event.Description,
	}

	switch channel {
	case messaging.ChannelSMS:
		body, err := execute(tmpls.sms, data)
		if err != nil {
			return messaging.Content{}, err
		}
		return messaging.Content{Body: truncate(body, smsMaxRunes)}, nil
	case messaging.ChannelEmail:
		subject, err := execute(tmpls.subject, data)
		if err != nil {
			return messaging.Content{}, err
		}
		body, err := execute(tmpls.email, data)
		if err != nil {
			return messaging.Content{}, err
		}
		htmlBody, err := r.renderHTML(tmpls.heading, body)
		if err != nil {
			return messaging.Content{}, err
		}
		return messaging.Content{Subject: subject, Body: body, HTMLBody: htmlBody}, nil
	default:
		// In-app and any future channel reuse the plain email body
		// without a subject.
		body, err := execute(tmpls.email, data)
		if err != nil {
			return messaging.Content{}, err
		}
		return messaging.Content{Body: body}, nil
	}
}

// renderHTML wraps the plain-text body into the HTML shell, one paragraph
// per blank-line-separated block. html/template escapes the content.
func (r *Renderer) renderHTML(heading, textBody string) (string, error) {
	paragraphs := strings.Split(textBody, "\n\n")
	var buf bytes.Buffer
	err := r.html.Execute(&buf, struct {
		Heading    string
		Paragraphs []string
	}{Heading: heading, Paragraphs: paragraphs})
	if err != nil {
		return "", fmt.Errorf("executing html template: %w", err)
	}
	return buf.String(), nil
}

func execute(tmpl *texttemplate.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// truncate bounds s to max runes, ending with an ellipsis when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
