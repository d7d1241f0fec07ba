package whatsapp

import (
	"fmt"
	"strings"
	"text/template"
)

var builtinTemplates = map[string]string{
	"invitation": `💌 *{{.wedding_name}}*

Dear {{.guest_name}},
You are warmly invited to: {{.events}}{{if .date}}
📅 {{.date}}{{end}}

RSVP here: {{.link}}{{if .invite_code}}
Invite code: *{{.invite_code}}*{{end}}`,
	"rsvp_confirmation": `*{{.wedding_name}}*

Thanks {{.first_name}}, your RSVP ({{.response}}) is in.
{{.message}}{{if .pass_links}}

Passes:
{{.pass_links}}{{end}}`,
}

// Templates renders WhatsApp message bodies by template id.
type Templates struct {
	set *template.Template
}

// NewTemplates parses the built-in templates plus extra (id -> text/template source).
func NewTemplates(extra map[string]string) (*Templates, error) {
	root := template.New("").Option("missingkey=zero")
	for id, src := range builtinTemplates {
		if _, err := root.New(id).Parse(src); err != nil {
			return nil, fmt.Errorf("parse whatsapp template %s: %w", id, err)
		}
	}
	for id, src := range extra {
		if _, err := root.New(id).Parse(src); err != nil {
			return nil, fmt.Errorf("parse whatsapp template %s: %w", id, err)
		}
	}
	return &Templates{set: root}, nil
}

// Render executes template id with vars.
func (t *Templates) Render(id string, vars map[string]string) (string, error) {
	tpl := t.set.Lookup(id)
	if tpl == nil {
		return "", fmt.Errorf("unknown whatsapp template %q", id)
	}
	var b strings.Builder
	if err := tpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("render %s: %w", id, err)
	}
	return b.String(), nil
}
