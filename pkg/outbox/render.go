package outbox

import (
	"fmt"
	"strings"
	"text/template"
)

// Renderer produces the final message content from template data. Rendering
// happens once, before the message is persisted; the stored content is what
// every delivery attempt sends.
type Renderer interface {
	Render(messageType string, data map[string]any) (string, error)
}

const (
	defaultEmailTemplate = `Olá,

Sua consulta na Saraiva Vision foi confirmada.
{{- if .appointmentId }}
Código: {{ .appointmentId }}
{{- end }}
{{- if .date }}
Data: {{ .date }}{{ if .time }} às {{ .time }}{{ end }}
{{- end }}
{{- if .doctor }}
Profissional: {{ .doctor }}
{{- end }}

Saraiva Vision`

	defaultSMSTemplate = `Saraiva Vision: consulta {{ with .appointmentId }}{{ . }} {{ end }}atualizada.{{ with .date }} Data: {{ . }}.{{ end }}`
)

type templateRenderer struct {
	templates map[string]*template.Template
}

// NewTemplateRenderer builds a Renderer from per-type text templates. When
// overrides is empty the built-in clinic templates are used.
func NewTemplateRenderer(overrides map[string]string) (Renderer, error) {
	sources := map[string]string{
		"email": defaultEmailTemplate,
		"sms":   defaultSMSTemplate,
	}
	for name, src := range overrides {
		sources[name] = src
	}

	templates := make(map[string]*template.Template, len(sources))
	for name, src := range sources {
		tmpl, err := template.New(name).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %q template: %w", name, err)
		}
		templates[name] = tmpl
	}
	return &templateRenderer{templates: templates}, nil
}

func (r *templateRenderer) Render(messageType string, data map[string]any) (string, error) {
	tmpl, ok := r.templates[messageType]
	if !ok {
		return "", fmt.Errorf("no template for message type %q", messageType)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %q content: %w", messageType, err)
	}
	return sb.String(), nil
}
