package notify

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/flosch/pongo2/v6"
)

const (
	TemplateActivation    = "activation"
	TemplateResetPassword = "reset-password"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateData is the context every email template receives.
type TemplateData struct {
	Name string
	URL  string
}

func (d TemplateData) context() pongo2.Context {
	return pongo2.Context{
		"name": d.Name,
		"url":  d.URL,
	}
}

// Renderer holds the compiled email templates.
type Renderer struct {
	templates map[string]*pongo2.Template
}

// NewRenderer compiles the embedded templates.
func NewRenderer() (*Renderer, error) {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("notify: read templates: %w", err)
	}

	templates := make(map[string]*pongo2.Template, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}

		raw, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("notify: read template %s: %w", entry.Name(), err)
		}

		tpl, err := pongo2.FromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("notify: compile template %s: %w", entry.Name(), err)
		}

		templates[strings.TrimSuffix(entry.Name(), ".html")] = tpl
	}

	return &Renderer{templates: templates}, nil
}

// Names lists the available template names.
func (r *Renderer) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render executes the named template. Values are HTML-escaped.
func (r *Renderer) Render(name string, data TemplateData) (string, error) {
	tpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("notify: unknown template %q", name)
	}

	out, err := tpl.Execute(data.context())
	if err != nil {
		return "", fmt.Errorf("notify: render %s: %w", name, err)
	}
	return out, nil
}
