package templates

import (
	"bytes"
	"embed"
	"fmt"
	htmpl "html/template"
)

//go:embed *.tmpl
var FS embed.FS

var tmpl = htmpl.Must(htmpl.ParseFS(FS, "*.tmpl"))

var subjects = map[string]string{
	"activation":     "Activate your account",
	"reset_password": "Reset your password",
}

// Render renders the named template into subject, text, and html bodies.
// The text body is a plain fallback carrying the action link.
func Render(name string, data map[string]any) (subject, text, html string, err error) {
	subject, ok := subjects[name]
	if !ok {
		return "", "", "", fmt.Errorf("unknown email template %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", "", "", err
	}
	html = buf.String()

	if link, ok := data["Link"].(string); ok {
		text = subject + ": " + link
	} else {
		text = subject
	}
	return subject, text, html, nil
}
