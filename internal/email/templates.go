package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type messageData struct {
	Title    string
	Heading  string
	Body     string
	CTALabel string
	CTAURL   string
}

var messageTemplate = template.Must(template.ParseFS(templateFS, "templates/message.html"))

func renderMessage(data messageData) (string, error) {
	var buf bytes.Buffer
	if err := messageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email template: %w", err)
	}
	return buf.String(), nil
}
