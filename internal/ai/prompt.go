package ai

import (
	"strings"
	"text/template"
)

// renderPrompt substitutes named placeholders into an instruction string.
func renderPrompt(name, prompt string, data interface{}) (string, error) {
	tmpl, err := template.New(name).Parse(prompt)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// extractJSON strips the markdown fences models wrap JSON replies in.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}
