package ai

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
	"time"
)

//go:embed system_prompt.md
var systemPromptTemplate string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptTemplate))

type systemPromptData struct {
	SystemTime string
}

// SystemPrompt renders the research assistant's system prompt for the given time
func SystemPrompt(now time.Time) (string, error) {
	var buf bytes.Buffer
	data := systemPromptData{SystemTime: now.UTC().Format(time.RFC3339)}
	if err := systemPromptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute system prompt template: %w", err)
	}
	return buf.String(), nil
}
