// Package transcript renders research threads as markdown.
package transcript

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/task"
	"github.com/cchalm/video-researcher/internal/thread"
)

//go:embed transcript.tmpl
var transcriptTemplate string

const maxResultLength = 5000

var tmpl = template.Must(template.New("transcript").Funcs(template.FuncMap{
	"prettifyJSON":    prettifyJSON,
	"truncateContent": truncateContent,
	"toolSummary":     toolSummary,
	"escapeCell": func(s string) string {
		return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
	},
}).Parse(transcriptTemplate))

type transcriptData struct {
	ThreadID  string
	CreatedAt string
	UpdatedAt string
	Entries   []entry
	Tasks     []task.Task
	Summary   string
}

type entry struct {
	Type       string // "user_text", "assistant_text", "tool_action"
	Text       string
	ToolName   string
	ToolInput  string
	ToolResult string
	IsError    bool
}

// Render converts a thread snapshot to markdown
func Render(snap thread.Snapshot) (string, error) {
	data := transcriptData{
		ThreadID:  snap.ThreadID,
		CreatedAt: snap.CreatedAt.Format("2006-01-02 15:04:05 MST"),
		UpdatedAt: snap.UpdatedAt.Format("2006-01-02 15:04:05 MST"),
		Entries:   buildEntries(snap.Messages),
		Tasks:     snap.Tasks.Tasks,
		Summary:   task.Summarize(snap.Tasks.Tasks).String(),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute transcript template: %w", err)
	}
	return buf.String(), nil
}

// buildEntries flattens messages into display entries, pairing each tool call with its observation
func buildEntries(messages []ai.Message) []entry {
	observations := make(map[string]ai.Message)
	for _, m := range messages {
		if m.Role == ai.RoleTool {
			observations[m.ToolCallID] = m
		}
	}

	var entries []entry
	for _, m := range messages {
		switch m.Role {
		case ai.RoleUser:
			entries = append(entries, entry{Type: "user_text", Text: m.Content})
		case ai.RoleAssistant:
			if m.Content != "" {
				entries = append(entries, entry{Type: "assistant_text", Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				e := entry{Type: "tool_action", ToolName: call.Name, ToolInput: string(call.Input())}
				if obs, ok := observations[call.ID]; ok {
					e.ToolResult = obs.Content
					e.IsError = obs.IsError
				} else {
					e.ToolResult = `{"note":"no result recorded"}`
				}
				entries = append(entries, e)
			}
		}
	}
	return entries
}

func prettifyJSON(s string) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(s), "", "  "); err == nil {
		return pretty.String()
	}
	return s
}

func truncateContent(s string) string {
	if len(s) > maxResultLength {
		return s[:maxResultLength] + "\n... (content truncated)"
	}
	return s
}

func toolSummary(toolName, toolInput string) string {
	var input map[string]json.RawMessage
	_ = json.Unmarshal([]byte(toolInput), &input)
	// str returns a string or number argument as text
	str := func(key string) string {
		return strings.Trim(string(input[key]), `"`)
	}

	switch toolName {
	case "task_manager":
		var tasks []json.RawMessage
		if err := json.Unmarshal(input["tasks"], &tasks); err == nil && len(tasks) > 0 {
			return fmt.Sprintf("📝 Updating task list (%d tasks)", len(tasks))
		}
		return "📋 Checking task list"
	case "tavily_search":
		if q := str("query"); q != "" {
			return fmt.Sprintf("🔎 Searching the web for '%s'", q)
		}
		return "🔎 Searching the web"
	case "tiktok_hashtag_search":
		if h := str("hashtag"); h != "" {
			return fmt.Sprintf("🏷️ Looking up #%s", strings.TrimPrefix(h, "#"))
		}
		return "🏷️ Looking up hashtag"
	case "tiktok_hashtag_posts":
		if id := str("challenge_id"); id != "" {
			return fmt.Sprintf("🎬 Fetching posts for challenge %s", id)
		}
		return "🎬 Fetching hashtag posts"
	default:
		return fmt.Sprintf("🔧 Using tool: %s", toolName)
	}
}
