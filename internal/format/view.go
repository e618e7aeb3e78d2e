package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ahundt/ai-session-tools/internal/model"
	"github.com/mattn/go-runewidth"
)

// EventLabel returns the bracketed role shown above an event body.
func EventLabel(event model.Event) string {
	switch e := event.(type) {
	case model.UserMessage:
		if e.System {
			return "system"
		}
		return "user"
	case model.AssistantMessage:
		return "assistant"
	case model.ToolUse:
		return "tool:" + e.ToolName
	case model.ToolResult:
		if e.OK {
			return "result"
		}
		return "result:error"
	default:
		panic(fmt.Sprintf("unhandled event type %T", event))
	}
}

// RenderEventLines returns the formatted body lines for a session event.
func RenderEventLines(event model.Event, wrapWidth int) []string {
	var body string
	switch e := event.(type) {
	case model.UserMessage:
		body = wrapBody(strings.TrimSpace(e.Text), wrapWidth)
	case model.AssistantMessage:
		body = wrapBody(strings.TrimSpace(e.Text), wrapWidth)
	case model.ToolUse:
		formatted := formatJSON(string(e.Arguments))
		if formatted == string(e.Arguments) {
			body = fmt.Sprintf("Arguments: %s", e.Arguments)
		} else {
			body = fmt.Sprintf("Arguments:\n%s", formatted)
		}
	case model.ToolResult:
		status := "ok"
		if !e.OK {
			status = "error"
		}
		body = fmt.Sprintf("%s (%s)", e.ToolUseID, status)
	default:
		panic(fmt.Sprintf("unhandled event type %T", event))
	}
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

// RenderEvent converts a session event into a printable string.
func RenderEvent(event model.Event, wrapWidth int) string {
	lines := RenderEventLines(event, wrapWidth)
	ts := event.Meta().Timestamp.Format(time.RFC3339)
	return fmt.Sprintf("[%s][%s]\n%s", ts, EventLabel(event), strings.Join(lines, "\n"))
}

// wrapBody wraps text on word boundaries to width display cells. Existing
// line breaks are kept.
func wrapBody(text string, width int) string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return text
	}

	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if runewidth.StringWidth(current)+1+runewidth.StringWidth(word) > width {
				out = append(out, current)
				current = word
			} else {
				current += " " + word
			}
		}
		out = append(out, current)
	}
	return strings.Join(out, "\n")
}

func formatJSON(raw string) string {
	if raw == "" {
		return raw
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err == nil {
		return buf.String()
	}
	return raw
}
