package view

import (
	"strings"
	"unicode"

	"github.com/ahundt/ai-session-tools/internal/format"
	"github.com/ahundt/ai-session-tools/internal/model"

	"github.com/mattn/go-runewidth"
)

// bubbleMargin is the minimum gap between a bubble and the screen edge.
const bubbleMargin = 2

// renderChatTranscript draws each event as a bordered bubble. User bubbles
// hug the right edge, tool traffic sits in the middle and everything else
// starts at the left margin.
func renderChatTranscript(events []model.Event, width int, useColor bool) []string {
	if width <= 0 {
		width = 80
	}
	inner := max(width-2*bubbleMargin-10, 8)

	lines := make([]string, 0, len(events)*6)
	for i, event := range events {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, renderBubble(event, width, inner, useColor)...)
	}
	return lines
}

func renderBubble(event model.Event, width, inner int, useColor bool) []string {
	role := eventRole(event)

	label := capitalize(format.EventLabel(event))
	stamp := "-"
	if ts := event.Meta().Timestamp; !ts.IsZero() {
		stamp = ts.Format("Jan 02 15:04")
	}

	content := []string{label + " · " + stamp}
	content = append(content, format.RenderEventLines(event, inner)...)

	bubble := 0
	for i, line := range content {
		content[i] = runewidth.Truncate(line, inner, "")
		bubble = max(bubble, runewidth.StringWidth(content[i]))
	}

	pad := strings.Repeat(" ", bubbleOffset(role, width, bubble))
	edge := strings.Repeat("─", bubble+2)
	border := colorize(useColor, ansiSeparator, "|")

	out := make([]string, 0, len(content)+2)
	out = append(out, pad+"╭"+edge+"╮")
	for i, line := range content {
		fill := strings.Repeat(" ", bubble-runewidth.StringWidth(line))
		if i == 0 && useColor && strings.HasPrefix(line, label+" · ") {
			line = colorize(true, roleColor(role), label) + " · " + colorize(true, ansiTimestamp, strings.TrimPrefix(line, label+" · "))
		}
		out = append(out, pad+border+" "+line+fill+" "+border)
	}
	out = append(out, pad+"╰"+edge+"╯")
	return out
}

func bubbleOffset(role string, width, bubble int) int {
	room := max(width-bubble-4, 0)
	switch role {
	case RoleUser:
		return room
	case RoleTool, RoleResult, RoleSystem:
		return min(max(room/2, bubbleMargin), room)
	default:
		return min(bubbleMargin, room)
	}
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return "Event"
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
