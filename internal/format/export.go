package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/ahundt/ai-session-tools/internal/model"
)

const exportTimeLayout = "2006-01-02 15:04"

// ExportMarkdown writes a session transcript as Markdown: a metadata header
// followed by one section per message, separated by horizontal rules.
func ExportMarkdown(w io.Writer, session model.Session, msgs []model.SessionMessage) error {
	var b strings.Builder

	id := session.ID
	if len(id) > 8 {
		id = id[:8]
	}
	fmt.Fprintf(&b, "# Session %s\n\n", id)
	if !session.StartedAt.IsZero() {
		fmt.Fprintf(&b, "**Date**: %s\n", session.StartedAt.Format(exportTimeLayout))
	}
	if session.GitBranch != "" {
		fmt.Fprintf(&b, "**Branch**: %s\n", session.GitBranch)
	}
	if session.CWD != "" {
		fmt.Fprintf(&b, "**Directory**: %s\n", session.CWD)
	}
	fmt.Fprintf(&b, "**Messages**: %d\n\n---\n\n", len(msgs))

	for _, m := range msgs {
		heading := fmt.Sprintf("[%s]", m.Type)
		if m.ToolName != "" {
			heading = fmt.Sprintf("[%s:%s]", m.Type, m.ToolName)
		}
		if !m.Timestamp.IsZero() {
			heading += " " + m.Timestamp.Format(exportTimeLayout)
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n---\n\n", heading, strings.TrimSpace(m.Content))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
