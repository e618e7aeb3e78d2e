// Package view renders one session transcript for the terminal.
package view

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ahundt/ai-session-tools/internal/claude"
	"github.com/ahundt/ai-session-tools/internal/format"
	"github.com/ahundt/ai-session-tools/internal/model"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Event roles accepted by the role filter.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleResult    = "result"
	RoleSystem    = "system"
)

// Options defines the configurable parameters for rendering a view.
type Options struct {
	Log          *claude.SessionLog
	Format       string // text, chat, json or raw
	Wrap         int
	MaxEvents    int // keep only the last N events; 0 keeps all
	RoleArg      string
	AllFilter    bool
	ForceColor   bool
	ForceNoColor bool
	Out          io.Writer
	OutFile      *os.File
}

// Run renders a session according to the provided options.
func Run(opts Options) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Log == nil {
		return fmt.Errorf("no session to view")
	}

	formatMode := strings.ToLower(opts.Format)
	if formatMode == "" {
		formatMode = "text"
	}
	if formatMode == "raw" {
		return copyFile(opts.Out, opts.Log.Session.Path)
	}

	roles, err := buildRoleFilter(opts.AllFilter, opts.RoleArg)
	if err != nil {
		return err
	}
	events := selectEvents(opts.Log.Events, roles, opts.MaxEvents)

	switch formatMode {
	case "text":
		useColor := resolveColorChoice(opts)
		for idx, event := range events {
			if idx > 0 {
				fmt.Fprintln(opts.Out)
			}
			printEvent(opts.Out, event, idx+1, opts.Wrap, useColor)
		}
		return nil

	case "json":
		enc := json.NewEncoder(opts.Out)
		for _, event := range events {
			if err := enc.Encode(jsonEvent{Kind: event.Kind(), Event: event}); err != nil {
				return err
			}
		}
		return nil

	case "chat":
		if len(events) == 0 {
			return nil
		}
		colorEnabled := resolveColorChoice(opts)
		width := determineWidth(opts.OutFile, opts.Wrap)

		lines := renderChatTranscript(events, width, colorEnabled)
		if len(lines) == 0 {
			return nil
		}
		if opts.OutFile != nil && isatty.IsTerminal(opts.OutFile.Fd()) {
			return pipeThroughPager(lines, colorEnabled)
		}
		return writeLines(opts.Out, lines)

	default:
		return fmt.Errorf("unsupported format: %s", opts.Format)
	}
}

type jsonEvent struct {
	Kind  model.EventKind `json:"kind"`
	Event model.Event     `json:"event"`
}

// eventRole maps an event to the name used by the role filter.
func eventRole(event model.Event) string {
	switch e := event.(type) {
	case model.UserMessage:
		if e.System {
			return RoleSystem
		}
		return RoleUser
	case model.AssistantMessage:
		return RoleAssistant
	case model.ToolUse:
		return RoleTool
	case model.ToolResult:
		return RoleResult
	default:
		panic(fmt.Sprintf("unhandled event type %T", event))
	}
}

// buildRoleFilter parses a comma-separated role list. A nil set keeps every
// event; without an argument only user and assistant text is shown.
func buildRoleFilter(allFilter bool, arg string) (map[string]struct{}, error) {
	if allFilter {
		return nil, nil
	}
	values := parseCSV(arg)
	if len(values) == 0 {
		return map[string]struct{}{RoleUser: {}, RoleAssistant: {}}, nil
	}
	if len(values) == 1 && values[0] == "all" {
		return nil, nil
	}

	set := make(map[string]struct{}, len(values))
	for _, token := range values {
		switch token {
		case RoleUser, RoleAssistant, RoleTool, RoleResult, RoleSystem:
			set[token] = struct{}{}
		default:
			return nil, fmt.Errorf("unknown role %q", token)
		}
	}
	return set, nil
}

func parseCSV(arg string) []string {
	if strings.TrimSpace(arg) == "" {
		return nil
	}
	parts := strings.Split(arg, ",")
	output := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.TrimSpace(strings.ToLower(part))
		if token != "" {
			output = append(output, token)
		}
	}
	return output
}

func selectEvents(events []model.Event, roles map[string]struct{}, maxEvents int) []model.Event {
	ring := newEventRing(maxEvents)
	var all []model.Event
	for _, event := range events {
		if roles != nil {
			if _, ok := roles[eventRole(event)]; !ok {
				continue
			}
		}
		if maxEvents > 0 {
			ring.push(event)
		} else {
			all = append(all, event)
		}
	}
	if maxEvents > 0 {
		return ring.slice()
	}
	return all
}

type eventRing struct {
	data   []model.Event
	start  int
	length int
}

func newEventRing(capacity int) *eventRing {
	if capacity <= 0 {
		return &eventRing{}
	}
	return &eventRing{data: make([]model.Event, capacity)}
}

func (r *eventRing) push(event model.Event) {
	if len(r.data) == 0 {
		return
	}
	idx := (r.start + r.length) % len(r.data)
	r.data[idx] = event
	if r.length < len(r.data) {
		r.length++
		return
	}
	r.start = (r.start + 1) % len(r.data)
}

func (r *eventRing) slice() []model.Event {
	if r.length == 0 {
		return nil
	}
	result := make([]model.Event, r.length)
	for i := 0; i < r.length; i++ {
		result[i] = r.data[(r.start+i)%len(r.data)]
	}
	return result
}

func determineWidth(out *os.File, wrap int) int {
	if wrap > 0 {
		return wrap
	}
	if out != nil {
		if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 0 {
			return w
		}
	}
	if colsStr := os.Getenv("COLUMNS"); colsStr != "" {
		if v, err := strconv.Atoi(colsStr); err == nil && v > 0 {
			return v
		}
	}
	return 80
}

func pipeThroughPager(lines []string, colorEnabled bool) error {
	text := strings.Join(lines, "\n")
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	pagerCmd := os.Getenv("PAGER")
	var cmd *exec.Cmd
	if pagerCmd == "" {
		args := []string{"less"}
		if colorEnabled {
			args = append(args, "-R")
		}
		cmd = exec.Command(args[0], args[1:]...) // #nosec G204
	} else {
		cmd = exec.Command("sh", "-c", pagerCmd) // #nosec G204
	}

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create pager pipe: %w", err)
	}
	go func() {
		defer stdin.Close()
		io.WriteString(stdin, text) //nolint:errcheck
	}()

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run pager: %w", err)
	}

	return nil
}

func writeLines(out io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func printEvent(out io.Writer, event model.Event, index int, wrap int, useColor bool) {
	label := format.EventLabel(event)

	ts := "-"
	if t := event.Meta().Timestamp; !t.IsZero() {
		ts = t.Format(time.RFC3339)
	}
	headerPlain := fmt.Sprintf("[#%03d] %s | %s", index, label, ts)

	indexText := fmt.Sprintf("#%03d", index)
	roleText := label
	tsText := ts
	separator := "|"

	if useColor {
		indexText = colorize(true, ansiBoldWhite, indexText)
		roleText = colorize(true, roleColor(eventRole(event)), roleText)
		tsText = colorize(true, ansiTimestamp, tsText)
		separator = colorize(true, ansiSeparator, "|")
	}

	header := fmt.Sprintf("[%s] %s %s %s", indexText, roleText, separator, tsText)
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, strings.Repeat("-", len(headerPlain)))

	lines := format.RenderEventLines(event, wrap)
	if len(lines) == 0 {
		prefix := "|"
		if useColor {
			prefix = colorize(true, ansiSeparator, "|")
		}
		fmt.Fprintf(out, "%s %s\n", prefix, "(no content)")
		return
	}
	linePrefix := "| "
	emptyPrefix := "|"
	if useColor {
		separatorColor := colorize(true, ansiSeparator, "|")
		linePrefix = separatorColor + " "
		emptyPrefix = separatorColor
	}
	for _, line := range lines {
		if line == "" {
			fmt.Fprintln(out, emptyPrefix)
			continue
		}
		fmt.Fprintf(out, "%s%s\n", linePrefix, line)
	}
}

const (
	ansiReset     = "\x1b[0m"
	ansiBoldWhite = "\x1b[1;97m"
	ansiTimestamp = "\x1b[38;5;245m"
	ansiSeparator = "\x1b[38;5;240m"
	ansiAssistant = "\x1b[38;5;44m"
	ansiUser      = "\x1b[38;5;220m"
	ansiTool      = "\x1b[38;5;207m"
)

func colorize(enabled bool, code string, text string) string {
	if !enabled {
		return text
	}
	return code + text + ansiReset
}

func roleColor(role string) string {
	switch role {
	case RoleAssistant:
		return ansiAssistant
	case RoleUser:
		return ansiUser
	case RoleTool, RoleResult, RoleSystem:
		return ansiTool
	default:
		return ansiSeparator
	}
}

func resolveColorChoice(opts Options) bool {
	if opts.ForceColor {
		return true
	}
	if opts.ForceNoColor {
		return false
	}
	return shouldUseColorAuto(opts.Out)
}

func shouldUseColorAuto(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func copyFile(dst io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(dst, f)
	return err
}
