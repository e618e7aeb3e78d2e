package analyze

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ahundt/ai-session-tools/internal/model"
)

var slashCommand = regexp.MustCompile(`^/[A-Za-z0-9:-]+`)

// DefaultPlanningCommands is a ready-made fixed list of planning commands.
var DefaultPlanningCommands = []string{
	"/ar:plannew", "/ar:pn",
	"/ar:planrefine", "/ar:pr",
	"/ar:planupdate", "/ar:pu",
	"/ar:planprocess", "/ar:pp",
	"/plannew", "/planrefine", "/planupdate", "/planprocess",
}

// CommandSet is either discovery of every slash command or a fixed list of
// commands to count.
type CommandSet struct {
	fixed []string
}

// Discovery counts any slash command that starts a user message.
func Discovery() CommandSet { return CommandSet{} }

// Fixed counts only the listed commands. An empty list behaves like
// Discovery.
func Fixed(commands []string) CommandSet {
	return CommandSet{fixed: append([]string(nil), commands...)}
}

// IsDiscovery reports whether no fixed list is in effect.
func (c CommandSet) IsDiscovery() bool { return len(c.fixed) == 0 }

// Commands returns the fixed list, or nil in discovery mode.
func (c CommandSet) Commands() []string { return append([]string(nil), c.fixed...) }

// PlanningQuery narrows CountCommands. Zero values do not filter.
type PlanningQuery struct {
	Project string
	After   time.Time
	Before  time.Time
}

type commandTally struct {
	count    int
	sessions map[string]bool
	projects map[string]bool
}

// CountCommands aggregates slash-command use over user messages, sorted by
// count (descending) then command.
func CountCommands(msgs []model.SessionMessage, set CommandSet, q PlanningQuery) []model.PlanningCommandCount {
	project := strings.ToLower(q.Project)
	tallies := make(map[string]*commandTally)
	record := func(cmd string, m model.SessionMessage) {
		t, ok := tallies[cmd]
		if !ok {
			t = &commandTally{sessions: make(map[string]bool), projects: make(map[string]bool)}
			tallies[cmd] = t
		}
		t.count++
		t.sessions[m.SessionID] = true
		t.projects[m.ProjectDir] = true
	}

	for _, m := range msgs {
		if !isUserText(m) || !keep(m, project, q.After, q.Before) {
			continue
		}
		content := strings.TrimLeft(m.Content, " \t\r\n")
		if set.IsDiscovery() {
			if cmd := slashCommand.FindString(content); cmd != "" {
				record(cmd, m)
			}
			continue
		}
		for _, cmd := range set.fixed {
			if startsWithCommand(content, cmd) {
				record(cmd, m)
			}
		}
	}

	out := make([]model.PlanningCommandCount, 0, len(tallies))
	for cmd, t := range tallies {
		out = append(out, model.PlanningCommandCount{
			Command:     cmd,
			Count:       t.count,
			SessionIDs:  sortedKeys(t.sessions),
			ProjectDirs: sortedKeys(t.projects),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Command < out[j].Command
	})
	return out
}

// startsWithCommand reports whether content begins with cmd as a whole
// token.
func startsWithCommand(content, cmd string) bool {
	if cmd == "" || !strings.HasPrefix(content, cmd) {
		return false
	}
	rest := content[len(cmd):]
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return !isTokenRune(r)
}

func isTokenRune(r rune) bool {
	return r == ':' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
