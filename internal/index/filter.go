package index

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ahundt/ai-session-tools/internal/model"
	"github.com/gobwas/glob"
)

// FilterSpec selects recovered files. Zero values do not filter.
type FilterSpec struct {
	Pattern           string // glob on the base name, or a plain substring
	MinEdits          int
	MaxEdits          int
	MinSize           int
	MaxSize           int
	IncludeExtensions []string
	ExcludeExtensions []string
	After             time.Time
	Before            time.Time
	IncludeSessions   []string
	ExcludeSessions   []string
}

// Files returns the files accepted by spec, ordered by edit count
// (descending), then name, then path.
func (ix *Index) Files(spec FilterSpec) ([]model.RecoveredFile, error) {
	match, err := compileName(spec.Pattern)
	if err != nil {
		return nil, err
	}

	var out []model.RecoveredFile
	for _, path := range ix.paths {
		f := ix.files[path]
		if !match(f.Name) ||
			!editsInRange(f.Edits, spec.MinEdits, spec.MaxEdits) ||
			!sizeInRange(f.SizeBytes, spec.MinSize, spec.MaxSize) ||
			!extensionAllowed(f.Extension, spec.IncludeExtensions, spec.ExcludeExtensions) ||
			!inRange(f.LastModified, spec.After, spec.Before) ||
			!sessionsAllowed(f.Sessions, spec.IncludeSessions, spec.ExcludeSessions) {
			continue
		}
		out = append(out, f)
	}
	SortFiles(out)
	return out, nil
}

// SortFiles orders files by edit count (descending), then name, then path.
func SortFiles(files []model.RecoveredFile) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.Edits != b.Edits {
			return a.Edits > b.Edits
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Path < b.Path
	})
}

// compileName builds a case-insensitive name matcher. Patterns containing
// glob metacharacters are compiled with gobwas/glob; anything else is a
// substring match.
func compileName(pattern string) (func(string) bool, error) {
	if pattern == "" {
		return func(string) bool { return true }, nil
	}
	lower := strings.ToLower(pattern)
	if !strings.ContainsAny(pattern, "*?[{") {
		return func(name string) bool {
			return strings.Contains(strings.ToLower(name), lower)
		}, nil
	}
	g, err := glob.Compile(lower)
	if err != nil {
		return nil, fmt.Errorf("invalid name pattern %q: %w", pattern, err)
	}
	return func(name string) bool {
		return g.Match(strings.ToLower(name))
	}, nil
}

func editsInRange(n, lo, hi int) bool {
	return n >= lo && (hi <= 0 || n <= hi)
}

func sizeInRange(n, lo, hi int) bool {
	return n >= lo && (hi <= 0 || n <= hi)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func containsExt(list []string, ext string) bool {
	ext = normalizeExt(ext)
	for _, e := range list {
		if normalizeExt(e) == ext {
			return true
		}
	}
	return false
}

// extensionAllowed applies the allow list, then the deny list; the deny list
// wins when an extension is in both.
func extensionAllowed(ext string, include, exclude []string) bool {
	if len(include) > 0 && !containsExt(include, ext) {
		return false
	}
	if len(exclude) > 0 && containsExt(exclude, ext) {
		return false
	}
	return true
}

// sessionsAllowed accepts a file when at least one of its sessions passes
// the allow and deny lists.
func sessionsAllowed(sessions, include, exclude []string) bool {
	if len(include) == 0 && len(exclude) == 0 {
		return true
	}
	for _, s := range sessions {
		if len(include) > 0 && !contains(include, s) {
			continue
		}
		if contains(exclude, s) {
			continue
		}
		return true
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// FilePredicate reports whether a file should be kept.
type FilePredicate func(model.RecoveredFile) bool

// SearchFilter is a chain of predicates applied to an already materialized
// file list. A file is kept when every predicate accepts it, so the order
// predicates are added in does not matter.
type SearchFilter struct {
	predicates []FilePredicate
	err        error
}

// NewSearchFilter returns an empty chain that keeps every file.
func NewSearchFilter() *SearchFilter {
	return &SearchFilter{}
}

func (f *SearchFilter) add(p FilePredicate) *SearchFilter {
	f.predicates = append(f.predicates, p)
	return f
}

// ByEdits keeps files with at least lo and, when hi > 0, at most hi edits.
func (f *SearchFilter) ByEdits(lo, hi int) *SearchFilter {
	return f.add(func(file model.RecoveredFile) bool { return editsInRange(file.Edits, lo, hi) })
}

// BySize keeps files whose final content size is within bounds.
func (f *SearchFilter) BySize(lo, hi int) *SearchFilter {
	return f.add(func(file model.RecoveredFile) bool { return sizeInRange(file.SizeBytes, lo, hi) })
}

// ByExtension keeps files with one of exts.
func (f *SearchFilter) ByExtension(exts ...string) *SearchFilter {
	return f.add(func(file model.RecoveredFile) bool { return extensionAllowed(file.Extension, exts, nil) })
}

// ExcludeExtension drops files with any of exts.
func (f *SearchFilter) ExcludeExtension(exts ...string) *SearchFilter {
	return f.add(func(file model.RecoveredFile) bool { return extensionAllowed(file.Extension, nil, exts) })
}

// ByNamePattern keeps files whose name matches pattern. An invalid pattern
// is reported by Err and Apply.
func (f *SearchFilter) ByNamePattern(pattern string) *SearchFilter {
	match, err := compileName(pattern)
	if err != nil {
		if f.err == nil {
			f.err = err
		}
		return f
	}
	return f.add(func(file model.RecoveredFile) bool { return match(file.Name) })
}

// ByDateRange keeps files last modified within the inclusive bounds.
func (f *SearchFilter) ByDateRange(after, before time.Time) *SearchFilter {
	return f.add(func(file model.RecoveredFile) bool { return inRange(file.LastModified, after, before) })
}

// BySessions keeps files touched by a session in include and not only by
// sessions in exclude.
func (f *SearchFilter) BySessions(include, exclude []string) *SearchFilter {
	return f.add(func(file model.RecoveredFile) bool { return sessionsAllowed(file.Sessions, include, exclude) })
}

// Custom adds an arbitrary predicate.
func (f *SearchFilter) Custom(p FilePredicate) *SearchFilter {
	return f.add(p)
}

// Err returns the first error recorded while building the chain.
func (f *SearchFilter) Err() error { return f.err }

// Apply returns the files accepted by every predicate, in input order.
func (f *SearchFilter) Apply(files []model.RecoveredFile) ([]model.RecoveredFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.RecoveredFile
next:
	for _, file := range files {
		for _, p := range f.predicates {
			if !p(file) {
				continue next
			}
		}
		out = append(out, file)
	}
	return out, nil
}

// FromSpec builds the chain equivalent to spec.
func FromSpec(spec FilterSpec) *SearchFilter {
	f := NewSearchFilter()
	if spec.Pattern != "" {
		f.ByNamePattern(spec.Pattern)
	}
	if spec.MinEdits > 0 || spec.MaxEdits > 0 {
		f.ByEdits(spec.MinEdits, spec.MaxEdits)
	}
	if spec.MinSize > 0 || spec.MaxSize > 0 {
		f.BySize(spec.MinSize, spec.MaxSize)
	}
	if len(spec.IncludeExtensions) > 0 {
		f.ByExtension(spec.IncludeExtensions...)
	}
	if len(spec.ExcludeExtensions) > 0 {
		f.ExcludeExtension(spec.ExcludeExtensions...)
	}
	if !spec.After.IsZero() || !spec.Before.IsZero() {
		f.ByDateRange(spec.After, spec.Before)
	}
	if len(spec.IncludeSessions) > 0 || len(spec.ExcludeSessions) > 0 {
		f.BySessions(spec.IncludeSessions, spec.ExcludeSessions)
	}
	return f
}

// All returns every indexed file, ordered as Files orders them.
func (ix *Index) All() []model.RecoveredFile {
	out := make([]model.RecoveredFile, 0, len(ix.paths))
	for _, path := range ix.paths {
		out = append(out, ix.files[path])
	}
	SortFiles(out)
	return out
}
