package selector

import (
	"fmt"
	"regexp"
	"strings"
)

var issueKeyRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-\d+$`)

// IsIssueKey reports whether s looks like an issue key such as TEAM-123.
func IsIssueKey(s string) bool {
	return issueKeyRe.MatchString(s)
}

// NormalizeKey trims and upper-cases a typed issue key.
func NormalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// SelectionSet is an ordered set of issue keys. Keys keep the order in which
// they were first added.
type SelectionSet struct {
	keys  []string
	index map[string]struct{}
}

// NewSelectionSet returns a set holding keys, in order, without duplicates.
func NewSelectionSet(keys ...string) *SelectionSet {
	s := &SelectionSet{index: make(map[string]struct{})}
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add appends key unless it is already present. It reports whether the set changed.
func (s *SelectionSet) Add(key string) bool {
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = struct{}{}
	s.keys = append(s.keys, key)
	return true
}

// Remove deletes key. It reports whether the set changed.
func (s *SelectionSet) Remove(key string) bool {
	if _, ok := s.index[key]; !ok {
		return false
	}
	delete(s.index, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return true
}

func (s *SelectionSet) Contains(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Keys returns a copy of the keys in selection order.
func (s *SelectionSet) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s *SelectionSet) Len() int {
	return len(s.keys)
}

// SyncFromView applies a multi-select answer for one view: chosen keys are
// appended, and keys shown in the view but left unchecked are removed. Keys
// selected from other views are untouched.
func (s *SelectionSet) SyncFromView(viewKeys, chosen []string) bool {
	changed := false
	picked := make(map[string]struct{}, len(chosen))
	for _, k := range chosen {
		picked[k] = struct{}{}
		if s.Add(k) {
			changed = true
		}
	}
	for _, k := range viewKeys {
		if _, ok := picked[k]; ok {
			continue
		}
		if s.Remove(k) {
			changed = true
		}
	}
	return changed
}

// Retain drops every key not in keep.
func (s *SelectionSet) Retain(keep []string) bool {
	wanted := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		wanted[k] = struct{}{}
	}
	changed := false
	for _, k := range s.Keys() {
		if _, ok := wanted[k]; !ok {
			s.Remove(k)
			changed = true
		}
	}
	return changed
}

// SelectionEmptyError is returned when the user finishes without any issue.
type SelectionEmptyError struct{}

func (e *SelectionEmptyError) Error() string {
	return "no issues selected: select at least one issue before logging time"
}

// Require returns a *SelectionEmptyError when s is empty.
func Require(s *SelectionSet) error {
	if s.Len() == 0 {
		return &SelectionEmptyError{}
	}
	return nil
}

// KeywordJQL searches summaries and descriptions for term. When the term
// itself looks like an issue key, that issue is matched directly too.
func KeywordJQL(term string) string {
	escaped := strings.ReplaceAll(term, `"`, `\"`)
	clauses := []string{
		fmt.Sprintf(`summary ~ "%s"`, escaped),
		fmt.Sprintf(`description ~ "%s"`, escaped),
	}
	if key := NormalizeKey(term); IsIssueKey(key) {
		clauses = append([]string{fmt.Sprintf(`key = "%s"`, key)}, clauses...)
	}
	return strings.Join(clauses, " OR ") + " ORDER BY updated DESC"
}

// ProjectJQL lists the open issues of the given projects, or "" without projects.
func ProjectJQL(projectKeys []string) string {
	if len(projectKeys) == 0 {
		return ""
	}
	return fmt.Sprintf("project in (%s) AND statusCategory not in (Done)", strings.Join(projectKeys, ", "))
}
