package vfs

import (
	"sort"

	"github.com/appstract/appstract/internal/winpath"
)

// Rule maps a host path prefix to a prefix relative to the virtual root.
type Rule struct {
	Host    string
	Virtual string
}

// RuleTable is the static set of redirection rules. It is read-only once
// built and safe for concurrent use.
type RuleTable struct {
	rules []Rule
}

// NewRuleTable builds the rules for the given host folders. Entries whose
// host location is not fully qualified are skipped.
func NewRuleTable(hosts HostFolders) *RuleTable {
	rules := make([]Rule, 0, len(hosts))
	for f, host := range hosts {
		rules = append(rules, Rule{Host: host, Virtual: f.Path()})
	}
	return NewRuleTableFromRules(rules...)
}

// NewRuleTableFromRules builds a table from explicit rules.
func NewRuleTableFromRules(rules ...Rule) *RuleTable {
	t := &RuleTable{}
	for _, r := range rules {
		host := winpath.Canonical(r.Host)
		if !winpath.IsAbs(host) {
			continue
		}
		t.rules = append(t.rules, Rule{Host: host, Virtual: winpath.Clean(r.Virtual)})
	}
	// Longest host prefix wins, so System32 is matched before Windows.
	sort.Slice(t.rules, func(i, j int) bool {
		a, b := t.rules[i], t.rules[j]
		if len(a.Host) != len(b.Host) {
			return len(a.Host) > len(b.Host)
		}
		if a.Host != b.Host {
			return a.Host < b.Host
		}
		return a.Virtual < b.Virtual
	})
	return t
}

// Rules returns a copy of the rules in match order.
func (t *RuleTable) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Rewrite returns the path relative to the virtual root that stands in for
// p. Paths outside every rule keep their shape below the root with the
// volume designator removed.
func (t *RuleTable) Rewrite(p string) string {
	c := winpath.Canonical(p)
	for _, r := range t.rules {
		if rest, ok := winpath.TrimPrefixFold(c, r.Host); ok {
			return winpath.Join(r.Virtual, rest)
		}
	}
	return winpath.Relative(c)
}
