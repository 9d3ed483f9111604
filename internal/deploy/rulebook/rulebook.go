package rulebook

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Cache-Control values applied by the built-in rules.
const (
	// CacheControlNoCache forces revalidation on every request. Applied to
	// everything that no other rule claims, notably HTML entry points.
	CacheControlNoCache = "max-age=0,no-cache,no-store,must-revalidate"

	// CacheControlImmutable is for fingerprinted build artifacts that never
	// change under the same name.
	CacheControlImmutable = "max-age=31536000,public,immutable"
)

// Rule classifies files matching Files (minus Ignore) with a Cache-Control
// value and an optional Content-Type override. Glob patterns use doublestar
// syntax. A rule may match zero or more files.
type Rule struct {
	Files        []string `yaml:"files" mapstructure:"files"`
	Ignore       []string `yaml:"ignore,omitempty" mapstructure:"ignore"`
	CacheControl string   `yaml:"cache_control,omitempty" mapstructure:"cache_control"`
	ContentType  string   `yaml:"content_type,omitempty" mapstructure:"content_type"`
}

// Rulebook is an ordered list of rules. Classification evaluates the list in
// REVERSE declaration order: the last rule declared is consulted first, and a
// file once claimed is skipped by every rule evaluated after it. The built-in
// catch-all sits at index 0 and therefore loses to everything else.
//
// Consequence: among user rules, the LAST one declared wins. This ordering is
// contractual; see TestClassifyPrecedence before changing it.
type Rulebook []Rule

// New builds a rulebook from the two built-in rules plus the given user
// rules, appended in declaration order.
func New(userRules ...Rule) Rulebook {
	rb := Rulebook{
		{
			Files:        []string{"**"},
			CacheControl: CacheControlNoCache,
		},
		{
			Files:        []string{"**/*.js", "**/*.css"},
			CacheControl: CacheControlImmutable,
		},
	}
	return append(rb, userRules...)
}

// Validate checks every glob pattern in the rulebook. Malformed patterns are
// a configuration error and must abort planning before any file is touched.
func (rb Rulebook) Validate() error {
	for i, rule := range rb {
		for _, pattern := range rule.Files {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("rule %d: invalid file pattern %q", i, pattern)
			}
		}
		for _, pattern := range rule.Ignore {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("rule %d: invalid ignore pattern %q", i, pattern)
			}
		}
	}
	return nil
}

// Classify assigns exactly one rule to every path. The catch-all guarantees
// full coverage, so the returned map has one entry per input path.
func (rb Rulebook) Classify(paths []string) map[string]*Rule {
	classified := make(map[string]*Rule, len(paths))
	for i := len(rb) - 1; i >= 0; i-- {
		rule := &rb[i]
		for _, path := range paths {
			if _, done := classified[path]; done {
				continue
			}
			if rule.matches(path) {
				classified[path] = rule
			}
		}
	}
	return classified
}

// matches reports whether path is selected by the rule's file patterns and
// not excluded by its ignore patterns. Patterns are validated up front, so
// match errors cannot occur here.
func (r *Rule) matches(path string) bool {
	for _, pattern := range r.Ignore {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return false
		}
	}
	for _, pattern := range r.Files {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}
