package categorize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wasilibs/go-re2"

	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/policy"
)

// Field selects which part of a message a rule inspects.
type Field string

const (
	FieldSubject Field = "subject"
	FieldSender  Field = "sender"
	FieldBody    Field = "body"
	FieldAny     Field = "any"
)

// DefaultCategory is assigned when no rule matches.
const DefaultCategory = policy.CategoryPlayerNotifications

// Rule assigns Category to messages whose Field contains every keyword in
// All, at least one keyword in Any (when Any is set), and matches Pattern
// (when Pattern is set). Keywords compare case-insensitively.
type Rule struct {
	Name     string   `yaml:"name" json:"name"`
	Category string   `yaml:"category" json:"category"`
	Field    Field    `yaml:"field" json:"field"`
	All      []string `yaml:"all,omitempty" json:"all,omitempty"`
	Any      []string `yaml:"any,omitempty" json:"any,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

type compiledRule struct {
	Rule
	all []string
	any []string
	re  *re2.Regexp
}

// Categorizer maps messages to categories with an ordered rule list.
// The first matching rule wins. It is immutable and safe for concurrent use.
type Categorizer struct {
	rules           []compiledRule
	defaultCategory string
}

// New compiles rules. An empty defaultCategory selects DefaultCategory.
func New(rules []Rule, defaultCategory string) (*Categorizer, error) {
	if defaultCategory == "" {
		defaultCategory = DefaultCategory
	}

	c := &Categorizer{
		rules:           make([]compiledRule, 0, len(rules)),
		defaultCategory: defaultCategory,
	}

	for i, r := range rules {
		if r.Category == "" {
			return nil, fmt.Errorf("rule %d (%s): category cannot be empty", i, r.Name)
		}
		if r.Field == "" {
			r.Field = FieldSubject
		}
		switch r.Field {
		case FieldSubject, FieldSender, FieldBody, FieldAny:
		default:
			return nil, fmt.Errorf("rule %d (%s): unknown field %q", i, r.Name, r.Field)
		}
		if len(r.All) == 0 && len(r.Any) == 0 && r.Pattern == "" {
			return nil, fmt.Errorf("rule %d (%s): needs keywords or a pattern", i, r.Name)
		}

		cr := compiledRule{Rule: r, all: lowerAll(r.All), any: lowerAll(r.Any)}
		if r.Pattern != "" {
			re, err := re2.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %d (%s): invalid pattern: %w", i, r.Name, err)
			}
			cr.re = re
		}
		c.rules = append(c.rules, cr)
	}

	return c, nil
}

// NewDefault returns a Categorizer using DefaultRules.
func NewDefault() *Categorizer {
	c, err := New(DefaultRules(), DefaultCategory)
	if err != nil {
		panic(fmt.Sprintf("default categorizer rules are invalid: %v", err))
	}
	return c
}

// Categorize returns the category of msg. It never fails.
func (c *Categorizer) Categorize(msg mailbox.Message) string {
	subject := strings.ToLower(msg.Subject)
	sender := strings.ToLower(msg.Sender)
	body := strings.ToLower(msg.Body)

	for _, r := range c.rules {
		var text string
		switch r.Field {
		case FieldSubject:
			text = subject
		case FieldSender:
			text = sender
		case FieldBody:
			text = body
		case FieldAny:
			text = subject + "\n" + sender + "\n" + body
		}
		if r.matches(text) {
			return r.Category
		}
	}
	return c.defaultCategory
}

// Categories returns every category the categorizer can produce, sorted.
func (c *Categorizer) Categories() []string {
	set := map[string]bool{c.defaultCategory: true}
	for _, r := range c.rules {
		set[r.Category] = true
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Unregistered returns the categories this categorizer can produce that
// have no policy in table.
func (c *Categorizer) Unregistered(table *policy.Table) []string {
	var missing []string
	for _, cat := range c.Categories() {
		if !table.Has(cat) {
			missing = append(missing, cat)
		}
	}
	return missing
}

func (r compiledRule) matches(text string) bool {
	for _, kw := range r.all {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	if len(r.any) > 0 {
		found := false
		for _, kw := range r.any {
			if strings.Contains(text, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.re != nil && !r.re.MatchString(text) {
		return false
	}
	return true
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
