package policy

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"mercator-hq/mailsweep/pkg/mailbox"
)

// Table is the retention policy table, keyed by category. It is safe for
// concurrent use. Categories are never removed from a table once present,
// since messages of that category may still exist in the store.
type Table struct {
	mu       sync.RWMutex
	policies map[string]mailbox.RetentionPolicy
	logger   *slog.Logger
}

// NewTable creates a table holding the given policies.
func NewTable(policies ...mailbox.RetentionPolicy) (*Table, error) {
	t := &Table{
		policies: make(map[string]mailbox.RetentionPolicy, len(policies)),
		logger:   slog.Default().With("component", "mailbox.policy"),
	}
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := t.policies[p.Category]; dup {
			return nil, mailbox.NewPolicyError(p.Category, fmt.Errorf("%w: duplicate category", mailbox.ErrInvalidPolicy))
		}
		t.policies[p.Category] = p
	}
	return t, nil
}

// NewDefaultTable creates a table holding DefaultPolicies.
func NewDefaultTable() *Table {
	t, err := NewTable(DefaultPolicies()...)
	if err != nil {
		panic(fmt.Sprintf("default retention policies are invalid: %v", err))
	}
	return t
}

// Get returns the policy for category, or ErrPolicyNotFound.
func (t *Table) Get(category string) (mailbox.RetentionPolicy, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.policies[category]
	if !ok {
		return mailbox.RetentionPolicy{}, mailbox.NewPolicyError(category, mailbox.ErrPolicyNotFound)
	}
	return p, nil
}

// Has reports whether category has a policy.
func (t *Table) Has(category string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.policies[category]
	return ok
}

// Upsert inserts or replaces one policy.
func (t *Table) Upsert(p mailbox.RetentionPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	old, existed := t.policies[p.Category]
	t.policies[p.Category] = p
	t.mu.Unlock()

	if existed {
		t.logger.Info("retention policy updated",
			"category", p.Category,
			"old_retention_days", old.RetentionDays,
			"retention_days", p.RetentionDays,
			"archive_before_delete", p.ArchiveBeforeDelete,
		)
	} else {
		t.logger.Info("retention policy added",
			"category", p.Category,
			"retention_days", p.RetentionDays,
			"priority", p.Priority,
		)
	}
	return nil
}

// List returns all policies ordered by priority (high first), then category.
func (t *Table) List() []mailbox.RetentionPolicy {
	t.mu.RLock()
	out := make([]mailbox.RetentionPolicy, 0, len(t.policies))
	for _, p := range t.policies {
		out = append(out, p)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Len returns the number of policies.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.policies)
}

// Replace swaps in a new policy set atomically. All policies are validated
// before any change is made. Categories missing from policies are retained
// and returned so the caller can report them.
func (t *Table) Replace(policies []mailbox.RetentionPolicy) ([]string, error) {
	next, err := NewTable(policies...)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var retained []string
	for category, p := range t.policies {
		if _, ok := next.policies[category]; !ok {
			next.policies[category] = p
			retained = append(retained, category)
		}
	}
	sort.Strings(retained)
	t.policies = next.policies

	return retained, nil
}
