// Package policy holds the retention policy table.
//
// A Table maps each category to a RetentionPolicy. Tables start from
// DefaultPolicies or from a policy file (YAML, JSON or TOML) and can be
// kept in sync with that file by a Watcher:
//
//	table := policy.NewDefaultTable()
//	w, err := policy.NewWatcher("policies.yaml", table, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go w.Watch(ctx)
//
// Categories are never dropped from a table by a reload.
package policy
