// Package retention implements the cleanup engine and the scheduler that
// drives it.
//
// The Engine deletes messages older than their category's retention period,
// archiving first where the policy requires it. Retention is shortened in
// critical mode: emergency runs halve it and skip archival, aggressive runs
// scale it by 0.7 and keep archival. Effective retention never drops below
// one day.
//
// The Scheduler polls storage statistics on a cron schedule, notifies when
// utilization crosses a threshold and triggers a run. It owns the run lock:
// concurrent triggers are dropped with mailbox.ErrRunInProgress rather than
// queued.
//
// # Usage
//
//	eng, err := retention.NewEngine(retention.Deps{
//	    Store:      store,
//	    Policies:   policy.NewDefaultTable(),
//	    Monitor:    mon,
//	    Controller: escalation.NewDefault(),
//	    Archive:    sink,
//	}, retention.DefaultConfig())
//
//	result, err := eng.Run(ctx, mailbox.ModeWarning, false)
package retention
