// Package health provides liveness and readiness probes for the mailsweep
// daemon.
//
// Liveness (/health) answers 200 while the process serves requests.
// Readiness (/ready) runs the registered component checks concurrently,
// each under its own timeout, and answers 503 when any fails:
//
//	checker := health.New(5 * time.Second)
//	checker.Register("store", health.PingCheck(mailStore))
//	checker.Register("audit", health.PingCheck(auditLog))
//	checker.Register("scheduler", health.RunningCheck(scheduler))
//	checker.Mount(mux)
package health
