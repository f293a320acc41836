// Package mailbox defines the core model of the mailbox retention engine:
// retention policies, message metadata, storage statistics, cleanup results,
// the collaborator interfaces the engine depends on, and the error taxonomy.
//
// # Architecture
//
// The engine is split into small packages that all speak the types defined
// here:
//
//  1. policy     - RetentionPolicyTable, keyed by category
//  2. categorize - maps a message to a category with ordered rules
//  3. monitor    - computes StorageStats from a MailStore
//  4. escalation - maps StorageStats to a Mode (Normal, Warning, Critical)
//  5. retention  - CleanupEngine and Scheduler
//  6. audit      - append-only log of CleanupResults
//
// Concrete MailStore, ArchiveSink and Notifier adapters live in the store,
// archive and notify packages.
//
// # Cleanup Flow
//
//	Scheduler tick
//	     ↓
//	StorageMonitor.GetStats → EscalationController.DecideMode
//	     ↓
//	CleanupEngine.Run (per category, oldest first)
//	     ↓
//	ArchiveSink.Archive (if required) → MailStore.Delete
//	     ↓
//	AuditLog.Append(CleanupResult)
//
// # Error Handling
//
// Per-message failures never abort a run. They are recorded as strings in
// CleanupResult.Errors and the run continues. Archive failures are
// fail-closed: the message is not deleted.
package mailbox
