// Mailsweep keeps a size-limited mailbox under its storage quota.
//
// It categorizes messages, applies a per-category retention policy and
// escalates to shorter retention as the mailbox approaches its quota.
//
// Usage:
//
//	# Run the scheduler and the admin API
//	mailsweep run --config /etc/mailsweep/config.yaml
//
//	# Show current usage
//	mailsweep stats
//
//	# Delete promotional mail older than a week
//	mailsweep cleanup --category promotional --retention-days 7
//
//	# Show audited runs from the last week
//	mailsweep audit --since 7d
package main

func main() {
	Execute()
}
