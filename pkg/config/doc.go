// Package config provides configuration management for mailsweep.
//
// Configuration is read from a YAML file, completed with defaults,
// overridden from the environment and validated.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfigWithEnvOverrides("mailsweep.yaml")
//
// An empty path yields the defaults plus environment overrides, which is
// enough to run against a local SQLite store.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention MAILSWEEP_SECTION_FIELD:
//
//   - MAILSWEEP_MAILBOX_QUOTA_BYTES overrides mailbox.quota_bytes
//   - MAILSWEEP_STORE_IMAP_PASSWORD overrides store.imap.password
//   - MAILSWEEP_NOTIFY_TELEGRAM_CHAT_IDS overrides notify.telegram.chat_ids (comma separated)
//
// A variable that cannot be parsed is reported as a validation error.
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
//	if err := config.Initialize("mailsweep.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// For testing, prefer explicit Config instances over the singleton.
package config
