package cli

import (
	"errors"
	"fmt"
	"testing"

	"mercator-hq/mailsweep/pkg/mailbox"
)

func TestErrorMessages(t *testing.T) {
	storeDown := fmt.Errorf("count messages: %w", mailbox.ErrStoreUnavailable)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "config error with field",
			err:  NewConfigError("mailbox.quota_bytes", "must be positive"),
			want: "config error in mailbox.quota_bytes: must be positive",
		},
		{
			name: "config error without field",
			err:  NewConfigError("", "failed to load config: open mailsweep.yaml: no such file or directory"),
			want: "config error: failed to load config: open mailsweep.yaml: no such file or directory",
		},
		{
			name: "command error",
			err:  NewCommandError("stats", storeDown),
			want: "command stats failed: count messages: " + mailbox.ErrStoreUnavailable.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	err := NewCommandError("cleanup", fmt.Errorf("category tickets: %w", mailbox.ErrPolicyNotFound))

	if !errors.Is(err, mailbox.ErrPolicyNotFound) {
		t.Error("errors.Is() should see through CommandError")
	}
	if errors.Is(err, mailbox.ErrRunInProgress) {
		t.Error("errors.Is() matched an unrelated sentinel")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", NewConfigError("", "bad yaml"), ExitConfig},
		{"wrapped config", NewCommandError("run", NewConfigError("mailbox.quota_bytes", "must be positive")), ExitConfig},
		{"run in progress", NewCommandError("cleanup", fmt.Errorf("trigger: %w", mailbox.ErrRunInProgress)), ExitRunBlocked},
		{"store unavailable", NewCommandError("stats", mailbox.ErrStoreUnavailable), ExitFailure},
		{"other", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
