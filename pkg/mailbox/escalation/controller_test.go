package escalation

import (
	"testing"

	"mercator-hq/mailsweep/pkg/mailbox"
)

func TestController_DecideMode(t *testing.T) {
	c := NewDefault()

	tests := []struct {
		utilization float64
		want        mailbox.Mode
	}{
		{0, mailbox.ModeNormal},
		{60, mailbox.ModeNormal},
		{84.99, mailbox.ModeNormal},
		{85, mailbox.ModeWarning},
		{94.99, mailbox.ModeWarning},
		{95, mailbox.ModeCritical},
		{100, mailbox.ModeCritical},
	}

	for _, tt := range tests {
		got := c.DecideMode(mailbox.StorageStats{UtilizationPercent: tt.utilization})
		if got != tt.want {
			t.Errorf("DecideMode(%v%%) = %v, want %v", tt.utilization, got, tt.want)
		}
	}
}

func TestController_Monotonic(t *testing.T) {
	c := NewDefault()

	prev := c.ModeFor(0)
	for u := 0.0; u <= 100; u += 0.25 {
		mode := c.ModeFor(u)
		if mode < prev {
			t.Fatalf("ModeFor(%v) = %v, lower than %v at a smaller utilization", u, mode, prev)
		}
		prev = mode
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name              string
		warning, critical float64
		wantErr           bool
	}{
		{"defaults", 0.85, 0.95, false},
		{"critical at full", 0.5, 1, false},
		{"inverted", 0.95, 0.85, true},
		{"equal", 0.9, 0.9, true},
		{"zero warning", 0, 0.9, true},
		{"critical above one", 0.9, 1.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.warning, tt.critical)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSeverity(t *testing.T) {
	if Severity(mailbox.ModeCritical) != mailbox.SeverityCritical {
		t.Error("critical mode should map to critical severity")
	}
	if Severity(mailbox.ModeWarning) != mailbox.SeverityWarning {
		t.Error("warning mode should map to warning severity")
	}
	if Severity(mailbox.ModeNormal) != mailbox.SeverityNotice {
		t.Error("normal mode should map to notice severity")
	}
}

func TestRecommendations(t *testing.T) {
	tests := []struct {
		utilization float64
		wantCount   int
	}{
		{50, 0},
		{70, 0},
		{75, 2},
		{85, 3},
		{96, 4},
	}

	for _, tt := range tests {
		if got := Recommendations(tt.utilization); len(got) != tt.wantCount {
			t.Errorf("Recommendations(%v) returned %d items, want %d", tt.utilization, len(got), tt.wantCount)
		}
	}
}
