// Package escalation maps storage utilization onto a cleanup mode.
//
// Utilization below the warning threshold is Normal, between warning and
// critical is Warning, and at or above critical is Critical. The mapping
// is monotonic: more usage never yields a less severe mode.
package escalation

import (
	"fmt"

	"mercator-hq/mailsweep/pkg/mailbox"
)

const (
	// DefaultWarningThreshold is the utilization fraction that starts
	// Warning mode.
	DefaultWarningThreshold = 0.85

	// DefaultCriticalThreshold is the utilization fraction that starts
	// Critical mode.
	DefaultCriticalThreshold = 0.95
)

// Controller decides the cleanup mode from storage statistics.
type Controller struct {
	warning  float64
	critical float64
}

// New creates a Controller. Thresholds are fractions with
// 0 < warning < critical <= 1.
func New(warning, critical float64) (*Controller, error) {
	if warning <= 0 || warning >= critical || critical > 1 {
		return nil, fmt.Errorf("invalid thresholds: need 0 < warning (%v) < critical (%v) <= 1", warning, critical)
	}
	return &Controller{warning: warning, critical: critical}, nil
}

// NewDefault creates a Controller with the default thresholds.
func NewDefault() *Controller {
	return &Controller{warning: DefaultWarningThreshold, critical: DefaultCriticalThreshold}
}

// Warning returns the warning threshold fraction.
func (c *Controller) Warning() float64 { return c.warning }

// Critical returns the critical threshold fraction.
func (c *Controller) Critical() float64 { return c.critical }

// DecideMode returns the mode for stats.
func (c *Controller) DecideMode(stats mailbox.StorageStats) mailbox.Mode {
	return c.ModeFor(stats.UtilizationPercent)
}

// ModeFor returns the mode for a utilization percentage (0-100).
func (c *Controller) ModeFor(utilizationPercent float64) mailbox.Mode {
	switch {
	case utilizationPercent >= c.critical*100:
		return mailbox.ModeCritical
	case utilizationPercent >= c.warning*100:
		return mailbox.ModeWarning
	default:
		return mailbox.ModeNormal
	}
}

// Severity maps a mode to a notification severity.
func Severity(mode mailbox.Mode) mailbox.Severity {
	switch mode {
	case mailbox.ModeCritical:
		return mailbox.SeverityCritical
	case mailbox.ModeWarning:
		return mailbox.SeverityWarning
	default:
		return mailbox.SeverityNotice
	}
}
