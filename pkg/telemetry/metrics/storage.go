package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StorageMetrics tracks the last observed mailbox usage.
//
// Metrics:
//   - mailbox_utilization_percent: Used share of the quota (0-100)
//   - mailbox_messages: Message count
//   - mailbox_used_bytes: Bytes used
//   - mailbox_quota_bytes: Configured quota
//   - escalation_mode: 0 normal, 1 warning, 2 critical
type StorageMetrics struct {
	utilization prometheus.Gauge
	messages    prometheus.Gauge
	usedBytes   prometheus.Gauge
	quotaBytes  prometheus.Gauge
	mode        prometheus.Gauge
}

// NewStorageMetrics creates and registers storage gauges.
func NewStorageMetrics(namespace string, registry prometheus.Registerer) *StorageMetrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	sm := &StorageMetrics{
		utilization: gauge("mailbox_utilization_percent", "Mailbox storage utilization in percent of the quota"),
		messages:    gauge("mailbox_messages", "Number of messages in the mailbox"),
		usedBytes:   gauge("mailbox_used_bytes", "Bytes used by the mailbox"),
		quotaBytes:  gauge("mailbox_quota_bytes", "Mailbox quota in bytes"),
		mode:        gauge("escalation_mode", "Current cleanup mode (0 normal, 1 warning, 2 critical)"),
	}

	registry.MustRegister(sm.utilization, sm.messages, sm.usedBytes, sm.quotaBytes, sm.mode)
	return sm
}
