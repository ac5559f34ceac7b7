// Package notify raises operator-facing alerts when the engine hits a
// condition an operator should act on: a janitor contradiction flagged
// for review, or a capacity-exceeded audit event. It adapts the
// teacher's terminal-title-flash + Windows-toast notification pair to
// those two triggers.
package notify

import (
	"fmt"
	"log"
	"sync"
)

// Severity classifies an Alert for channel routing and logging level.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a single operator-facing notification.
type Alert struct {
	Severity Severity
	Source   string // e.g. "janitor.contradiction", "audit.capacity_exceeded"
	Message  string
}

// Channel is one notification delivery mechanism.
type Channel interface {
	Notify(a Alert) error
	IsSupported() bool
}

// Manager fans an Alert out to every supported Channel, logging
// failures without letting one channel's error block the others —
// mirrors the teacher's Manager.NotifySupervisorNeedsInput.
type Manager struct {
	mu       sync.RWMutex
	channels []Channel
	enabled  bool
	logger   *log.Logger
}

// Config selects which channels a Manager wires in.
type Config struct {
	EnableTerminal bool
	EnableToast    bool
	AppID          string
	DashboardURL   string
	Logger         *log.Logger
}

// NewManager constructs a Manager from Config, wiring TerminalChannel
// and/or ToastChannel per the enabled flags.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	m := &Manager{logger: cfg.Logger}
	if cfg.EnableTerminal {
		m.channels = append(m.channels, NewTerminalChannel())
	}
	if cfg.EnableToast {
		m.channels = append(m.channels, NewToastChannel(cfg.AppID, cfg.DashboardURL))
	}
	m.enabled = len(m.channels) > 0
	return m
}

// Notify fans the alert out to every supported channel.
func (m *Manager) Notify(a Alert) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.enabled {
		return nil
	}

	var errs []error
	for _, ch := range m.channels {
		if !ch.IsSupported() {
			continue
		}
		if err := ch.Notify(a); err != nil {
			m.logger.Printf("[NOTIFY] channel failed for %s: %v", a.Source, err)
			errs = append(errs, err)
		} else {
			m.logger.Printf("[NOTIFY] %s alert delivered: %s", a.Severity, a.Message)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d of %d channels failed: %v", len(errs), len(m.channels), errs)
	}
	return nil
}

// NotifyContradictionFlagged raises an alert for a janitor contradiction
// pass that flagged a memory for review rather than silently resolving it.
func (m *Manager) NotifyContradictionFlagged(memoryID, reason string) error {
	return m.Notify(Alert{
		Severity: SeverityWarning,
		Source:   "janitor.contradiction",
		Message:  fmt.Sprintf("memory %s flagged for review: %s", memoryID, reason),
	})
}

// NotifyCapacityExceeded raises an alert when a bounded resource (job
// queue, registry, pool, handoff table) rejects work at its cap.
func (m *Manager) NotifyCapacityExceeded(resource string) error {
	return m.Notify(Alert{
		Severity: SeverityCritical,
		Source:   "audit.capacity_exceeded",
		Message:  fmt.Sprintf("%s is at capacity and rejecting new work", resource),
	})
}
