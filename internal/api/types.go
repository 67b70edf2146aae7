package api

import (
	"time"
)

// ServiceStatus is the externally visible status of a managed service.
type ServiceStatus string

const (
	StatusStarting ServiceStatus = "STARTING"
	StatusRunning  ServiceStatus = "RUNNING"
	StatusStopping ServiceStatus = "STOPPING"
	StatusStopped  ServiceStatus = "STOPPED"
)

// ServiceDescriptor describes one service directory in the workspace.
// Descriptors are recomputed on every scan and never persisted.
type ServiceDescriptor struct {
	Name  string `json:"name" yaml:"name"`
	SID   string `json:"sid" yaml:"sid"`
	Group string `json:"group,omitempty" yaml:"group,omitempty"`
	Path  string `json:"path" yaml:"path"`

	// Settings is the parsed per-service settings file, zero when absent.
	Settings ServiceSettings `json:"-" yaml:"-"`
}

// ServiceSettings is the optional per-service settings file.
type ServiceSettings struct {
	Group     string            `yaml:"group,omitempty"`
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	AutoStart bool              `yaml:"autoStart,omitempty"`
}

// ServiceInfo pairs a descriptor with its derived status.
type ServiceInfo struct {
	ServiceDescriptor
	Status ServiceStatus `json:"status"`
}

// ServiceGroup is a node of the catalog tree. Children are either
// services or nested groups, never both in the same entry.
type ServiceGroup struct {
	Name     string       `json:"name"`
	Children []GroupEntry `json:"children"`
}

// GroupEntry is one child of a ServiceGroup.
type GroupEntry struct {
	Service *ServiceDescriptor `json:"service,omitempty"`
	Group   *ServiceGroup      `json:"group,omitempty"`
}

// Lifecycle is a lifecycle transition of a managed service.
type Lifecycle string

const (
	LifecyclePreStart         Lifecycle = "PRE_START"
	LifecycleAfterStarted     Lifecycle = "AFTER_STARTED"
	LifecycleStartFailed      Lifecycle = "START_FAILED"
	LifecyclePreStop          Lifecycle = "PRE_STOP"
	LifecycleAfterStopped     Lifecycle = "AFTER_STOPPED"
	LifecycleStopFailed       Lifecycle = "STOP_FAILED"
	LifecycleExceptionOffline Lifecycle = "EXCEPTION_OFFLINE"
)

// Status returns the status a client should display after the transition.
func (l Lifecycle) Status() ServiceStatus {
	switch l {
	case LifecyclePreStart:
		return StatusStarting
	case LifecyclePreStop:
		return StatusStopping
	case LifecycleAfterStarted, LifecycleStopFailed:
		return StatusRunning
	default:
		return StatusStopped
	}
}

// LifecycleEvent is published on every lifecycle transition.
type LifecycleEvent struct {
	SID       string        `json:"sid"`
	Name      string        `json:"name,omitempty"`
	Lifecycle Lifecycle     `json:"lifecycle"`
	Status    ServiceStatus `json:"status"`
	// Cause is set for failures and implicit offline transitions.
	Cause string    `json:"cause,omitempty"`
	At    time.Time `json:"at"`
}

// NewLifecycleEvent builds an event with the status derived from l.
func NewLifecycleEvent(sid, name string, l Lifecycle, cause string) LifecycleEvent {
	return LifecycleEvent{
		SID:       sid,
		Name:      name,
		Lifecycle: l,
		Status:    l.Status(),
		Cause:     cause,
		At:        time.Now(),
	}
}

// NoticeLevel is the severity of an operator notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "INFO"
	NoticeWarn  NoticeLevel = "WARN"
	NoticeError NoticeLevel = "ERROR"
)

// Notice is a human readable message for operators.
type Notice struct {
	Level NoticeLevel `json:"level"`
	Text  string      `json:"text"`
	At    time.Time   `json:"at"`
}

// Progress is the current progress text of a long running operation.
// An empty Text clears the operation's progress slot.
type Progress struct {
	OperationID string `json:"operationId"`
	Text        string `json:"text"`
}

// Done reports whether the progress message clears its slot.
func (p Progress) Done() bool {
	return p.Text == ""
}

// CatalogChanged tells clients to re-read the catalog.
type CatalogChanged struct {
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}
