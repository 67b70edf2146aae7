package notify

import (
	"fmt"
	"time"

	"berth/internal/api"
	"berth/internal/events"
)

// Notifier publishes notices, progress and catalog changes on the bus.
type Notifier struct {
	bus *events.Bus
}

// NewNotifier creates a notifier publishing on bus.
func NewNotifier(bus *events.Bus) *Notifier {
	return &Notifier{bus: bus}
}

// Notice publishes text at level.
func (n *Notifier) Notice(level api.NoticeLevel, text string) {
	events.Publish(n.bus, events.NoticeTopic, api.Notice{Level: level, Text: text, At: time.Now()})
}

func (n *Notifier) Info(format string, args ...any) {
	n.Notice(api.NoticeInfo, fmt.Sprintf(format, args...))
}

func (n *Notifier) Warn(format string, args ...any) {
	n.Notice(api.NoticeWarn, fmt.Sprintf(format, args...))
}

func (n *Notifier) Error(format string, args ...any) {
	n.Notice(api.NoticeError, fmt.Sprintf(format, args...))
}

// Progress sets the progress text of operationID.
func (n *Notifier) Progress(operationID, text string) {
	events.Publish(n.bus, events.ProgressTopic, api.Progress{OperationID: operationID, Text: text})
}

// ClearProgress clears the progress slot of operationID.
func (n *Notifier) ClearProgress(operationID string) {
	n.Progress(operationID, "")
}

// CatalogChanged tells clients to reload the catalog.
func (n *Notifier) CatalogChanged(reason string) {
	events.Publish(n.bus, events.CatalogTopic, api.CatalogChanged{Reason: reason, At: time.Now()})
}
