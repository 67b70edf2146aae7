package notify

import (
	"time"

	"berth/internal/api"
)

// MessageKind identifies a push message.
type MessageKind string

const (
	KindLifecycle MessageKind = "lifecycle-status"
	KindNotice    MessageKind = "notice"
	KindProgress  MessageKind = "progress"
	KindCatalog   MessageKind = "catalog-changed"
)

// Message is one server-to-client push message. Only the fields relevant to
// Kind are set.
type Message struct {
	Kind MessageKind `json:"kind"`

	// lifecycle-status
	SID       string            `json:"sid,omitempty"`
	Name      string            `json:"name,omitempty"`
	Status    api.ServiceStatus `json:"status,omitempty"`
	Lifecycle api.Lifecycle     `json:"lifecycle,omitempty"`
	Cause     string            `json:"cause,omitempty"`

	// notice
	Level api.NoticeLevel `json:"level,omitempty"`

	// notice and progress; an empty progress text clears the operation
	Text        string `json:"text"`
	OperationID string `json:"operationId,omitempty"`

	At time.Time `json:"at"`
}

func lifecycleMessage(ev api.LifecycleEvent) Message {
	return Message{
		Kind:      KindLifecycle,
		SID:       ev.SID,
		Name:      ev.Name,
		Status:    ev.Status,
		Lifecycle: ev.Lifecycle,
		Cause:     ev.Cause,
		At:        ev.At,
	}
}

func noticeMessage(n api.Notice, text string) Message {
	return Message{Kind: KindNotice, Level: n.Level, Text: text, At: n.At}
}

func progressMessage(p api.Progress, at time.Time) Message {
	return Message{Kind: KindProgress, OperationID: p.OperationID, Text: p.Text, At: at}
}

func catalogMessage(c api.CatalogChanged) Message {
	return Message{Kind: KindCatalog, Text: c.Reason, At: c.At}
}
