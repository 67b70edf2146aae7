package notify

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionFull is returned by QueueSession.Send when the client does not
// keep up with the push stream.
var ErrSessionFull = errors.New("session buffer full")

// ErrSessionClosed is returned when sending to a closed session.
var ErrSessionClosed = errors.New("session closed")

// Session is one connected management client.
type Session interface {
	ID() string
	Send(Message) error
	Close() error
}

// QueueSession is a Session backed by a bounded buffer. A transport drains
// Messages and writes them to the client; Send never blocks.
type QueueSession struct {
	id       string
	messages chan Message
	done     chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewQueueSession creates a session buffering up to size messages.
func NewQueueSession(size int) *QueueSession {
	if size <= 0 {
		size = 1
	}
	return &QueueSession{
		id:       uuid.NewString(),
		messages: make(chan Message, size),
		done:     make(chan struct{}),
	}
}

// ID returns the session id.
func (s *QueueSession) ID() string {
	return s.id
}

// Send queues msg or fails if the buffer is full.
func (s *QueueSession) Send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.messages <- msg:
		return nil
	default:
		return ErrSessionFull
	}
}

// Messages returns the outgoing message stream.
func (s *QueueSession) Messages() <-chan Message {
	return s.messages
}

// Done is closed once the session is closed.
func (s *QueueSession) Done() <-chan struct{} {
	return s.done
}

// Close ends the session. It is idempotent.
func (s *QueueSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}
