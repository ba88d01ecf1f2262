package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Event is a transient, fire-and-forget user notification. Producers
// never wait on delivery and never depend on how an event is rendered.
type Event struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewEvent(level Level, title, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}
}

type Sink interface {
	Notify(e Event)
}

// Log writes events to the application log. It is the fallback sink
// when no user-facing surface is attached.
type Log struct{}

func (Log) Notify(e Event) {
	entry := log.WithFields(log.Fields{
		"id":    e.ID,
		"title": e.Title,
	})
	switch e.Level {
	case LevelError:
		entry.Error(e.Message)
	default:
		entry.Info(e.Message)
	}
}

// Buffer retains the most recent events so a polling surface can drain
// them. It forwards every event to the next sink.
type Buffer struct {
	mu     sync.Mutex
	events []Event
	max    int
	next   Sink
}

func NewBuffer(max int, next Sink) *Buffer {
	return &Buffer{
		max:  max,
		next: next,
	}
}

func (s *Buffer) Notify(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	if len(s.events) > s.max {
		s.events = s.events[len(s.events)-s.max:]
	}
	s.mu.Unlock()
	if s.next != nil {
		s.next.Notify(e)
	}
}

// Drain returns the buffered events and clears the buffer.
func (s *Buffer) Drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events
	s.events = nil
	return events
}
