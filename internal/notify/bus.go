package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-facing message.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Level     Level     `json:"level"`
	Read      bool      `json:"read"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus delivers notifications to every subscriber. It is passed explicitly
// to whatever needs to emit notifications.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]func(Notification)
	nextID int
	now    func() time.Time
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Notification)), now: time.Now}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Notification)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish stamps a notification and hands it to every subscriber
// synchronously. A nil bus drops the notification.
func (b *Bus) Publish(title, message string, level Level) {
	if b == nil {
		return
	}

	n := Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   message,
		Level:     level,
		Timestamp: b.now(),
	}

	b.mu.RLock()
	subs := make([]func(Notification), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(n)
	}
}
