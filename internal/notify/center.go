package notify

import "sync"

// DefaultCapacity is how many notifications a Center keeps.
const DefaultCapacity = 10

// Center keeps the most recent notifications, newest first.
type Center struct {
	mu       sync.Mutex
	items    []Notification
	capacity int
}

// NewCenter returns a Center holding at most capacity notifications.
// A non-positive capacity uses DefaultCapacity.
func NewCenter(capacity int) *Center {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Center{capacity: capacity}
}

// Attach subscribes the center to bus.
func (c *Center) Attach(bus *Bus) (detach func()) {
	return bus.Subscribe(c.Add)
}

// Add stores n as unread, dropping the oldest entry when full.
func (c *Center) Add(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n.Read = false
	c.items = append([]Notification{n}, c.items...)
	if len(c.items) > c.capacity {
		c.items = c.items[:c.capacity]
	}
}

// List returns a copy of the stored notifications, newest first.
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notification, len(c.items))
	copy(out, c.items)

	return out
}

// Unread counts notifications not marked as read.
func (c *Center) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, it := range c.items {
		if !it.Read {
			n++
		}
	}

	return n
}

// MarkAsRead flags the notification with id as read.
func (c *Center) MarkAsRead(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Read = true
		}
	}
}

// MarkAllAsRead flags every notification as read.
func (c *Center) MarkAllAsRead() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		c.items[i].Read = true
	}
}

// Remove deletes the notification with id.
func (c *Center) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.items[:0]
	for _, it := range c.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	c.items = kept
}

// Clear deletes every notification.
func (c *Center) Clear() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}
