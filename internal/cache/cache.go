// Package cache keeps the most recent messages of every room in memory.
package cache

import (
	"sync"

	"github.com/cwrk-planet/chat-relay/internal/domain"
)

// DefaultLimit is the number of messages retained per room.
const DefaultLimit = 10

// RoomHistory is a bounded, insertion-ordered list of messages. Once full,
// every push evicts the oldest entry regardless of how often it was read.
type RoomHistory struct {
	messages []domain.Message
	limit    int
}

func newRoomHistory(limit int) *RoomHistory {
	return &RoomHistory{messages: make([]domain.Message, 0, limit), limit: limit}
}

func (h *RoomHistory) push(msg domain.Message) {
	h.messages = append(h.messages, msg)
	if len(h.messages) > h.limit {
		// shift in place so the backing array never grows past limit+1
		copy(h.messages, h.messages[1:])
		h.messages = h.messages[:len(h.messages)-1]
	}
}

func (h *RoomHistory) snapshot() []domain.Message {
	out := make([]domain.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Cache maps room names to their history. A single RWMutex guards the whole
// map: readers share it, Append takes it exclusively.
type Cache struct {
	mu    sync.RWMutex
	rooms map[string]*RoomHistory
	limit int
}

// New returns an empty cache retaining limit messages per room; limit <= 0
// means DefaultLimit.
func New(limit int) *Cache {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Cache{
		rooms: make(map[string]*RoomHistory),
		limit: limit,
	}
}

// Get returns a copy of the room's history, oldest first. Unknown rooms yield
// an empty slice.
func (c *Cache) Get(room string) []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h, ok := c.rooms[room]
	if !ok {
		return []domain.Message{}
	}
	return h.snapshot()
}

// Append records msg under msg.Room.
func (c *Cache) Append(msg domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.rooms[msg.Room]
	if !ok {
		h = newRoomHistory(c.limit)
		c.rooms[msg.Room] = h
	}
	h.push(msg)
}

// Rooms reports how many rooms have history.
func (c *Cache) Rooms() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms)
}

// Limit is the per-room retention.
func (c *Cache) Limit() int { return c.limit }
