// Package bus mirrors room events to other processes. The server publishes
// every outbound event under its room; watchers subscribe to one room or to
// all of them with "*".
package bus

import (
	"context"
	"strings"
	"sync"
)

// AllRooms subscribes to every room.
const AllRooms = "*"

// Publisher sends a room event payload.
type Publisher interface {
	Publish(ctx context.Context, room string, payload []byte) error
}

// Subscriber streams room event payloads until ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, room string) (<-chan []byte, error)
}

// Bus is both ends plus cleanup.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// Channel returns the channel name for a room under prefix.
func Channel(prefix, room string) string {
	if prefix == "" {
		prefix = "marketduel"
	}
	return prefix + ":room:" + room
}

// hasPattern returns true when the channel needs a pattern subscription.
func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

// Nop drops everything. It is the default when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, []byte) error { return nil }

func (Nop) Close() error { return nil }

// Memory is an in-process bus for tests and single-binary setups. Slow
// subscribers miss messages rather than block publishers.
type Memory struct {
	mu   sync.RWMutex
	subs map[string][]chan []byte
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]chan []byte)}
}

func (m *Memory) Publish(_ context.Context, room string, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, key := range []string{room, AllRooms} {
		for _, ch := range m.subs[key] {
			select {
			case ch <- payload:
			default:
			}
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, room string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)

	m.mu.Lock()
	m.subs[room] = append(m.subs[room], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subs[room]
		for i, c := range subs {
			if c == ch {
				m.subs[room] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

func (m *Memory) Close() error {
	return nil
}
