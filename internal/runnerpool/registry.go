// Package runnerpool provides the runner registry and step dispatcher for
// the coordinator. It tracks connected runners, their platform and their
// available capacity so steps land on a host matching the environment's
// platform binding.
package runnerpool

import (
	"sync"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/gorilla/websocket"
)

// ConnectedRunner represents a runner connection
type ConnectedRunner struct {
	ID            string
	Platform      domain.Platform
	MaxJobs       int
	Slots         int
	Conn          *websocket.Conn
	ConnectedAt   time.Time
	LastHeartbeat time.Time
	mu            sync.Mutex
	writeMu       sync.Mutex // protects Conn writes
}

// UpdateSlots updates available slots (thread-safe)
func (r *ConnectedRunner) UpdateSlots(slots int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Slots = slots
}

// DecrementSlots reduces available slots by 1
func (r *ConnectedRunner) DecrementSlots() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Slots > 0 {
		r.Slots--
	}
}

// SetLastHeartbeat sets the last heartbeat time (thread-safe)
func (r *ConnectedRunner) SetLastHeartbeat(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LastHeartbeat = t
}

// Status returns a snapshot of runner status fields (thread-safe)
func (r *ConnectedRunner) Status() (platform domain.Platform, maxJobs, slots int, connectedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Platform, r.MaxJobs, r.Slots, r.ConnectedAt
}

// WriteMessage sends a message to the runner connection (thread-safe)
func (r *ConnectedRunner) WriteMessage(messageType int, data []byte) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.Conn.WriteMessage(messageType, data)
}

// Registry tracks connected runners
type Registry struct {
	runners map[string]*ConnectedRunner
	mu      sync.RWMutex
}

// NewRegistry creates a new runner registry
func NewRegistry() *Registry {
	return &Registry{
		runners: make(map[string]*ConnectedRunner),
	}
}

// Register adds a runner to the registry
func (g *Registry) Register(r *ConnectedRunner) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r.ConnectedAt = time.Now()
	r.LastHeartbeat = time.Now()
	g.runners[r.ID] = r
}

// Unregister removes a runner from the registry
func (g *Registry) Unregister(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.runners, id)
}

// Get returns a runner by ID
func (g *Registry) Get(id string) *ConnectedRunner {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.runners[id]
}

// Count returns the number of connected runners
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.runners)
}

// CountPlatform returns the number of connected runners for a platform
func (g *Registry) CountPlatform(platform domain.Platform) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for _, r := range g.runners {
		r.mu.Lock()
		p := r.Platform
		r.mu.Unlock()
		if p == platform {
			n++
		}
	}
	return n
}

// FindReady returns a runner for the platform with available slots,
// preferring runners with more free capacity
func (g *Registry) FindReady(platform domain.Platform) *ConnectedRunner {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var best *ConnectedRunner
	var bestSlots int
	for _, r := range g.runners {
		r.mu.Lock()
		slots, p := r.Slots, r.Platform
		r.mu.Unlock()

		if p == platform && slots > 0 && slots > bestSlots {
			best = r
			bestSlots = slots
		}
	}
	return best
}

// All returns all connected runners
func (g *Registry) All() []*ConnectedRunner {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*ConnectedRunner, 0, len(g.runners))
	for _, r := range g.runners {
		result = append(result, r)
	}
	return result
}
