package ws

import (
	"hash/fnv"
	"sync"

	"chat-service/internal/metrics"
)

const shardCount = 32

// Registry tracks every live connection per user id and routes fan-out.
// It is sharded by user id so that churn or fan-out on one set of users
// never serializes behind another's.
type Registry struct {
	shards [shardCount]registryShard
}

type registryShard struct {
	mu    sync.RWMutex
	conns map[string]map[*Conn]struct{}
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].conns = make(map[string]map[*Conn]struct{})
	}
	return r
}

func (r *Registry) shard(userID string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &r.shards[h.Sum32()%shardCount]
}

// Register adds a connection to the user's set. Duplicate registrations are
// harmless; a user holds 0..N connections.
func (r *Registry) Register(c *Conn) {
	s := r.shard(c.userID)
	s.mu.Lock()
	set, ok := s.conns[c.userID]
	if !ok {
		set = make(map[*Conn]struct{})
		s.conns[c.userID] = set
	}
	set[c] = struct{}{}
	s.mu.Unlock()

	metrics.IncWSConnected()
}

// Unregister removes one connection; a no-op when it is already gone.
func (r *Registry) Unregister(c *Conn) {
	s := r.shard(c.userID)
	s.mu.Lock()
	set, ok := s.conns[c.userID]
	if ok {
		if _, present := set[c]; present {
			delete(set, c)
			if len(set) == 0 {
				delete(s.conns, c.userID)
			}
			metrics.IncWSDisconnected()
		}
	}
	s.mu.Unlock()

	c.close()
}

// SendToUser delivers the event to every live connection of the user.
// Offline users are a silent drop; durable state lives in the stores, not
// here. The shard lock is held only to snapshot the set; the actual sends
// are non-blocking enqueues outside it.
func (r *Registry) SendToUser(userID, event string, data any) {
	s := r.shard(userID)
	s.mu.RLock()
	set := s.conns[userID]
	targets := make([]*Conn, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(outbound{Event: event, Data: data}) {
			metrics.IncWSEventDropped(event)
		}
	}
}

// IsOnline reports whether the user holds at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns[userID]) > 0
}

// ConnectionCount returns the total number of live connections.
func (r *Registry) ConnectionCount() int {
	total := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, set := range s.conns {
			total += len(set)
		}
		s.mu.RUnlock()
	}
	return total
}
