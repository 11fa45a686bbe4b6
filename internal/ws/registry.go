package ws

import (
	"log/slog"
	"sync"

	"github.com/pliu/courier/internal/metrics"
)

// Conn is one live transport handle owned by exactly one authenticated user.
// Send must not block: implementations enqueue and report failure when the
// connection is dead or its buffer is full.
type Conn interface {
	ID() string
	UserID() int64
	Send(ev Event) error
	Close()
}

// Registry maps user IDs to their active connections. It is the single
// shared mutable structure of the hub; every mutation and the
// emptiness-check-then-signal sequence happen under one lock.
type Registry struct {
	mu    sync.Mutex
	users map[int64]map[string]Conn
	// rooms tracks which connections joined which conversation, mirroring
	// the transport-level room concept clients use for typing scopes.
	rooms map[int64]map[string]Conn

	// Presence transition hooks, invoked outside the lock.
	onOnline  func(userID int64)
	onOffline func(userID int64)

	log *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		users: make(map[int64]map[string]Conn),
		rooms: make(map[int64]map[string]Conn),
		log:   log,
	}
}

// SetPresenceHooks wires the transition callbacks. Must be called before any
// connection is registered.
func (r *Registry) SetPresenceHooks(onOnline, onOffline func(userID int64)) {
	r.onOnline = onOnline
	r.onOffline = onOffline
}

func (r *Registry) Register(c Conn) {
	r.mu.Lock()
	conns, ok := r.users[c.UserID()]
	if !ok {
		conns = make(map[string]Conn)
		r.users[c.UserID()] = conns
	}
	wasOffline := len(conns) == 0
	conns[c.ID()] = c
	r.mu.Unlock()

	metrics.ActiveConnections.Inc()
	r.log.Info("connection registered", "user_id", c.UserID(), "conn_id", c.ID())

	if wasOffline && r.onOnline != nil {
		r.onOnline(c.UserID())
	}
}

// Unregister removes one connection. The offline signal fires only when the
// removal empties the user's set, decided under the same lock as the removal
// so a racing Register cannot produce a spurious offline.
func (r *Registry) Unregister(c Conn) {
	r.mu.Lock()
	conns, ok := r.users[c.UserID()]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, present := conns[c.ID()]; !present {
		r.mu.Unlock()
		return
	}
	delete(conns, c.ID())
	nowOffline := len(conns) == 0
	if nowOffline {
		delete(r.users, c.UserID())
	}
	for convID, members := range r.rooms {
		delete(members, c.ID())
		if len(members) == 0 {
			delete(r.rooms, convID)
		}
	}
	r.mu.Unlock()

	metrics.ActiveConnections.Dec()
	r.log.Info("connection unregistered", "user_id", c.UserID(), "conn_id", c.ID())

	if nowOffline && r.onOffline != nil {
		r.onOffline(c.UserID())
	}
}

// Join adds the connection to a conversation room.
func (r *Registry) Join(conversationID int64, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[conversationID]
	if !ok {
		members = make(map[string]Conn)
		r.rooms[conversationID] = members
	}
	members[c.ID()] = c
}

// Leave removes the connection from a conversation room.
func (r *Registry) Leave(conversationID int64, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[conversationID]
	if !ok {
		return
	}
	delete(members, c.ID())
	if len(members) == 0 {
		delete(r.rooms, conversationID)
	}
}

// SendToUser writes the event to every connection of userID and returns how
// many writes succeeded. A failed write unregisters that connection only; it
// never surfaces as an error to the caller.
func (r *Registry) SendToUser(userID int64, ev Event) int {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.users[userID]))
	for _, c := range r.users[userID] {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	delivered := 0
	for _, c := range conns {
		if err := c.Send(ev); err != nil {
			r.dropConn(c, err)
			continue
		}
		delivered++
	}
	return delivered
}

// SendToUsers fans out to multiple users. Duplicate user IDs do not cause
// duplicate writes to a connection.
func (r *Registry) SendToUsers(userIDs []int64, ev Event) {
	seen := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		r.SendToUser(id, ev)
	}
}

// SendToConversation writes to every connection currently joined to the
// conversation room, skipping connections owned by exceptUserID.
func (r *Registry) SendToConversation(conversationID int64, ev Event, exceptUserID int64) {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.rooms[conversationID]))
	for _, c := range r.rooms[conversationID] {
		if c.UserID() == exceptUserID {
			continue
		}
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		if err := c.Send(ev); err != nil {
			r.dropConn(c, err)
		}
	}
}

// Broadcast sends to every registered connection.
func (r *Registry) Broadcast(ev Event) {
	r.mu.Lock()
	var conns []Conn
	for _, userConns := range r.users {
		for _, c := range userConns {
			conns = append(conns, c)
		}
	}
	r.mu.Unlock()

	for _, c := range conns {
		if err := c.Send(ev); err != nil {
			r.dropConn(c, err)
		}
	}
}

func (r *Registry) dropConn(c Conn, err error) {
	metrics.SendFailures.Inc()
	r.log.Warn("dropping unwritable connection", "user_id", c.UserID(), "conn_id", c.ID(), "error", err)
	r.Unregister(c)
	c.Close()
}

func (r *Registry) IsOnline(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users[userID]) > 0
}

func (r *Registry) ConnectionCount(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users[userID])
}

// OnlineUserIDs returns the IDs of all users with at least one connection.
func (r *Registry) OnlineUserIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	return ids
}
