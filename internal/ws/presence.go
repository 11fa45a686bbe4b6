package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pliu/courier/internal/metrics"
	"github.com/pliu/courier/internal/store"
)

// PresenceTracker turns registry population changes into debounced
// presence-update broadcasts. Rapid offline/online flaps inside the debounce
// window collapse into no broadcast at all: the flush reads the registry's
// current state instead of replaying intermediate transitions.
type PresenceTracker struct {
	reg      *Registry
	store    store.Store
	debounce time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	pending map[int64]*time.Timer
	known   map[int64]bool // last broadcast state; absent means offline
	stopped bool
}

func NewPresenceTracker(reg *Registry, st store.Store, debounce time.Duration, log *slog.Logger) *PresenceTracker {
	return &PresenceTracker{
		reg:      reg,
		store:    st,
		debounce: debounce,
		log:      log,
		pending:  make(map[int64]*time.Timer),
		known:    make(map[int64]bool),
	}
}

// UserOnline and UserOffline are the registry's transition hooks.
func (p *PresenceTracker) UserOnline(userID int64)  { p.schedule(userID) }
func (p *PresenceTracker) UserOffline(userID int64) { p.schedule(userID) }

func (p *PresenceTracker) schedule(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if _, exists := p.pending[userID]; exists {
		// A flush is already scheduled; it will pick up the final state.
		return
	}
	p.pending[userID] = time.AfterFunc(p.debounce, func() { p.flush(userID) })
}

func (p *PresenceTracker) flush(userID int64) {
	p.mu.Lock()
	delete(p.pending, userID)
	online := p.reg.IsOnline(userID)
	if prev, ok := p.known[userID]; (ok && prev == online) || (!ok && !online) {
		p.mu.Unlock()
		return
	}
	if online {
		p.known[userID] = true
	} else {
		delete(p.known, userID)
	}
	p.mu.Unlock()

	now := time.Now()
	if err := p.store.UpdateUserPresence(userID, online, now); err != nil {
		p.log.Warn("failed to persist presence", "user_id", userID, "error", err)
	}

	metrics.PresenceBroadcasts.Inc()
	p.log.Info("presence transition", "user_id", userID, "online", online)
	p.reg.Broadcast(Event{Type: evtPresenceUpdate, Data: presencePayload{UserID: userID, IsOnline: online}})
}

// Stop cancels pending flushes. Used on shutdown and in tests.
func (p *PresenceTracker) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	for id, t := range p.pending {
		t.Stop()
		delete(p.pending, id)
	}
}
