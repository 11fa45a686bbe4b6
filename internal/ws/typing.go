package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pliu/courier/internal/metrics"
	"github.com/pliu/courier/internal/store"
)

var errNotParticipant = errors.New("not a conversation participant")

type typingKey struct {
	conversationID int64
	userID         int64
}

// TypingCoordinator broadcasts ephemeral typing state. Every active entry
// carries an expiry timer; a client that vanishes mid-type is healed by the
// implicit isTyping=false broadcast when the timer fires. Nothing here is
// persisted.
type TypingCoordinator struct {
	reg    *Registry
	store  store.Store
	expiry time.Duration
	log    *slog.Logger

	mu      sync.Mutex
	timers  map[typingKey]*time.Timer
	stopped bool
}

func NewTypingCoordinator(reg *Registry, st store.Store, expiry time.Duration, log *slog.Logger) *TypingCoordinator {
	return &TypingCoordinator{
		reg:    reg,
		store:  st,
		expiry: expiry,
		log:    log,
		timers: make(map[typingKey]*time.Timer),
	}
}

// SetTyping updates the typing state of userID in the conversation and
// broadcasts the change to the other joined connections. isTyping=true
// refreshes the expiry deadline.
func (tc *TypingCoordinator) SetTyping(conversationID, userID int64, isTyping bool) error {
	conv, err := tc.store.GetConversation(conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return errNotParticipant
	}

	key := typingKey{conversationID, userID}

	tc.mu.Lock()
	if tc.stopped {
		tc.mu.Unlock()
		return nil
	}
	if t, ok := tc.timers[key]; ok {
		t.Stop()
		delete(tc.timers, key)
	}
	if isTyping {
		tc.timers[key] = time.AfterFunc(tc.expiry, func() { tc.expire(key) })
	}
	tc.mu.Unlock()

	tc.broadcast(conversationID, userID, isTyping)
	return nil
}

// expire fires when no refresh arrived inside the expiry window.
func (tc *TypingCoordinator) expire(key typingKey) {
	tc.mu.Lock()
	if _, ok := tc.timers[key]; !ok {
		tc.mu.Unlock()
		return
	}
	delete(tc.timers, key)
	tc.mu.Unlock()

	tc.log.Debug("typing entry expired", "conversation_id", key.conversationID, "user_id", key.userID)
	tc.broadcast(key.conversationID, key.userID, false)
}

func (tc *TypingCoordinator) broadcast(conversationID, userID int64, isTyping bool) {
	metrics.TypingBroadcasts.Inc()
	tc.reg.SendToConversation(conversationID, Event{
		Type: evtTypingUpdate,
		Data: typingPayload{ConversationID: conversationID, UserID: userID, IsTyping: isTyping},
	}, userID)
}

// IsTyping reports whether userID currently has an unexpired typing entry.
func (tc *TypingCoordinator) IsTyping(conversationID, userID int64) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	_, ok := tc.timers[typingKey{conversationID, userID}]
	return ok
}

// Stop cancels all expiry timers. State is reconstructable as empty, so a
// restart simply begins with no one typing.
func (tc *TypingCoordinator) Stop() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.stopped = true
	for key, t := range tc.timers {
		t.Stop()
		delete(tc.timers, key)
	}
}
