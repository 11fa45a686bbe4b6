package ws

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pliu/courier/internal/models"
	"github.com/pliu/courier/internal/store/sqlstore"
)

// fakeConn records every event sent to it. Setting fail makes writes error,
// simulating a dead transport.
type fakeConn struct {
	id     string
	userID int64

	mu     sync.Mutex
	events []Event
	fail   bool
	closed bool
}

func newFakeConn(id string, userID int64) *fakeConn {
	return &fakeConn{id: id, userID: userID}
}

func (f *fakeConn) ID() string    { return f.id }
func (f *fakeConn) UserID() int64 { return f.userID }

func (f *fakeConn) Send(ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("write failed")
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeConn) eventsOfType(evType string) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, ev := range f.events {
		if ev.Type == evType {
			out = append(out, ev)
		}
	}
	return out
}

func newTestHub(t *testing.T) (*Hub, *sqlstore.SQLStore) {
	t.Helper()
	st, err := sqlstore.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(st, Config{
		JWTSecret:        "test-secret",
		PresenceDebounce: 10 * time.Millisecond,
		TypingExpiry:     150 * time.Millisecond,
	}, log)
	t.Cleanup(func() {
		hub.Stop()
		st.Close()
	})
	return hub, st
}

func createTestUser(t *testing.T, st *sqlstore.SQLStore, name, email string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: email, Password: "pass"}
	if err := st.CreateUser(user); err != nil {
		t.Fatalf("Failed to create user %s: %v", name, err)
	}
	return user
}

func createTestConversation(t *testing.T, st *sqlstore.SQLStore, userIDs ...int64) *models.Conversation {
	t.Helper()
	conv, err := st.FindOrCreateConversation(userIDs)
	if err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}
	return conv
}
