package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pliu/courier/internal/middleware"
	"github.com/pliu/courier/internal/models"
	"github.com/pliu/courier/internal/store/sqlstore"
	"github.com/pliu/courier/internal/ws"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

func newTestStore(t *testing.T) *sqlstore.SQLStore {
	t.Helper()
	st, err := sqlstore.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestHub(t *testing.T, st *sqlstore.SQLStore) *ws.Hub {
	t.Helper()
	hub := ws.NewHub(st, ws.Config{JWTSecret: testSecret}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(hub.Stop)
	return hub
}

func createTestUser(t *testing.T, st *sqlstore.SQLStore, name, email, password string) *models.User {
	t.Helper()
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &models.User{Name: name, Email: email, Password: string(hashed)}
	if err := st.CreateUser(user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

// authedRequest builds a request carrying the user ID the way the auth
// middleware would.
func authedRequest(method, target string, body any, userID int64) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

// recorderConn stands in for a live websocket connection so tests can
// observe pushes relayed through the hub.
type recorderConn struct {
	id     string
	userID int64

	mu     sync.Mutex
	events []ws.Event
}

func newRecorderConn(id string, userID int64) *recorderConn {
	return &recorderConn{id: id, userID: userID}
}

func (c *recorderConn) ID() string    { return c.id }
func (c *recorderConn) UserID() int64 { return c.userID }
func (c *recorderConn) Close()        {}

func (c *recorderConn) Send(ev ws.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *recorderConn) eventsOfType(typ string) []ws.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ws.Event
	for _, ev := range c.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return out
}
