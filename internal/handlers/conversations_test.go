package handlers

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"

	"github.com/pliu/courier/internal/models"
	"github.com/pliu/courier/internal/store/sqlstore"
)

func newConversationFixture(t *testing.T) (*ConversationHandler, *sqlstore.SQLStore, *models.User, *models.User) {
	t.Helper()
	st := newTestStore(t)
	hub := newTestHub(t, st)
	h := &ConversationHandler{Store: st, Hub: hub}
	alice := createTestUser(t, st, "alice", "alice@example.com", "pw-alice-1")
	bob := createTestUser(t, st, "bob", "bob@example.com", "pw-bob-123")
	return h, st, alice, bob
}

func withVars(r *http.Request, id int64) *http.Request {
	return mux.SetURLVars(r, map[string]string{"id": strconv.FormatInt(id, 10)})
}

func TestCreateConversationIdempotent(t *testing.T) {
	h, _, alice, bob := newConversationFixture(t)

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest("POST", "/api/conversations", map[string]int64{"peer_id": bob.ID}, alice.ID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	first := decodeBody[models.Conversation](t, rec)

	// The same pair, initiated from the other side, resolves to the same
	// conversation.
	rec = httptest.NewRecorder()
	h.Create(rec, authedRequest("POST", "/api/conversations", map[string]int64{"peer_id": alice.ID}, bob.ID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}
	second := decodeBody[models.Conversation](t, rec)

	if first.ID != second.ID {
		t.Errorf("Expected one conversation for the pair, got %d and %d", first.ID, second.ID)
	}
}

func TestCreateConversationRejections(t *testing.T) {
	h, _, alice, bob := newConversationFixture(t)

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest("POST", "/api/conversations", map[string]int64{"peer_id": alice.ID}, alice.ID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for self-conversation, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Create(rec, authedRequest("POST", "/api/conversations", map[string]int64{"peer_id": 9999}, alice.ID))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown peer, got %d", rec.Code)
	}

	// A block in either direction forbids starting a conversation.
	if err := h.Store.BlockUser(bob.ID, alice.ID); err != nil {
		t.Fatalf("Failed to block: %v", err)
	}
	rec = httptest.NewRecorder()
	h.Create(rec, authedRequest("POST", "/api/conversations", map[string]int64{"peer_id": bob.ID}, alice.ID))
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for blocked pair, got %d", rec.Code)
	}
}

func TestListConversations(t *testing.T) {
	h, _, alice, bob := newConversationFixture(t)

	conv, err := h.Store.FindOrCreateConversation([]int64{alice.ID, bob.ID})
	if err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}
	if _, err := h.Store.CreateMessage(conv.ID, bob.ID, "hey", "text", nil); err != nil {
		t.Fatalf("Failed to create message: %v", err)
	}

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest("GET", "/api/conversations", nil, alice.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	convs := decodeBody[[]models.Conversation](t, rec)
	if len(convs) != 1 {
		t.Fatalf("Expected 1 conversation, got %d", len(convs))
	}
	if convs[0].UnreadCount != 1 {
		t.Errorf("Expected unread count 1, got %d", convs[0].UnreadCount)
	}
}

func TestMessagesParticipantGate(t *testing.T) {
	h, st, alice, bob := newConversationFixture(t)
	mallory := createTestUser(t, st, "mallory", "mallory@example.com", "pw-mal-123")

	conv, err := h.Store.FindOrCreateConversation([]int64{alice.ID, bob.ID})
	if err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}
	if _, err := h.Store.CreateMessage(conv.ID, alice.ID, "hello", "text", nil); err != nil {
		t.Fatalf("Failed to create message: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Messages(rec, withVars(authedRequest("GET", "/api/conversations/1/messages", nil, bob.ID), conv.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for participant, got %d", rec.Code)
	}
	msgs := decodeBody[[]models.Message](t, rec)
	if len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Errorf("Unexpected messages: %+v", msgs)
	}

	rec = httptest.NewRecorder()
	h.Messages(rec, withVars(authedRequest("GET", "/api/conversations/1/messages", nil, mallory.ID), conv.ID))
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for outsider, got %d", rec.Code)
	}
}

func TestEditMessage(t *testing.T) {
	h, _, alice, bob := newConversationFixture(t)
	conv, _ := h.Store.FindOrCreateConversation([]int64{alice.ID, bob.ID})
	msg, err := h.Store.CreateMessage(conv.ID, alice.ID, "hello", "text", nil)
	if err != nil {
		t.Fatalf("Failed to create message: %v", err)
	}

	// Bob is online and should see the update pushed.
	bobConn := newRecorderConn("bob-1", bob.ID)
	h.Hub.Registry.Register(bobConn)

	rec := httptest.NewRecorder()
	h.EditMessage(rec, withVars(authedRequest("PATCH", "/api/messages/1", map[string]string{"content": "hello, edited"}, alice.ID), msg.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[models.Message](t, rec)
	if updated.Content != "hello, edited" || !updated.Edited {
		t.Errorf("Unexpected edited message: %+v", updated)
	}

	if got := bobConn.eventsOfType("message-updated"); len(got) != 1 {
		t.Errorf("Expected one message-updated push to bob, got %d", len(got))
	}
}

func TestEditMessageForbidden(t *testing.T) {
	h, _, alice, bob := newConversationFixture(t)
	conv, _ := h.Store.FindOrCreateConversation([]int64{alice.ID, bob.ID})
	msg, _ := h.Store.CreateMessage(conv.ID, alice.ID, "hello", "text", nil)

	rec := httptest.NewRecorder()
	h.EditMessage(rec, withVars(authedRequest("PATCH", "/api/messages/1", map[string]string{"content": "hijacked"}, bob.ID), msg.ID))
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-sender edit, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.EditMessage(rec, withVars(authedRequest("PATCH", "/api/messages/1", map[string]string{"content": "   "}, alice.ID), msg.ID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty content, got %d", rec.Code)
	}
}

func TestDeleteMessage(t *testing.T) {
	h, _, alice, bob := newConversationFixture(t)
	conv, _ := h.Store.FindOrCreateConversation([]int64{alice.ID, bob.ID})
	msg, _ := h.Store.CreateMessage(conv.ID, alice.ID, "regrets", "text", nil)

	rec := httptest.NewRecorder()
	h.DeleteMessage(rec, withVars(authedRequest("DELETE", "/api/messages/1", nil, bob.ID), msg.ID))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for non-sender delete, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.DeleteMessage(rec, withVars(authedRequest("DELETE", "/api/messages/1", nil, alice.ID), msg.ID))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	got, err := h.Store.GetMessage(msg.ID)
	if err != nil {
		t.Fatalf("Failed to reload message: %v", err)
	}
	if !got.Deleted || got.Content == "regrets" {
		t.Errorf("Expected tombstoned message, got %+v", got)
	}
}
