package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/pliu/courier/internal/middleware"
	"github.com/pliu/courier/internal/store"
	"github.com/pliu/courier/internal/ws"
)

type ConversationHandler struct {
	Store store.Store
	Hub   *ws.Hub
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	convs, err := h.Store.GetUserConversations(middleware.UserID(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(convs)
}

// Create finds or creates the direct conversation with a peer. Repeating the
// call returns the existing conversation.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	type CreateRequest struct {
		PeerID int64 `json:"peer_id"`
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userID := middleware.UserID(r)
	if req.PeerID == userID {
		http.Error(w, "cannot start a conversation with yourself", http.StatusBadRequest)
		return
	}
	if _, err := h.Store.GetUserByID(req.PeerID); err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	if blocked, err := h.blockedEitherWay(userID, req.PeerID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	} else if blocked {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conv, err := h.Store.FindOrCreateConversation([]int64{userID, req.PeerID})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(conv)
}

func (h *ConversationHandler) blockedEitherWay(a, b int64) (bool, error) {
	if blocked, err := h.Store.IsBlocked(a, b); err != nil || blocked {
		return blocked, err
	}
	return h.Store.IsBlocked(b, a)
}

func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	convID, _ := strconv.ParseInt(vars["id"], 10, 64)
	userID := middleware.UserID(r)

	conv, err := h.Store.GetConversation(convID)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if !conv.HasParticipant(userID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	messages, err := h.Store.GetConversationMessages(convID, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(messages)
}

// EditMessage lets a sender rewrite their own message. Participants online
// at the time see a message-updated push.
func (h *ConversationHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	type EditRequest struct {
		Content string `json:"content"`
	}

	vars := mux.Vars(r)
	msgID, _ := strconv.ParseInt(vars["id"], 10, 64)
	userID := middleware.UserID(r)

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		http.Error(w, "content cannot be empty", http.StatusBadRequest)
		return
	}

	msg, err := h.Store.GetMessage(msgID)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if msg.SenderID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := h.Store.EditMessage(msgID, content, time.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.pushMessageUpdate(msgID)
	updated, err := h.Store.GetMessage(msgID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(updated)
}

// DeleteMessage soft-deletes the sender's own message.
func (h *ConversationHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	msgID, _ := strconv.ParseInt(vars["id"], 10, 64)
	userID := middleware.UserID(r)

	msg, err := h.Store.GetMessage(msgID)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if msg.SenderID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := h.Store.SoftDeleteMessage(msgID, time.Now()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.pushMessageUpdate(msgID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) pushMessageUpdate(msgID int64) {
	msg, err := h.Store.GetMessage(msgID)
	if err != nil {
		return
	}
	conv, err := h.Store.GetConversation(msg.ConversationID)
	if err != nil {
		return
	}
	h.Hub.Registry.SendToUsers(conv.Participants, ws.MessageUpdatedEvent(msg))
}
