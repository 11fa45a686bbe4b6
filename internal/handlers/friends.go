package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pliu/courier/internal/middleware"
	"github.com/pliu/courier/internal/models"
	"github.com/pliu/courier/internal/store"
	"github.com/pliu/courier/internal/ws"
)

type FriendHandler struct {
	Store store.Store
	Hub   *ws.Hub
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	type SendRequestBody struct {
		ReceiverID int64 `json:"receiver_id"`
	}

	var req SendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userID := middleware.UserID(r)
	if req.ReceiverID == userID {
		http.Error(w, "cannot befriend yourself", http.StatusBadRequest)
		return
	}
	if _, err := h.Store.GetUserByID(req.ReceiverID); err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	// A block in either direction hides both users from each other.
	if blocked, err := h.blockedEitherWay(userID, req.ReceiverID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	} else if blocked {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	request, err := h.Store.CreateFriendRequest(userID, req.ReceiverID)
	if err != nil {
		if errors.Is(err, store.ErrExists) {
			http.Error(w, "Request already exists", http.StatusConflict)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	// Relay to the receiver's live connections, if any.
	if sender, err := h.Store.GetUserByID(userID); err == nil {
		h.Hub.Registry.SendToUser(req.ReceiverID, ws.FriendRequestEvent(request, sender))
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(request)
}

func (h *FriendHandler) blockedEitherWay(a, b int64) (bool, error) {
	if blocked, err := h.Store.IsBlocked(a, b); err != nil || blocked {
		return blocked, err
	}
	return h.Store.IsBlocked(b, a)
}

func (h *FriendHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Store.ListFriendRequests(middleware.UserID(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(reqs)
}

// Respond accepts or declines a pending request; only the receiver may act.
func (h *FriendHandler) Respond(w http.ResponseWriter, r *http.Request) {
	type RespondBody struct {
		Action string `json:"action"`
	}

	vars := mux.Vars(r)
	reqID, _ := strconv.ParseInt(vars["id"], 10, 64)

	var body RespondBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var status string
	switch body.Action {
	case "accept":
		status = models.FriendRequestAccepted
	case "decline":
		status = models.FriendRequestDeclined
	default:
		http.Error(w, "action must be accept or decline", http.StatusBadRequest)
		return
	}

	request, err := h.Store.GetFriendRequest(reqID)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if request.ReceiverID != middleware.UserID(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if request.Status != models.FriendRequestPending {
		http.Error(w, "Request already handled", http.StatusConflict)
		return
	}

	if err := h.Store.UpdateFriendRequestStatus(reqID, status); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := h.Store.ListFriends(middleware.UserID(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(friends)
}

func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	friendID, _ := strconv.ParseInt(vars["id"], 10, 64)

	if err := h.Store.RemoveFriend(middleware.UserID(r), friendID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FriendHandler) Block(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	blockedID, _ := strconv.ParseInt(vars["id"], 10, 64)
	userID := middleware.UserID(r)

	if blockedID == userID {
		http.Error(w, "cannot block yourself", http.StatusBadRequest)
		return
	}

	// Blocking also severs an existing friendship.
	if err := h.Store.RemoveFriend(userID, blockedID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.Store.BlockUser(userID, blockedID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FriendHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	blockedID, _ := strconv.ParseInt(vars["id"], 10, 64)

	if err := h.Store.UnblockUser(middleware.UserID(r), blockedID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
