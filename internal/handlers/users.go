package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pliu/courier/internal/middleware"
	"github.com/pliu/courier/internal/store"
)

type UserHandler struct {
	Store store.Store
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		json.NewEncoder(w).Encode([]any{})
		return
	}

	users, err := h.Store.SearchUsers(query, middleware.UserID(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(users)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	type UpdateRequest struct {
		Name          *string `json:"name"`
		ProfilePic    *string `json:"profile_pic"`
		StatusMessage *string `json:"status_message"`
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userID := middleware.UserID(r)
	user, err := h.Store.GetUserByID(userID)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.ProfilePic != nil {
		user.ProfilePic = *req.ProfilePic
	}
	if req.StatusMessage != nil {
		user.StatusMessage = *req.StatusMessage
	}
	if user.Name == "" {
		http.Error(w, "name cannot be empty", http.StatusBadRequest)
		return
	}

	if err := h.Store.UpdateUserProfile(userID, user.Name, user.ProfilePic, user.StatusMessage); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(user)
}
