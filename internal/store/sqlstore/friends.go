package sqlstore

import (
	"database/sql"
	"errors"

	"github.com/pliu/courier/internal/models"
	"github.com/pliu/courier/internal/store"
)

// CreateFriendRequest creates a pending request from sender to receiver. A
// pending or accepted request in either direction is a conflict (ErrExists);
// a request the receiver declined earlier is reopened as pending instead of
// blocking the pair forever.
func (s *SQLStore) CreateFriendRequest(senderID, receiverID int64) (*models.FriendRequest, error) {
	same, err := s.getRequestByPair(senderID, receiverID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if same != nil {
		if same.Status != models.FriendRequestDeclined {
			return nil, store.ErrExists
		}
		if _, err := s.db.Exec(
			"UPDATE friend_requests SET status = 'pending', created_at = CURRENT_TIMESTAMP WHERE id = ?",
			same.ID,
		); err != nil {
			return nil, err
		}
		return s.GetFriendRequest(same.ID)
	}

	// A live request the other way counts too; only a declined one may be
	// answered with a fresh request from this side.
	reverse, err := s.getRequestByPair(receiverID, senderID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if reverse != nil && reverse.Status != models.FriendRequestDeclined {
		return nil, store.ErrExists
	}

	res, err := s.db.Exec(
		"INSERT INTO friend_requests (sender_id, receiver_id) VALUES (?, ?)",
		senderID, receiverID,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetFriendRequest(id)
}

func (s *SQLStore) getRequestByPair(senderID, receiverID int64) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := s.db.QueryRow(
		"SELECT id, sender_id, receiver_id, status, created_at FROM friend_requests WHERE sender_id = ? AND receiver_id = ?",
		senderID, receiverID,
	).Scan(&req.ID, &req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *SQLStore) GetFriendRequest(id int64) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := s.db.QueryRow(
		"SELECT id, sender_id, receiver_id, status, created_at FROM friend_requests WHERE id = ?", id,
	).Scan(&req.ID, &req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *SQLStore) UpdateFriendRequestStatus(id int64, status string) error {
	res, err := s.db.Exec("UPDATE friend_requests SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListFriendRequests(receiverID int64) ([]models.FriendRequest, error) {
	rows, err := s.db.Query(
		"SELECT id, sender_id, receiver_id, status, created_at FROM friend_requests WHERE receiver_id = ? AND status = 'pending' ORDER BY created_at DESC",
		receiverID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []models.FriendRequest
	for rows.Next() {
		var req models.FriendRequest
		if err := rows.Scan(&req.ID, &req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// ListFriends returns every user connected to userID through an accepted
// friend request, in either direction.
func (s *SQLStore) ListFriends(userID int64) ([]models.User, error) {
	rows, err := s.db.Query(`
		SELECT u.id, u.name, u.email, u.password, u.profile_pic, u.status_message, u.is_online, u.last_seen, u.created_at
		FROM users u
		JOIN friend_requests f
			ON (f.sender_id = ? AND f.receiver_id = u.id)
			OR (f.receiver_id = ? AND f.sender_id = u.id)
		WHERE f.status = 'accepted'
		ORDER BY u.name`, userID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		var lastSeen sql.NullTime
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.ProfilePic,
			&user.StatusMessage, &user.IsOnline, &lastSeen, &user.CreatedAt); err != nil {
			return nil, err
		}
		if lastSeen.Valid {
			user.LastSeen = &lastSeen.Time
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *SQLStore) RemoveFriend(userID, friendID int64) error {
	_, err := s.db.Exec(
		"DELETE FROM friend_requests WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
		userID, friendID, friendID, userID,
	)
	return err
}

func (s *SQLStore) BlockUser(blockerID, blockedID int64) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO blocks (blocker_id, blocked_id) VALUES (?, ?)",
		blockerID, blockedID,
	)
	return err
}

func (s *SQLStore) UnblockUser(blockerID, blockedID int64) error {
	_, err := s.db.Exec(
		"DELETE FROM blocks WHERE blocker_id = ? AND blocked_id = ?",
		blockerID, blockedID,
	)
	return err
}

func (s *SQLStore) IsBlocked(blockerID, blockedID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM blocks WHERE blocker_id = ? AND blocked_id = ?",
		blockerID, blockedID,
	).Scan(&count)
	return count > 0, err
}
