package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	"github.com/pliu/courier/internal/models"
	"github.com/pliu/courier/internal/store"
)

func (s *SQLStore) CreateUser(user *models.User) error {
	res, err := s.db.Exec(
		"INSERT INTO users (name, email, password, profile_pic, status_message) VALUES (?, ?, ?, ?, ?)",
		user.Name, user.Email, user.Password, user.ProfilePic, user.StatusMessage,
	)
	if err != nil {
		return err
	}
	user.ID, err = res.LastInsertId()
	return err
}

const userColumns = "id, name, email, password, profile_pic, status_message, is_online, last_seen, created_at"

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var lastSeen sql.NullTime
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.ProfilePic,
		&user.StatusMessage, &user.IsOnline, &lastSeen, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		user.LastSeen = &lastSeen.Time
	}
	return &user, nil
}

func (s *SQLStore) GetUserByID(id int64) (*models.User, error) {
	return scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (s *SQLStore) GetUserByEmail(email string) (*models.User, error) {
	return scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

func (s *SQLStore) SearchUsers(query string, excludeID int64) ([]models.User, error) {
	rows, err := s.db.Query(
		"SELECT "+userColumns+" FROM users WHERE (name LIKE ? OR email LIKE ?) AND id != ? LIMIT 20",
		"%"+query+"%", "%"+query+"%", excludeID,
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

func (s *SQLStore) UpdateUserProfile(id int64, name, profilePic, statusMessage string) error {
	_, err := s.db.Exec(
		"UPDATE users SET name = ?, profile_pic = ?, status_message = ? WHERE id = ?",
		name, profilePic, statusMessage, id,
	)
	return err
}

func (s *SQLStore) UpdateUserPresence(id int64, isOnline bool, lastSeen time.Time) error {
	_, err := s.db.Exec(
		"UPDATE users SET is_online = ?, last_seen = ? WHERE id = ?",
		isOnline, lastSeen, id,
	)
	return err
}
