package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/pliu/courier/internal/models"
	"github.com/pliu/courier/internal/store"
)

func (s *SQLStore) GetConversation(id int64) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.QueryRow(
		"SELECT id, created_at, updated_at FROM conversations WHERE id = ?", id,
	).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	conv.Participants, err = s.conversationParticipants(id)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *SQLStore) conversationParticipants(conversationID int64) ([]int64, error) {
	rows, err := s.db.Query(
		"SELECT user_id FROM participants WHERE conversation_id = ? ORDER BY user_id", conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindOrCreateConversation is idempotent on the participant set: a second
// call with the same pair returns the existing conversation.
func (s *SQLStore) FindOrCreateConversation(participantIDs []int64) (*models.Conversation, error) {
	if len(participantIDs) < 2 {
		return nil, fmt.Errorf("conversation needs at least 2 participants")
	}

	ids := append([]int64(nil), participantIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var existingID int64
	err := s.db.QueryRow(`
		SELECT c.id FROM conversations c
		JOIN participants p1 ON p1.conversation_id = c.id AND p1.user_id = ?
		JOIN participants p2 ON p2.conversation_id = c.id AND p2.user_id = ?
		WHERE (SELECT COUNT(*) FROM participants p WHERE p.conversation_id = c.id) = 2`,
		ids[0], ids[1],
	).Scan(&existingID)
	if err == nil {
		return s.GetConversation(existingID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.Exec("INSERT INTO conversations DEFAULT VALUES")
	if err != nil {
		return nil, err
	}
	convID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, err := tx.Exec(
			"INSERT INTO participants (conversation_id, user_id) VALUES (?, ?)", convID, id,
		); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetConversation(convID)
}

func (s *SQLStore) UpdateConversationLastMessage(conversationID, messageID int64) error {
	_, err := s.db.Exec(
		"UPDATE conversations SET last_message_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		messageID, conversationID,
	)
	return err
}

func (s *SQLStore) GetUserConversations(userID int64) ([]models.Conversation, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.last_message_id, c.created_at, c.updated_at
		FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		WHERE p.user_id = ?
		ORDER BY c.updated_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []models.Conversation
	var lastMessageIDs []sql.NullInt64
	for rows.Next() {
		var conv models.Conversation
		var lastMessageID sql.NullInt64
		if err := rows.Scan(&conv.ID, &lastMessageID, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
		lastMessageIDs = append(lastMessageIDs, lastMessageID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range convs {
		convs[i].Participants, err = s.conversationParticipants(convs[i].ID)
		if err != nil {
			return nil, err
		}
		if lastMessageIDs[i].Valid {
			msg, err := s.GetMessage(lastMessageIDs[i].Int64)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			convs[i].LastMessage = msg
		}
		convs[i].UnreadCount, err = s.unreadCount(convs[i].ID, userID)
		if err != nil {
			return nil, err
		}
	}
	return convs, nil
}

func (s *SQLStore) unreadCount(conversationID, userID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM messages m
		WHERE m.conversation_id = ? AND m.sender_id != ? AND m.deleted = FALSE
		AND NOT EXISTS (
			SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.recipient_id = ?
		)`, conversationID, userID, userID,
	).Scan(&count)
	return count, err
}
