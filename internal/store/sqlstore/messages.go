package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	"github.com/pliu/courier/internal/models"
	"github.com/pliu/courier/internal/store"
)

const deletedMessageContent = "This message was deleted"

func (s *SQLStore) CreateMessage(conversationID, senderID int64, content, msgType string, replyTo *int64) (*models.Message, error) {
	res, err := s.db.Exec(
		"INSERT INTO messages (conversation_id, sender_id, content, type, reply_to) VALUES (?, ?, ?, ?, ?)",
		conversationID, senderID, content, msgType, replyTo,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetMessage(id)
}

const messageColumns = "id, conversation_id, sender_id, content, type, reply_to, edited, edited_at, deleted, created_at"

func (s *SQLStore) GetMessage(id int64) (*models.Message, error) {
	var msg models.Message
	var replyTo sql.NullInt64
	var editedAt sql.NullTime
	err := s.db.QueryRow(
		"SELECT "+messageColumns+" FROM messages WHERE id = ?", id,
	).Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type,
		&replyTo, &msg.Edited, &editedAt, &msg.Deleted, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if replyTo.Valid {
		msg.ReplyTo = &replyTo.Int64
	}
	if editedAt.Valid {
		msg.EditedAt = &editedAt.Time
	}
	if err := s.loadRecords(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *SQLStore) loadRecords(msg *models.Message) error {
	rows, err := s.db.Query(
		"SELECT recipient_id, delivered_at FROM message_deliveries WHERE message_id = ?", msg.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var rec models.DeliveryRecord
		if err := rows.Scan(&rec.RecipientID, &rec.DeliveredAt); err != nil {
			return err
		}
		msg.DeliveredTo = append(msg.DeliveredTo, rec)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	reads, err := s.db.Query(
		"SELECT recipient_id, read_at FROM message_reads WHERE message_id = ?", msg.ID,
	)
	if err != nil {
		return err
	}
	defer reads.Close()
	for reads.Next() {
		var rec models.ReadRecord
		if err := reads.Scan(&rec.RecipientID, &rec.ReadAt); err != nil {
			return err
		}
		msg.ReadBy = append(msg.ReadBy, rec)
	}
	return reads.Err()
}

func (s *SQLStore) GetConversationMessages(conversationID int64, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		"SELECT "+messageColumns+" FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		conversationID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		if err := s.loadRecords(&messages[i]); err != nil {
			return nil, err
		}
	}
	return messages, nil
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var replyTo sql.NullInt64
		var editedAt sql.NullTime
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type,
			&replyTo, &msg.Edited, &editedAt, &msg.Deleted, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if replyTo.Valid {
			msg.ReplyTo = &replyTo.Int64
		}
		if editedAt.Valid {
			msg.EditedAt = &editedAt.Time
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLStore) EditMessage(id int64, content string, at time.Time) error {
	res, err := s.db.Exec(
		"UPDATE messages SET content = ?, edited = TRUE, edited_at = ? WHERE id = ? AND deleted = FALSE",
		content, at, id,
	)
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

// SoftDeleteMessage replaces the content and flags the row; the message is
// never hard-deleted.
func (s *SQLStore) SoftDeleteMessage(id int64, at time.Time) error {
	res, err := s.db.Exec(
		"UPDATE messages SET content = ?, deleted = TRUE, deleted_at = ? WHERE id = ?",
		deletedMessageContent, at, id,
	)
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

func (s *SQLStore) AppendDeliveryRecord(messageID, recipientID int64, at time.Time) (bool, error) {
	res, err := s.db.Exec(
		"INSERT OR IGNORE INTO message_deliveries (message_id, recipient_id, delivered_at) VALUES (?, ?, ?)",
		messageID, recipientID, at,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLStore) AppendReadRecord(messageID, recipientID int64, at time.Time) (bool, error) {
	res, err := s.db.Exec(
		"INSERT OR IGNORE INTO message_reads (message_id, recipient_id, read_at) VALUES (?, ?, ?)",
		messageID, recipientID, at,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// QueryUnseenMessages returns the messages in a conversation sent by someone
// other than readerID that readerID has not read yet, oldest first.
func (s *SQLStore) QueryUnseenMessages(conversationID, readerID int64) ([]models.Message, error) {
	rows, err := s.db.Query(`
		SELECT `+messageColumns+` FROM messages m
		WHERE m.conversation_id = ? AND m.sender_id != ? AND m.deleted = FALSE
		AND NOT EXISTS (
			SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.recipient_id = ?
		)
		ORDER BY m.created_at ASC, m.id ASC`,
		conversationID, readerID, readerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}
