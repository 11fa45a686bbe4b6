package models

import "time"

type User struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Password      string     `json:"-"`
	ProfilePic    string     `json:"profile_pic"`
	StatusMessage string     `json:"status_message"`
	IsOnline      bool       `json:"is_online"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Conversation struct {
	ID           int64     `json:"id"`
	Participants []int64   `json:"participants"`
	LastMessage  *Message  `json:"last_message,omitempty"`
	UnreadCount  int       `json:"unread_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID int64) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// DeliveryRecord marks that a recipient's client received a message.
type DeliveryRecord struct {
	RecipientID int64     `json:"recipient_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// ReadRecord marks that a recipient has viewed a message.
type ReadRecord struct {
	RecipientID int64     `json:"recipient_id"`
	ReadAt      time.Time `json:"read_at"`
}

type Message struct {
	ID             int64            `json:"id"`
	ConversationID int64            `json:"conversation_id"`
	SenderID       int64            `json:"sender_id"`
	Content        string           `json:"content"`
	Type           string           `json:"type"`
	ReplyTo        *int64           `json:"reply_to,omitempty"`
	Edited         bool             `json:"edited"`
	EditedAt       *time.Time       `json:"edited_at,omitempty"`
	Deleted        bool             `json:"deleted"`
	DeliveredTo    []DeliveryRecord `json:"delivered_to,omitempty"`
	ReadBy         []ReadRecord     `json:"read_by,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// IsDeliveredTo reports whether a delivery record exists for userID.
func (m *Message) IsDeliveredTo(userID int64) bool {
	for _, d := range m.DeliveredTo {
		if d.RecipientID == userID {
			return true
		}
	}
	return false
}

// IsReadBy reports whether a read record exists for userID.
func (m *Message) IsReadBy(userID int64) bool {
	for _, r := range m.ReadBy {
		if r.RecipientID == userID {
			return true
		}
	}
	return false
}

const (
	FriendRequestPending  = "pending"
	FriendRequestAccepted = "accepted"
	FriendRequestDeclined = "declined"
)

type FriendRequest struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
