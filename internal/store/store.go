package store

import (
	"errors"
	"time"

	"github.com/pliu/courier/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrExists is returned when an insert conflicts with a live record, such as
// a friend request that is already pending or accepted between a pair.
var ErrExists = errors.New("already exists")

type Store interface {
	// User operations
	CreateUser(user *models.User) error
	GetUserByID(id int64) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	SearchUsers(query string, excludeID int64) ([]models.User, error)
	UpdateUserProfile(id int64, name, profilePic, statusMessage string) error
	UpdateUserPresence(id int64, isOnline bool, lastSeen time.Time) error

	// Conversation operations
	GetConversation(id int64) (*models.Conversation, error)
	FindOrCreateConversation(participantIDs []int64) (*models.Conversation, error)
	UpdateConversationLastMessage(conversationID, messageID int64) error
	GetUserConversations(userID int64) ([]models.Conversation, error)

	// Message operations
	CreateMessage(conversationID, senderID int64, content, msgType string, replyTo *int64) (*models.Message, error)
	GetMessage(id int64) (*models.Message, error)
	GetConversationMessages(conversationID int64, limit, offset int) ([]models.Message, error)
	EditMessage(id int64, content string, at time.Time) error
	SoftDeleteMessage(id int64, at time.Time) error

	// Delivery and read records. Append operations are idempotent: they
	// report whether a record was actually inserted.
	AppendDeliveryRecord(messageID, recipientID int64, at time.Time) (bool, error)
	AppendReadRecord(messageID, recipientID int64, at time.Time) (bool, error)
	QueryUnseenMessages(conversationID, readerID int64) ([]models.Message, error)

	// Friend operations. CreateFriendRequest returns ErrExists when a pending
	// or accepted request already links the pair in either direction; a
	// declined one is reopened as pending.
	CreateFriendRequest(senderID, receiverID int64) (*models.FriendRequest, error)
	GetFriendRequest(id int64) (*models.FriendRequest, error)
	UpdateFriendRequestStatus(id int64, status string) error
	ListFriendRequests(receiverID int64) ([]models.FriendRequest, error)
	ListFriends(userID int64) ([]models.User, error)
	RemoveFriend(userID, friendID int64) error
	BlockUser(blockerID, blockedID int64) error
	UnblockUser(blockerID, blockedID int64) error
	IsBlocked(blockerID, blockedID int64) (bool, error)
}
