package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pliu/courier/internal/models"
)

// Inbound command types. Anything outside this set is rejected at the
// boundary with an error event.
const (
	cmdSendMessage       = "send-message"
	cmdJoinConversation  = "join-conversation"
	cmdLeaveConversation = "leave-conversation"
	cmdTyping            = "typing"
	cmdMarkSeen          = "mark-seen"
)

// Outbound event types.
const (
	evtMessageReceived  = "message-received"
	evtMessageSendAck   = "message-send-ack"
	evtMessageSendError = "message-send-error"
	evtMessageDelivered = "message-delivered"
	evtMessageSeen      = "message-seen"
	evtMessageUpdated   = "message-updated"
	evtPresenceUpdate   = "presence-update"
	evtTypingUpdate     = "typing-update"
	evtFriendRequest    = "friend-request"
	evtError            = "error"
)

// Event is one outbound frame. Data is always one of the payload structs
// below, fixed per event type.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type inboundEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type sendMessageCmd struct {
	ConversationID int64  `json:"conversationId"`
	Content        string `json:"content"`
	ClientToken    string `json:"clientToken"`
	ReplyTo        *int64 `json:"replyTo,omitempty"`
}

type conversationCmd struct {
	ConversationID int64 `json:"conversationId"`
}

type typingCmd struct {
	ConversationID int64 `json:"conversationId"`
	IsTyping       bool  `json:"isTyping"`
}

type sendAckPayload struct {
	ClientToken string          `json:"clientToken"`
	Message     *models.Message `json:"message"`
}

type sendErrorPayload struct {
	ClientToken string `json:"clientToken"`
	Reason      string `json:"reason"`
}

type messagePayload struct {
	Message *models.Message `json:"message"`
}

type deliveredPayload struct {
	MessageID   int64     `json:"messageId"`
	RecipientID int64     `json:"recipientId"`
	At          time.Time `json:"at"`
}

type seenPayload struct {
	MessageID int64     `json:"messageId"`
	SeenBy    int64     `json:"seenBy"`
	At        time.Time `json:"at"`
}

type presencePayload struct {
	UserID   int64 `json:"userId"`
	IsOnline bool  `json:"isOnline"`
}

type typingPayload struct {
	ConversationID int64 `json:"conversationId"`
	UserID         int64 `json:"userId"`
	IsTyping       bool  `json:"isTyping"`
}

type friendRequestPayload struct {
	Request *models.FriendRequest `json:"request"`
	Sender  *models.User          `json:"sender"`
}

type errorPayload struct {
	Reason string `json:"reason"`
}

func errorEvent(reason string) Event {
	return Event{Type: evtError, Data: errorPayload{Reason: reason}}
}

// MessageUpdatedEvent is pushed to participants when a message is edited or
// soft-deleted through the HTTP API.
func MessageUpdatedEvent(msg *models.Message) Event {
	return Event{Type: evtMessageUpdated, Data: messagePayload{Message: msg}}
}

// FriendRequestEvent notifies a receiver of a new friend request.
func FriendRequestEvent(req *models.FriendRequest, sender *models.User) Event {
	return Event{Type: evtFriendRequest, Data: friendRequestPayload{Request: req, Sender: sender}}
}

func decodeCmd[T any](data json.RawMessage) (T, error) {
	var cmd T
	if len(data) == 0 {
		return cmd, fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("malformed payload: %w", err)
	}
	return cmd, nil
}
