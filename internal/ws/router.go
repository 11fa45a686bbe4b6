package ws

import (
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pliu/courier/internal/metrics"
	"github.com/pliu/courier/internal/store"
)

const maxContentLength = 2000

// Router accepts send intents, persists them and fans the durable message
// out to every live connection of every other participant.
type Router struct {
	reg      *Registry
	store    store.Store
	delivery *DeliveryTracker
	log      *slog.Logger
}

func NewRouter(reg *Registry, st store.Store, delivery *DeliveryTracker, log *slog.Logger) *Router {
	return &Router{reg: reg, store: st, delivery: delivery, log: log}
}

// SendMessage validates, persists and fans out one message. The originating
// connection always receives exactly one ack or one error carrying the
// client's token; recipients see nothing unless persistence succeeded.
func (rt *Router) SendMessage(origin Conn, cmd sendMessageCmd) {
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		rt.sendError(origin, cmd.ClientToken, "message content is empty")
		return
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		rt.sendError(origin, cmd.ClientToken, "message content too long")
		return
	}

	conv, err := rt.store.GetConversation(cmd.ConversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rt.sendError(origin, cmd.ClientToken, "Unauthorized")
		} else {
			rt.log.Error("failed to load conversation", "conversation_id", cmd.ConversationID, "error", err)
			rt.sendError(origin, cmd.ClientToken, "failed to send message")
		}
		return
	}
	if !conv.HasParticipant(origin.UserID()) {
		rt.sendError(origin, cmd.ClientToken, "Unauthorized")
		return
	}

	msg, err := rt.store.CreateMessage(conv.ID, origin.UserID(), content, "text", cmd.ReplyTo)
	if err != nil {
		rt.log.Error("failed to persist message", "conversation_id", conv.ID, "error", err)
		rt.sendError(origin, cmd.ClientToken, "failed to send message")
		return
	}
	if err := rt.store.UpdateConversationLastMessage(conv.ID, msg.ID); err != nil {
		// The message is durable; the stale pointer only affects list ordering.
		rt.log.Warn("failed to update last message", "conversation_id", conv.ID, "error", err)
	}

	metrics.MessagesRouted.Inc()

	for _, participant := range conv.Participants {
		if participant == origin.UserID() {
			continue
		}
		if rt.reg.SendToUser(participant, Event{Type: evtMessageReceived, Data: messagePayload{Message: msg}}) > 0 {
			// Delivery is push-confirmed: at least one of the recipient's
			// connections took the write.
			rt.delivery.MarkDelivered(msg, participant)
		}
	}

	ack := Event{Type: evtMessageSendAck, Data: sendAckPayload{ClientToken: cmd.ClientToken, Message: msg}}
	if err := origin.Send(ack); err != nil {
		rt.log.Warn("failed to ack sender", "user_id", origin.UserID(), "conn_id", origin.ID(), "error", err)
	}
}

func (rt *Router) sendError(origin Conn, clientToken, reason string) {
	ev := Event{Type: evtMessageSendError, Data: sendErrorPayload{ClientToken: clientToken, Reason: reason}}
	if err := origin.Send(ev); err != nil {
		rt.log.Warn("failed to send error to origin", "conn_id", origin.ID(), "error", err)
	}
}
