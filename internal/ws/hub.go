package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/pliu/courier/internal/store"
)

// Config carries the hub's tuning knobs.
type Config struct {
	JWTSecret        string
	TypingExpiry     time.Duration
	PresenceDebounce time.Duration
	SendBufferSize   int
	WriteTimeout     time.Duration
	InboundRate      float64
	InboundBurst     int
}

// Hub wires the realtime components around one shared registry. It is
// constructed per process (or per test), never global.
type Hub struct {
	Registry *Registry
	Presence *PresenceTracker
	Router   *Router
	Delivery *DeliveryTracker
	Typing   *TypingCoordinator
	Gate     *SessionGate

	store store.Store
	cfg   Config
	log   *slog.Logger
}

func NewHub(st store.Store, cfg Config, log *slog.Logger) *Hub {
	if cfg.TypingExpiry <= 0 {
		cfg.TypingExpiry = 3 * time.Second
	}
	if cfg.PresenceDebounce <= 0 {
		cfg.PresenceDebounce = 50 * time.Millisecond
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.InboundRate <= 0 {
		cfg.InboundRate = 25
	}
	if cfg.InboundBurst <= 0 {
		cfg.InboundBurst = 50
	}

	reg := NewRegistry(log)
	presence := NewPresenceTracker(reg, st, cfg.PresenceDebounce, log)
	reg.SetPresenceHooks(presence.UserOnline, presence.UserOffline)
	delivery := NewDeliveryTracker(reg, st, log)

	return &Hub{
		Registry: reg,
		Presence: presence,
		Router:   NewRouter(reg, st, delivery, log),
		Delivery: delivery,
		Typing:   NewTypingCoordinator(reg, st, cfg.TypingExpiry, log),
		Gate:     NewSessionGate(st, cfg.JWTSecret),
		store:    st,
		cfg:      cfg,
		log:      log,
	}
}

// Stop cancels the hub's timers. Live connections are torn down by their own
// read loops.
func (h *Hub) Stop() {
	h.Presence.Stop()
	h.Typing.Stop()
}

// handleFrame dispatches one inbound frame from a connection. Frames on one
// connection are handled in arrival order by that connection's read loop.
// Unrecognized or malformed frames earn an error event, never a pass-through.
func (h *Hub) handleFrame(origin Conn, raw []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendError(origin, "malformed frame")
		return
	}

	switch env.Type {
	case cmdSendMessage:
		cmd, err := decodeCmd[sendMessageCmd](env.Data)
		if err != nil {
			h.sendError(origin, err.Error())
			return
		}
		h.Router.SendMessage(origin, cmd)

	case cmdJoinConversation:
		cmd, err := decodeCmd[conversationCmd](env.Data)
		if err != nil {
			h.sendError(origin, err.Error())
			return
		}
		if !h.isParticipant(cmd.ConversationID, origin.UserID()) {
			h.sendError(origin, "Unauthorized")
			return
		}
		h.Registry.Join(cmd.ConversationID, origin)

	case cmdLeaveConversation:
		cmd, err := decodeCmd[conversationCmd](env.Data)
		if err != nil {
			h.sendError(origin, err.Error())
			return
		}
		h.Registry.Leave(cmd.ConversationID, origin)

	case cmdTyping:
		cmd, err := decodeCmd[typingCmd](env.Data)
		if err != nil {
			h.sendError(origin, err.Error())
			return
		}
		if err := h.Typing.SetTyping(cmd.ConversationID, origin.UserID(), cmd.IsTyping); err != nil {
			h.sendError(origin, "Unauthorized")
		}

	case cmdMarkSeen:
		cmd, err := decodeCmd[conversationCmd](env.Data)
		if err != nil {
			h.sendError(origin, err.Error())
			return
		}
		if !h.isParticipant(cmd.ConversationID, origin.UserID()) {
			h.sendError(origin, "Unauthorized")
			return
		}
		h.Delivery.MarkSeen(cmd.ConversationID, origin.UserID())

	default:
		h.sendError(origin, "unknown event type")
	}
}

func (h *Hub) isParticipant(conversationID, userID int64) bool {
	conv, err := h.store.GetConversation(conversationID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.log.Error("failed to load conversation", "conversation_id", conversationID, "error", err)
		}
		return false
	}
	return conv.HasParticipant(userID)
}

func (h *Hub) sendError(origin Conn, reason string) {
	if err := origin.Send(errorEvent(reason)); err != nil {
		h.log.Warn("failed to send error event", "conn_id", origin.ID(), "error", err)
	}
}
