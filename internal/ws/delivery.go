package ws

import (
	"log/slog"
	"time"

	"github.com/pliu/courier/internal/models"
	"github.com/pliu/courier/internal/store"
)

// DeliveryTracker owns delivered/seen state transitions. All record writes go
// through the store's idempotent append operations; a status event is emitted
// only when a record was actually inserted, so repeated calls are no-ops on
// the wire too.
type DeliveryTracker struct {
	reg   *Registry
	store store.Store
	log   *slog.Logger
}

func NewDeliveryTracker(reg *Registry, st store.Store, log *slog.Logger) *DeliveryTracker {
	return &DeliveryTracker{reg: reg, store: st, log: log}
}

// MarkDelivered records that recipientID's client received the message and
// notifies the sender's connections. Calling it again for the same pair does
// nothing.
func (d *DeliveryTracker) MarkDelivered(msg *models.Message, recipientID int64) {
	at := time.Now()
	inserted, err := d.store.AppendDeliveryRecord(msg.ID, recipientID, at)
	if err != nil {
		d.log.Warn("failed to append delivery record", "message_id", msg.ID, "recipient_id", recipientID, "error", err)
		return
	}
	if !inserted {
		return
	}

	d.reg.SendToUser(msg.SenderID, Event{
		Type: evtMessageDelivered,
		Data: deliveredPayload{MessageID: msg.ID, RecipientID: recipientID, At: at},
	})
}

// MarkSeen records a read for every message in the conversation that
// readerID has not seen yet and notifies each sender. A delivery record is
// appended before the read record, so a seen state never exists without a
// delivery state for the same pair. Re-invoking with nothing unseen is a
// safe no-op.
func (d *DeliveryTracker) MarkSeen(conversationID, readerID int64) {
	msgs, err := d.store.QueryUnseenMessages(conversationID, readerID)
	if err != nil {
		d.log.Warn("failed to query unseen messages", "conversation_id", conversationID, "reader_id", readerID, "error", err)
		return
	}

	at := time.Now()
	for i := range msgs {
		msg := &msgs[i]
		if _, err := d.store.AppendDeliveryRecord(msg.ID, readerID, at); err != nil {
			d.log.Warn("failed to backfill delivery record", "message_id", msg.ID, "error", err)
			continue
		}
		inserted, err := d.store.AppendReadRecord(msg.ID, readerID, at)
		if err != nil {
			d.log.Warn("failed to append read record", "message_id", msg.ID, "error", err)
			continue
		}
		if !inserted {
			continue
		}

		d.reg.SendToUser(msg.SenderID, Event{
			Type: evtMessageSeen,
			Data: seenPayload{MessageID: msg.ID, SeenBy: readerID, At: at},
		})
	}
}
