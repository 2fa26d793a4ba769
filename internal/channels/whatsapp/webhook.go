package whatsapp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/leadclaw/pkg/protocol"
)

// WebhookEvent is the envelope every gateway webhook delivery shares.
type WebhookEvent struct {
	Event    string          `json:"event"`
	Instance string          `json:"instance"`
	Data     json.RawMessage `json:"data"`
}

// NormalizeEvent folds "MESSAGES_UPSERT" and "messages-upsert" onto "messages.upsert".
func NormalizeEvent(event string) string {
	e := strings.ToLower(strings.TrimSpace(event))
	e = strings.ReplaceAll(e, "_", ".")
	return strings.ReplaceAll(e, "-", ".")
}

// IsUpsert reports whether the delivery carries a new message.
func (e *WebhookEvent) IsUpsert() bool {
	return NormalizeEvent(e.Event) == protocol.EventMessagesUpsert
}

// InboundMessage is the part of a messages.upsert payload the pipeline uses.
type InboundMessage struct {
	ID        string
	RemoteJID string
	Number    string // remoteJid up to the "@"
	FromMe    bool
	PushName  string
	Text      string
}

type messageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type upsertData struct {
	Key      *messageKey     `json:"key"`
	Message  json.RawMessage `json:"message"`
	PushName string          `json:"pushName"`
}

type messageContent struct {
	Conversation        string `json:"conversation"`
	ExtendedTextMessage *struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
}

// ParseUpsert extracts sender, fromMe and text from a messages.upsert data block.
// It accepts data:{key,message} as sent by the gateway and the wrapped
// data:{message:{key,message}} form.
func ParseUpsert(data json.RawMessage) (*InboundMessage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("upsert payload has no data")
	}
	var d upsertData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode upsert data: %w", err)
	}
	if d.Key == nil && len(d.Message) > 0 {
		var inner upsertData
		if err := json.Unmarshal(d.Message, &inner); err != nil {
			return nil, fmt.Errorf("decode wrapped upsert message: %w", err)
		}
		if inner.PushName == "" {
			inner.PushName = d.PushName
		}
		d = inner
	}
	if d.Key == nil {
		return nil, fmt.Errorf("upsert payload has no message key")
	}

	msg := &InboundMessage{
		ID:        d.Key.ID,
		RemoteJID: d.Key.RemoteJID,
		Number:    JIDUser(d.Key.RemoteJID),
		FromMe:    d.Key.FromMe,
		PushName:  d.PushName,
	}
	if len(d.Message) > 0 {
		var c messageContent
		if err := json.Unmarshal(d.Message, &c); err == nil {
			msg.Text = c.Conversation
			if msg.Text == "" && c.ExtendedTextMessage != nil {
				msg.Text = c.ExtendedTextMessage.Text
			}
		}
	}
	msg.Text = strings.TrimSpace(msg.Text)
	return msg, nil
}

// JIDUser returns the user part of a JID ("5511999999999@s.whatsapp.net" -> "5511999999999").
func JIDUser(jid string) string {
	user, _, _ := strings.Cut(jid, "@")
	return user
}
