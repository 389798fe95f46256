// Package messaging defines the inbound event shape and the outbound
// transport contract used by the orchestrator.
package messaging

import (
	"context"
	"encoding/json"
	"strings"
)

// InboundEvent is one message received from a patient.
type InboundEvent struct {
	From      string
	Body      string
	TenantID  string
	MessageID string
	FromMe    bool
	// Event is the gateway event name; empty for the flat shape.
	Event string
}

// eventMessagesUpsert is the only gateway event that carries a new message.
const eventMessagesUpsert = "messages.upsert"

// Ignorable reports whether the event is not a new patient message: an
// echo of our own send, or a gateway notification such as a delivery
// receipt or connection update.
func (e InboundEvent) Ignorable() bool {
	if e.FromMe {
		return true
	}
	if e.Event == "" {
		return false
	}
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(e.Event)), "_", ".")
	return name != eventMessagesUpsert
}

// flatEvent is the minimal webhook shape: {"from": ..., "body": ...}.
type flatEvent struct {
	From      string `json:"from"`
	Body      string `json:"body"`
	Tenant    string `json:"tenant"`
	CNPJ      string `json:"cnpj"`
	MessageID string `json:"id"`
}

// evolutionEnvelope is the Evolution API messages.upsert webhook.
type evolutionEnvelope struct {
	Event    string `json:"event"`
	Instance string `json:"instance"`
	Data     struct {
		Key struct {
			RemoteJID string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
			ID        string `json:"id"`
		} `json:"key"`
		Message struct {
			Conversation        string `json:"conversation"`
			ExtendedTextMessage struct {
				Text string `json:"text"`
			} `json:"extendedTextMessage"`
			ImageMessage struct {
				Caption string `json:"caption"`
			} `json:"imageMessage"`
		} `json:"message"`
	} `json:"data"`
}

// ParseInbound decodes a webhook payload in either the flat shape or the
// Evolution envelope. Missing fields are left empty; the caller decides
// what is required.
func ParseInbound(payload []byte) (InboundEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return InboundEvent{}, err
	}
	if _, ok := fields["data"]; ok {
		var env evolutionEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return InboundEvent{}, err
		}
		msg := env.Data.Message
		body := firstNonEmpty(msg.Conversation, msg.ExtendedTextMessage.Text, msg.ImageMessage.Caption)
		return InboundEvent{
			From:      NormalizePhone(env.Data.Key.RemoteJID),
			Body:      strings.TrimSpace(body),
			MessageID: env.Data.Key.ID,
			FromMe:    env.Data.Key.FromMe,
			Event:     strings.TrimSpace(env.Event),
		}, nil
	}
	var flat flatEvent
	if err := json.Unmarshal(payload, &flat); err != nil {
		return InboundEvent{}, err
	}
	return InboundEvent{
		From:      NormalizePhone(flat.From),
		Body:      strings.TrimSpace(flat.Body),
		TenantID:  strings.TrimSpace(firstNonEmpty(flat.Tenant, flat.CNPJ)),
		MessageID: flat.MessageID,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// SendResult is the transport's acknowledgement of an outbound message.
type SendResult struct {
	MessageID string
	Raw       json.RawMessage
}

// Sender delivers replies to patients.
type Sender interface {
	SendText(ctx context.Context, to, text string) (*SendResult, error)
}
