package whatsapp

import (
	"encoding/json"
	"testing"
)

func TestParseUpsert(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantNumber string
		wantFromMe bool
		wantText   string
	}{
		{
			name:       "wrapped conversation",
			data:       `{"message":{"key":{"remoteJid":"5511999999999@s.whatsapp.net","fromMe":false},"message":{"conversation":"Olá"}}}`,
			wantNumber: "5511999999999",
			wantText:   "Olá",
		},
		{
			name:       "gateway shape extended text",
			data:       `{"key":{"remoteJid":"5511888888888@s.whatsapp.net","fromMe":false,"id":"ABC"},"pushName":"Ana","message":{"extendedTextMessage":{"text":"quero saber o preço"}}}`,
			wantNumber: "5511888888888",
			wantText:   "quero saber o preço",
		},
		{
			name:       "from me",
			data:       `{"key":{"remoteJid":"5511@s.whatsapp.net","fromMe":true},"message":{"conversation":"x"}}`,
			wantNumber: "5511",
			wantFromMe: true,
			wantText:   "x",
		},
		{
			name:       "media only",
			data:       `{"key":{"remoteJid":"5511@s.whatsapp.net"},"message":{"imageMessage":{}}}`,
			wantNumber: "5511",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseUpsert(json.RawMessage(tt.data))
			if err != nil {
				t.Fatalf("ParseUpsert: %v", err)
			}
			if msg.Number != tt.wantNumber || msg.FromMe != tt.wantFromMe || msg.Text != tt.wantText {
				t.Errorf("got %+v", msg)
			}
		})
	}
}

func TestParseUpsertInvalid(t *testing.T) {
	for _, data := range []string{``, `[]`, `{"message":{"conversation":"no key"}}`} {
		if _, err := ParseUpsert(json.RawMessage(data)); err == nil {
			t.Errorf("ParseUpsert(%q): expected error", data)
		}
	}
}

func TestNormalizeEvent(t *testing.T) {
	for _, in := range []string{"messages.upsert", "MESSAGES_UPSERT", "messages-upsert"} {
		ev := WebhookEvent{Event: in}
		if !ev.IsUpsert() {
			t.Errorf("%q not recognised as upsert", in)
		}
	}
	if (&WebhookEvent{Event: "connection.update"}).IsUpsert() {
		t.Error("connection.update treated as upsert")
	}
}
