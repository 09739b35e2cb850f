package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/matheus3301/smsdash/internal/bus"
	"github.com/matheus3301/smsdash/internal/store"
)

func TestToFrameNewMessage(t *testing.T) {
	msg := store.Message{ID: "SM1", From: "+1a", To: "+1us", Body: "hi", Direction: store.Inbound, Status: store.StatusReceived}
	f, ok := ToFrame(NewMessageEvent("+1a", msg))
	if !ok {
		t.Fatal("ToFrame() ok = false")
	}
	if f.Type != TypeNewMessage || f.PhoneNumber != "+1a" {
		t.Errorf("frame = %+v", f)
	}
	if f.Message == nil || f.Message.ID != "SM1" {
		t.Errorf("message = %+v, want SM1", f.Message)
	}
	if f.ID == "" {
		t.Error("frame id is empty")
	}
}

func TestToFrameDeletedWireShape(t *testing.T) {
	f, ok := ToFrame(ConversationDeletedEvent("+15551234567"))
	if !ok {
		t.Fatal("ToFrame() ok = false")
	}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatal(err)
	}
	if wire["type"] != "conversation-deleted" || wire["phoneNumber"] != "+15551234567" {
		t.Errorf("wire = %v", wire)
	}
	if _, ok := wire["message"]; ok {
		t.Error("deleted frame must not carry a message")
	}
}

func TestToFrameRejectsUnknown(t *testing.T) {
	cases := []bus.Event{
		{Kind: "conversation.other", Timestamp: time.Now(), Payload: "x"},
		{Kind: KindConversationDeleted, Payload: NewMessage{}},
	}
	for _, evt := range cases {
		if _, ok := ToFrame(evt); ok {
			t.Errorf("ToFrame(%+v) ok = true, want false", evt)
		}
	}
}
