package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestTopics(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{CounterTopic("energie", "compteur1"), "energie/compteur1"},
		{CommandTopic("energie"), "energie/cmd"},
		{ReplyTopic("energie"), "energie/reply"},
		{StatusTopic("energie"), "energie/status"},
		{DiscoveryTopic("energie", "compteur1"), "homeassistant/sensor/energie/compteur1/config"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, tt.got)
		}
	}
}

func TestFormatCounterPayload(t *testing.T) {
	if p := FormatCounterPayload(0); p != "0" {
		t.Errorf("expected \"0\", got %q", p)
	}
	if p := FormatCounterPayload(4294967295); p != "4294967295" {
		t.Errorf("expected max uint32, got %q", p)
	}
}

func TestFormatReplyPayload(t *testing.T) {
	if p := FormatReplyPayload(2, 500); p != "Compteur[2]=500" {
		t.Errorf("unexpected reply payload %q", p)
	}
}

func TestFormatDiscoveryPayload(t *testing.T) {
	data, err := FormatDiscoveryPayload("energie", "compteur1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed DiscoveryPayload
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Name != "compteur1" {
		t.Errorf("unexpected name: %s", parsed.Name)
	}
	if parsed.StateTopic != "energie/compteur1" {
		t.Errorf("unexpected state topic: %s", parsed.StateTopic)
	}
	if parsed.Unit != "Wh" {
		t.Errorf("unexpected unit: %s", parsed.Unit)
	}
	if parsed.DeviceClass != "energy" {
		t.Errorf("unexpected device class: %s", parsed.DeviceClass)
	}
	if parsed.StateClass != "total_increasing" {
		t.Errorf("unexpected state class: %s", parsed.StateClass)
	}
	if parsed.UniqueID != "energy-counter_compteur1" {
		t.Errorf("unexpected unique id: %s", parsed.UniqueID)
	}
	if len(parsed.Device.Identifiers) != 1 || parsed.Device.Identifiers[0] != "energy-counter_compteur1" {
		t.Errorf("unexpected identifiers: %v", parsed.Device.Identifiers)
	}
}

func TestFakeClientRecordsPublishes(t *testing.T) {
	f := NewFakeClient("energie")

	if err := f.PublishCounter("compteur1", 42); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := f.PublishReply(1, 7); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if err := f.PublishStatus("connected"); err != nil {
		t.Fatalf("status: %v", err)
	}

	if len(f.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(f.Messages))
	}
	if f.Messages[0].Topic != "energie/compteur1" || f.Messages[0].Payload != "42" {
		t.Errorf("unexpected counter message: %+v", f.Messages[0])
	}
	if f.Messages[1].Topic != "energie/reply" || f.Messages[1].Payload != "Compteur[1]=7" {
		t.Errorf("unexpected reply message: %+v", f.Messages[1])
	}
	if f.Messages[2].Topic != "energie/status" || f.Messages[2].Payload != "connected" {
		t.Errorf("unexpected status message: %+v", f.Messages[2])
	}
}

func TestFakeClientPublishError(t *testing.T) {
	f := NewFakeClient("")
	f.PublishError = errors.New("broker down")

	if err := f.PublishCounter("compteur1", 1); err == nil {
		t.Error("expected error to be returned")
	}
	if len(f.Messages) != 0 {
		t.Error("failed publish should not be recorded")
	}
}

func TestFakeClientInjectCommand(t *testing.T) {
	f := NewFakeClient("")

	var got []string
	f.SetCommandHandler(func(payload string) { got = append(got, payload) })

	f.InjectCommand("Init_All")
	f.InjectCommand("Read_Compteur[0]")

	if len(got) != 2 || got[0] != "Init_All" || got[1] != "Read_Compteur[0]" {
		t.Errorf("unexpected commands: %v", got)
	}
}

func TestFakeClientInjectWithoutHandler(t *testing.T) {
	f := NewFakeClient("")
	// Must not panic.
	f.InjectCommand("Init_All")
}

func TestFakeClientMessagesOn(t *testing.T) {
	f := NewFakeClient("energie")
	f.PublishCounter("compteur1", 1)
	f.PublishCounter("compteur2", 2)
	f.PublishCounter("compteur1", 3)

	on := f.MessagesOn("energie/compteur1")
	if len(on) != 2 || on[0] != "1" || on[1] != "3" {
		t.Errorf("unexpected messages: %v", on)
	}
}

func TestFakeClientReset(t *testing.T) {
	f := NewFakeClient("")
	f.PublishStatus("connected")
	f.Close()

	f.Reset()
	if len(f.Messages) != 0 || f.Closed {
		t.Error("reset did not clear state")
	}
}
