// Package mqtt provides the transport for counter publishing and inbound
// commands, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DefaultNamespace is the topic namespace counter values are published under.
const DefaultNamespace = "energie"

// DeviceName identifies this device in discovery documents and unique IDs.
const DeviceName = "energy-counter"

// Publisher publishes counter values to the broker.
type Publisher interface {
	// PublishCounter sends one counter value on its meter topic.
	// Payload is the decimal string of the value.
	PublishCounter(name string, value uint32) error

	// PublishReply answers a read command on the reply topic.
	PublishReply(channel int, value uint32) error

	// PublishStatus sends a lifecycle message on the status topic.
	PublishStatus(msg string) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the broker connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandHandler receives the raw payload of each inbound command message,
// one at a time, in arrival order.
type CommandHandler func(payload string)

// CounterTopic is where a meter's value is published: "<namespace>/<name>".
func CounterTopic(namespace, name string) string {
	return namespace + "/" + name
}

// CommandTopic is the inbound command subscription.
func CommandTopic(namespace string) string {
	return namespace + "/cmd"
}

// ReplyTopic carries answers to read commands.
func ReplyTopic(namespace string) string {
	return namespace + "/reply"
}

// StatusTopic carries lifecycle messages ("connected", "offline").
func StatusTopic(namespace string) string {
	return namespace + "/status"
}

// DiscoveryTopic is the retained Home Assistant discovery document location.
func DiscoveryTopic(namespace, name string) string {
	return fmt.Sprintf("homeassistant/sensor/%s/%s/config", namespace, name)
}

// FormatCounterPayload renders a counter value as its decimal string.
func FormatCounterPayload(value uint32) string {
	return strconv.FormatUint(uint64(value), 10)
}

// FormatReplyPayload renders a read answer, mirroring the command grammar:
// "Compteur[<index>]=<value>".
func FormatReplyPayload(channel int, value uint32) string {
	return fmt.Sprintf("Compteur[%d]=%d", channel, value)
}

// DiscoveryPayload is a Home Assistant MQTT discovery document for one meter.
type DiscoveryPayload struct {
	Name        string          `json:"name"`
	StateTopic  string          `json:"state_topic"`
	Unit        string          `json:"unit_of_measurement"`
	DeviceClass string          `json:"device_class"`
	StateClass  string          `json:"state_class"`
	UniqueID    string          `json:"unique_id"`
	Device      DiscoveryDevice `json:"device"`
}

// DiscoveryDevice identifies the physical device the sensors belong to.
type DiscoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// FormatDiscoveryPayload builds the retained discovery document for a meter.
func FormatDiscoveryPayload(namespace, name string) ([]byte, error) {
	id := DeviceName + "_" + name
	payload := DiscoveryPayload{
		Name:        name,
		StateTopic:  CounterTopic(namespace, name),
		Unit:        "Wh",
		DeviceClass: "energy",
		StateClass:  "total_increasing",
		UniqueID:    id,
		Device: DiscoveryDevice{
			Identifiers:  []string{id},
			Name:         DeviceName + " " + name,
			Manufacturer: "DIY",
			Model:        "Energy Pulse Counter",
		},
	}
	return json.Marshal(payload)
}
