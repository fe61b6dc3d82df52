package web

import (
	"encoding/json"
	"time"

	"github.com/basilic/energy-counter/internal/status"
)

// StatusJSON is the JSON representation of the daemon status.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Channels      []ChannelJSON `json:"channels"`
	Persistence   FlushJSON     `json:"persistence"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Config        ConfigJSON    `json:"config"`
}

// ChannelJSON is the JSON representation of one meter channel.
type ChannelJSON struct {
	Channel   int    `json:"channel"`
	Name      string `json:"name"`
	Count     uint32 `json:"count"`
	Edges     uint64 `json:"edges"`
	Validated uint64 `json:"validated"`
	Rejected  uint64 `json:"rejected"`
}

// FlushJSON is the JSON representation of persistence statistics.
type FlushJSON struct {
	Saves                uint64 `json:"saves"`
	SaveFailures         uint64 `json:"save_failures"`
	DroppedNotifications uint64 `json:"dropped_notifications"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Namespace string `json:"namespace"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Channels   int    `json:"channels"`
	DebounceMs int64  `json:"debounce_ms"`
	Threshold  uint32 `json:"threshold_pulses"`
	TickMs     int64  `json:"tick_ms"`
	PublishMs  int64  `json:"publish_ms"`
	HTTPAddr   string `json:"http_addr"`
	ConfigMode bool   `json:"config_mode"`
}

func formatJSON(snap status.Snapshot) []byte {
	channels := make([]ChannelJSON, len(snap.Channels))
	for i, c := range snap.Channels {
		channels[i] = ChannelJSON{
			Channel:   i,
			Name:      c.Name,
			Count:     c.Count,
			Edges:     c.Edges,
			Validated: c.Validated,
			Rejected:  c.Rejected,
		}
	}

	sj := StatusJSON{
		Status: StatusInner{
			Channels: channels,
			Persistence: FlushJSON{
				Saves:                snap.FlushSaves,
				SaveFailures:         snap.FlushFailures,
				DroppedNotifications: snap.DroppedNotifs,
			},
			UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
			StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
			Timestamp:     snap.Now.UTC().Format(time.RFC3339),
			MQTT: MQTTStatus{
				Connected: snap.MQTTConnected,
				Broker:    snap.Config.Broker,
				Namespace: snap.Config.Namespace,
			},
			Config: ConfigJSON{
				Channels:   snap.Config.Channels,
				DebounceMs: snap.Config.DebounceMs,
				Threshold:  snap.Config.ThresholdP,
				TickMs:     snap.Config.TickMs,
				PublishMs:  snap.Config.PublishMs,
				HTTPAddr:   snap.Config.HTTPAddr,
				ConfigMode: snap.Config.ConfigMode,
			},
		},
	}

	data, _ := json.MarshalIndent(sj, "", "  ")
	return data
}
