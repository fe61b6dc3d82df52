// Package status provides a thread-safe status tracker for the daemon.
// It is read by the HTTP handlers and refreshed from the run loop.
package status

import (
	"sync"
	"time"
)

// ChannelStatus is the displayed state of one meter channel.
type ChannelStatus struct {
	Name      string
	Count     uint32
	Edges     uint64
	Validated uint64
	Rejected  uint64
}

// Config contains daemon configuration for display.
type Config struct {
	Channels   int
	DebounceMs int64
	ThresholdP uint32 // flush threshold in pulses
	TickMs     int64
	PublishMs  int64
	Broker     string
	Namespace  string
	HTTPAddr   string
	ConfigMode bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Channels      []ChannelStatus
	FlushSaves    uint64
	FlushFailures uint64
	DroppedNotifs uint64
	MQTTConnected bool
	StartTime     time.Time
	Now           time.Time
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, config, and meter
// names.
func NewTracker(startTime time.Time, cfg Config, names []string) *Tracker {
	channels := make([]ChannelStatus, len(names))
	for i, name := range names {
		channels[i].Name = name
	}
	return &Tracker{
		snap: Snapshot{
			Channels:  channels,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// UpdateChannel refreshes one channel's displayed counters.
func (t *Tracker) UpdateChannel(channel int, count uint32, edges, validated, rejected uint64) {
	t.mu.Lock()
	if channel >= 0 && channel < len(t.snap.Channels) {
		c := &t.snap.Channels[channel]
		c.Count = count
		c.Edges = edges
		c.Validated = validated
		c.Rejected = rejected
	}
	t.mu.Unlock()
}

// SetFlushStats refreshes the persistence statistics.
func (t *Tracker) SetFlushStats(saves, failures uint64) {
	t.mu.Lock()
	t.snap.FlushSaves = saves
	t.snap.FlushFailures = failures
	t.mu.Unlock()
}

// SetDroppedNotifications sets the dropped-notification count.
func (t *Tracker) SetDroppedNotifications(n uint64) {
	t.mu.Lock()
	t.snap.DroppedNotifs = n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = make([]ChannelStatus, len(t.snap.Channels))
	copy(s.Channels, t.snap.Channels)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
