// Package config reads and writes the persisted device settings: meter
// names, broker connection parameters, and the configuration-mode flag.
// Settings live next to the counters in the durable store, under their own
// namespaces.
package config

import (
	"errors"
	"fmt"
	"log"

	"github.com/basilic/energy-counter/internal/storage"
)

// Keys in the mqtt namespace.
const (
	keyServer   = "mqtt_server"
	keyPort     = "mqtt_port"
	keyUser     = "mqtt_user"
	keyPassword = "mqtt_pass"
)

// keyConfigMode in the config namespace: nonzero means the device boots into
// the configuration portal instead of normal counting mode.
const keyConfigMode = "config_mode"

// Settings are the persisted device settings.
type Settings struct {
	MeterNames []string
	Server     string
	Port       string
	Username   string
	Password   string
	ConfigMode bool
}

// DefaultMeterName returns the fallback name for a channel ("compteur1"...).
func DefaultMeterName(channel int) string {
	return fmt.Sprintf("compteur%d", channel+1)
}

// Load reads the settings for n channels. Missing keys fall back to
// defaults; read errors are logged and also fall back, so damaged settings
// never prevent startup.
func Load(store storage.Store, n int) (Settings, error) {
	s := Settings{MeterNames: make([]string, n)}

	counters, err := store.Open(storage.NamespaceCounters)
	if err != nil {
		return s, fmt.Errorf("open counters namespace: %w", err)
	}
	defer counters.Close()

	for i := 0; i < n; i++ {
		name, err := counters.GetString(storage.NameKey(i))
		switch {
		case err == nil && name != "":
			s.MeterNames[i] = name
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			log.Printf("config: read meter name %d: %v", i, err)
			fallthrough
		default:
			s.MeterNames[i] = DefaultMeterName(i)
		}
	}

	mqttNS, err := store.Open(storage.NamespaceMQTT)
	if err != nil {
		return s, fmt.Errorf("open mqtt namespace: %w", err)
	}
	defer mqttNS.Close()

	s.Server = getStringOr(mqttNS, keyServer, "")
	s.Port = getStringOr(mqttNS, keyPort, "1883")
	s.Username = getStringOr(mqttNS, keyUser, "")
	s.Password = getStringOr(mqttNS, keyPassword, "")

	cfgNS, err := store.Open(storage.NamespaceConfig)
	if err != nil {
		return s, fmt.Errorf("open config namespace: %w", err)
	}
	defer cfgNS.Close()

	mode, err := cfgNS.GetU32(keyConfigMode)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("config: read config mode: %v", err)
	}
	s.ConfigMode = mode != 0

	return s, nil
}

// Save durably writes the meter names and broker settings.
func Save(store storage.Store, s Settings) error {
	counters, err := store.Open(storage.NamespaceCounters)
	if err != nil {
		return fmt.Errorf("open counters namespace: %w", err)
	}
	defer counters.Close()

	for i, name := range s.MeterNames {
		if err := counters.SetString(storage.NameKey(i), name); err != nil {
			return fmt.Errorf("set meter name %d: %w", i, err)
		}
	}
	if err := counters.Commit(); err != nil {
		return fmt.Errorf("commit meter names: %w", err)
	}

	mqttNS, err := store.Open(storage.NamespaceMQTT)
	if err != nil {
		return fmt.Errorf("open mqtt namespace: %w", err)
	}
	defer mqttNS.Close()

	for _, kv := range []struct{ key, value string }{
		{keyServer, s.Server},
		{keyPort, s.Port},
		{keyUser, s.Username},
		{keyPassword, s.Password},
	} {
		if err := mqttNS.SetString(kv.key, kv.value); err != nil {
			return fmt.Errorf("set %s: %w", kv.key, err)
		}
	}
	if err := mqttNS.Commit(); err != nil {
		return fmt.Errorf("commit mqtt settings: %w", err)
	}
	return nil
}

// SetConfigMode durably writes the configuration-mode flag.
func SetConfigMode(store storage.Store, enabled bool) error {
	ns, err := store.Open(storage.NamespaceConfig)
	if err != nil {
		return fmt.Errorf("open config namespace: %w", err)
	}
	defer ns.Close()

	var v uint32
	if enabled {
		v = 1
	}
	if err := ns.SetU32(keyConfigMode, v); err != nil {
		return fmt.Errorf("set config mode: %w", err)
	}
	if err := ns.Commit(); err != nil {
		return fmt.Errorf("commit config mode: %w", err)
	}
	return nil
}

// BrokerURL assembles the broker URL from the persisted server and port,
// or returns fallback when no server is configured.
func (s Settings) BrokerURL(fallback string) string {
	if s.Server == "" {
		return fallback
	}
	return fmt.Sprintf("tcp://%s:%s", s.Server, s.Port)
}

func getStringOr(ns storage.Namespace, key, fallback string) string {
	v, err := ns.GetString(key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("config: read %s: %v", key, err)
		}
		return fallback
	}
	return v
}
