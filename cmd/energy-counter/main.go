// Command energy-counter counts meter pulses on GPIO inputs, persists the
// totals, and publishes them to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/basilic/energy-counter/internal/button"
	"github.com/basilic/energy-counter/internal/command"
	"github.com/basilic/energy-counter/internal/config"
	"github.com/basilic/energy-counter/internal/counter"
	"github.com/basilic/energy-counter/internal/engine"
	"github.com/basilic/energy-counter/internal/flush"
	"github.com/basilic/energy-counter/internal/gpio"
	"github.com/basilic/energy-counter/internal/mqtt"
	"github.com/basilic/energy-counter/internal/status"
	"github.com/basilic/energy-counter/internal/storage"
	"github.com/basilic/energy-counter/internal/web"
)

// notifyBuffer is the capacity of the validated-pulse notification channel.
// Pulses beyond it are still counted, only the notification is dropped.
const notifyBuffer = 64

type options struct {
	dbPath     string
	broker     string
	chip       string
	pins       []int
	buttonPin  int
	debounce   time.Duration
	tick       time.Duration
	threshold  uint
	publish    time.Duration
	httpAddr   string
	namespace  string
	hold       time.Duration
	configMode bool
}

func main() {
	dbPath := flag.String("db", "/var/lib/energy-counter/counters.db", "Path to the counter database")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address (fallback when none is configured)")
	chip := flag.String("chip", gpio.DefaultChip, "GPIO character device")
	pins := flag.String("pins", intsToCSV(gpio.DefaultPins), "Comma-separated BCM line numbers, one per meter channel")
	buttonPin := flag.Int("button-pin", gpio.DefaultButtonPin, "BCM line for the configuration button (-1 to disable)")
	debounce := flag.Duration("debounce", engine.DefaultWindow, "Debounce window")
	tick := flag.Duration("tick", flush.DefaultInterval, "Persistence check interval")
	threshold := flag.Uint("threshold", flush.DefaultThreshold, "Pulses accumulated before a durable save")
	publish := flag.Duration("publish", 5*time.Minute, "Counter publish interval")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	namespace := flag.String("namespace", mqtt.DefaultNamespace, "MQTT topic namespace")
	hold := flag.Duration("hold", button.DefaultHold, "Button hold required to arm configuration mode")
	configMode := flag.Bool("config-mode", false, "Start directly in configuration mode")

	flag.Parse()

	parsedPins, err := parsePins(*pins)
	if err != nil {
		log.Fatalf("fatal: -pins: %v", err)
	}

	o := options{
		dbPath:     *dbPath,
		broker:     *broker,
		chip:       *chip,
		pins:       parsedPins,
		buttonPin:  *buttonPin,
		debounce:   *debounce,
		tick:       *tick,
		threshold:  *threshold,
		publish:    *publish,
		httpAddr:   *httpAddr,
		namespace:  *namespace,
		hold:       *hold,
		configMode: *configMode,
	}
	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	store, err := storage.OpenBolt(o.dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	n := len(o.pins)
	settings, err := config.Load(store, n)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if o.configMode || settings.ConfigMode {
		return runConfigMode(store, o, settings)
	}
	return runDaemon(store, o, settings)
}

// runConfigMode serves only the configuration portal. The stored flag is
// cleared immediately so the next start comes up in normal mode.
func runConfigMode(store storage.Store, o options, settings config.Settings) error {
	if settings.ConfigMode {
		if err := config.SetConfigMode(store, false); err != nil {
			return fmt.Errorf("clear config mode flag: %w", err)
		}
	}

	ns, err := store.Open(storage.NamespaceCounters)
	if err != nil {
		return fmt.Errorf("open counters namespace: %w", err)
	}
	defer ns.Close()
	counters := counter.NewStoreWith(storage.LoadCounters(ns, len(o.pins)))

	tracker := status.NewTracker(time.Now(), trackerConfig(o, true), settings.MeterNames)

	addr := o.httpAddr
	if addr == "" {
		addr = ":80"
	}
	srv := web.New(addr, tracker, &web.Portal{Store: store, Counters: counters})
	log.Printf("configuration mode: portal listening on %s", addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	log.Printf("configuration mode: shutting down")
	return nil
}

func runDaemon(store storage.Store, o options, settings config.Settings) error {
	n := len(o.pins)

	ns, err := store.Open(storage.NamespaceCounters)
	if err != nil {
		return fmt.Errorf("open counters namespace: %w", err)
	}
	defer ns.Close()

	counters := counter.NewStoreWith(storage.LoadCounters(ns, n))
	for i, v := range counters.Snapshot() {
		log.Printf("counter %d (%s): %d", i, settings.MeterNames[i], v)
	}

	inputs, err := gpio.NewRealInputs(o.chip, o.pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer inputs.Close()

	eng, err := engine.New(inputs, counters, o.debounce, notifyBuffer)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	defer eng.Stop()

	flusher := flush.New(counters, ns, uint32(o.threshold), o.tick)

	broker := settings.BrokerURL(o.broker)
	var proc *command.Processor
	client, err := mqtt.NewRealClient(mqtt.Options{
		Broker:     broker,
		Username:   settings.Username,
		Password:   settings.Password,
		Namespace:  o.namespace,
		MeterNames: settings.MeterNames,
		OnCommand: func(payload string) {
			if proc == nil {
				return
			}
			if err := proc.Handle(payload); err != nil {
				log.Printf("command: %q: %v", payload, err)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("connect mqtt: %w", err)
	}
	defer client.Close()
	proc = command.NewProcessor(counters, flusher, client)

	tracker := status.NewTracker(time.Now(), trackerConfigWithBroker(o, broker), settings.MeterNames)
	tracker.SetMQTTConnected(client.IsConnected())

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// Cancelled by the configuration button as well as by signals.
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, &web.Portal{Store: store, Counters: counters, Saver: flusher})
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	if err := eng.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	log.Printf("started: channels=%d debounce=%v tick=%v threshold=%d publish=%v broker=%s",
		n, o.debounce, o.tick, o.threshold, o.publish, broker)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return flusher.Run(ctx)
	})

	g.Go(func() error {
		return notificationLoop(ctx, eng, tracker)
	})

	g.Go(func() error {
		return publishLoop(ctx, o.publish, counters, settings.MeterNames, client, tracker)
	})

	g.Go(func() error {
		return statusLoop(ctx, eng, flusher, client, tracker, counters)
	})

	if o.buttonPin >= 0 {
		btn, err := gpio.NewRealButton(o.chip, o.buttonPin)
		if err != nil {
			log.Printf("configuration button unavailable: %v", err)
		} else {
			defer btn.Close()
			mon := button.NewMonitor(btn, o.hold, button.DefaultSampleInterval, func() {
				log.Printf("button held %v: arming configuration mode and stopping", o.hold)
				if err := config.SetConfigMode(store, true); err != nil {
					log.Printf("arm configuration mode: %v", err)
					return
				}
				cancel()
			})
			g.Go(func() error {
				return mon.Run(ctx)
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}

	// Persist whatever the threshold has not flushed yet. The scheduler's
	// goroutine has stopped, but its mutex still orders this against any
	// straggling command write.
	if err := flusher.SaveAll(); err != nil {
		log.Printf("final save: %v", err)
	}
	log.Printf("shutting down")
	return nil
}

// notificationLoop logs validated pulses and keeps the per-channel status
// counters fresh.
func notificationLoop(ctx context.Context, eng *engine.Engine, tracker *status.Tracker) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case notif := <-eng.Notifications():
			log.Printf("pulse: channel=%d count=%d", notif.Channel, notif.Value)
			diag := eng.Diagnostics()
			d := diag[notif.Channel]
			tracker.UpdateChannel(notif.Channel, notif.Value, d.Edges, d.Validated, d.Rejected)
		}
	}
}

// publishLoop publishes every counter on its meter topic at the configured
// interval.
func publishLoop(ctx context.Context, interval time.Duration, counters *counter.Store, names []string, client *mqtt.RealClient, tracker *status.Tracker) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for i, v := range counters.Snapshot() {
				if err := client.PublishCounter(names[i], v); err != nil {
					log.Printf("publish %s: %v", names[i], err)
				}
			}
		}
	}
}

// statusLoop refreshes the status tracker for the HTTP page.
func statusLoop(ctx context.Context, eng *engine.Engine, flusher *flush.Scheduler, client *mqtt.RealClient, tracker *status.Tracker, counters *counter.Store) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			diag := eng.Diagnostics()
			for i, v := range counters.Snapshot() {
				d := diag[i]
				tracker.UpdateChannel(i, v, d.Edges, d.Validated, d.Rejected)
			}
			saves, failures := flusher.Stats()
			tracker.SetFlushStats(saves, failures)
			tracker.SetDroppedNotifications(eng.DroppedNotifications())
			tracker.SetMQTTConnected(client.IsConnected())
		}
	}
}

func trackerConfig(o options, configMode bool) status.Config {
	return status.Config{
		Channels:   len(o.pins),
		DebounceMs: o.debounce.Milliseconds(),
		ThresholdP: uint32(o.threshold),
		TickMs:     o.tick.Milliseconds(),
		PublishMs:  o.publish.Milliseconds(),
		Broker:     o.broker,
		Namespace:  o.namespace,
		HTTPAddr:   o.httpAddr,
		ConfigMode: configMode,
	}
}

func trackerConfigWithBroker(o options, broker string) status.Config {
	cfg := trackerConfig(o, false)
	cfg.Broker = broker
	return cfg
}

// parsePins parses a comma-separated list of BCM line numbers.
func parsePins(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	pins := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		pin, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad line number %q", p)
		}
		if pin < 0 {
			return nil, fmt.Errorf("negative line number %d", pin)
		}
		pins = append(pins, pin)
	}
	if len(pins) == 0 {
		return nil, fmt.Errorf("no line numbers in %q", s)
	}
	return pins, nil
}

func intsToCSV(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
