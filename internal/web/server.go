// Package web serves the status page and the configuration portal.
package web

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/basilic/energy-counter/internal/config"
	"github.com/basilic/energy-counter/internal/counter"
	"github.com/basilic/energy-counter/internal/status"
	"github.com/basilic/energy-counter/internal/storage"
)

// Saver mirrors the persistence scheduler's force-set: the in-memory value
// and the durable copy move in one step, serialized with threshold flushes.
type Saver interface {
	ForceSet(channel int, value uint32) error
}

// Portal gives the web server write access to counters and settings.
// When nil, only the status endpoints are served.
type Portal struct {
	Store    storage.Store
	Counters *counter.Store
	Saver    Saver // may be nil (config mode runs without a scheduler)
}

// Server serves the status page and, when a Portal is configured, the
// configuration form.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	portal     *Portal
}

// New creates a Server reading state from the given tracker.
func New(addr string, tracker *status.Tracker, portal *Portal) *Server {
	s := &Server{tracker: tracker, portal: portal}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	if portal != nil {
		mux.HandleFunc("/config", s.handleConfig)
		mux.HandleFunc("/save", s.handleSave)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	// In configuration mode the root is the form, as on the captive portal.
	if s.portal != nil && snap.Config.ConfigMode {
		http.Redirect(w, r, "/config", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderIndex(w, snap, s.portal != nil)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatJSON(snap))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	n := s.portal.Counters.Len()
	settings, err := config.Load(s.portal.Store, n)
	if err != nil {
		http.Error(w, "load settings", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderConfig(w, settings, s.portal.Counters.Snapshot())
}

// handleSave applies the configuration form: counter values go to both the
// in-memory store and durable storage; names and broker settings go to the
// settings namespaces.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	if err := s.applyForm(r); err != nil {
		log.Printf("web: save: %v", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, savedHTML)
}

func (s *Server) applyForm(r *http.Request) error {
	n := s.portal.Counters.Len()

	// Without a scheduler (configuration mode) the portal is the only
	// counter writer and opens its own handle. With one, every write goes
	// through it so it serializes with threshold flushes.
	var ns storage.Namespace
	if s.portal.Saver == nil {
		var err error
		ns, err = s.portal.Store.Open(storage.NamespaceCounters)
		if err != nil {
			return fmt.Errorf("open counters namespace: %w", err)
		}
		defer ns.Close()
	}

	// Counter values: an empty field resets the counter to zero, matching
	// the form being prefilled with current values.
	for i := 0; i < n; i++ {
		field, ok := firstValue(r, storage.CounterKey(i))
		if !ok {
			continue
		}
		var value uint32
		if field != "" {
			parsed, err := strconv.ParseUint(field, 10, 32)
			if err != nil {
				return fmt.Errorf("counter %d: bad value %q", i, field)
			}
			value = uint32(parsed)
		}
		if s.portal.Saver != nil {
			if err := s.portal.Saver.ForceSet(i, value); err != nil {
				return err
			}
		} else {
			s.portal.Counters.Set(i, value)
			if err := storage.SaveCounter(ns, i, value); err != nil {
				return err
			}
		}
		log.Printf("web: counter %d set to %d", i, value)
	}

	settings, err := config.Load(s.portal.Store, n)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	for i := 0; i < n; i++ {
		if name, ok := firstValue(r, storage.NameKey(i)); ok && name != "" {
			settings.MeterNames[i] = name
		}
	}
	if v, ok := firstValue(r, "mqtt_server"); ok {
		settings.Server = v
	}
	if v, ok := firstValue(r, "mqtt_port"); ok && v != "" {
		settings.Port = v
	}
	if v, ok := firstValue(r, "mqtt_user"); ok {
		settings.Username = v
	}
	if v, ok := firstValue(r, "mqtt_pass"); ok {
		settings.Password = v
	}
	if err := config.Save(s.portal.Store, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func firstValue(r *http.Request, key string) (string, bool) {
	vs, ok := r.PostForm[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}
