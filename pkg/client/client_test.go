package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/daniacca/ecogrid/internal/eco"
	"github.com/daniacca/ecogrid/internal/eco/notifiers"
)

// fakeServer serves the same routes as ecogrid-server on top of a real
// environment.
type fakeServer struct {
	env      *eco.Environment
	stream   *notifiers.WebSocketNotifier
	mgr      *eco.NotificationManager
	mu       sync.Mutex
	lastRun  string
	stopped  bool
	webhooks []registerNotifierRequest
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{
		env:    eco.NewEnvironment(eco.Options{Seed: 3}),
		stream: notifiers.NewWebSocketNotifier("websocket"),
		mgr:    eco.NewNotificationManager(),
	}
	fs.mgr.RegisterNotifier(fs.stream)
	fs.env.SetNotificationManager(fs.mgr)

	writeGrid := func(w http.ResponseWriter, grid eco.Snapshot, err error) {
		switch {
		case errors.Is(err, eco.ErrNotInitialized):
			http.Error(w, "simulation not started", http.StatusConflict)
		case errors.Is(err, eco.ErrTooManyEntities):
			http.Error(w, "Too many entities", http.StatusBadRequest)
		case err != nil:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(grid)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /start-simulation", func(w http.ResponseWriter, r *http.Request) {
		var pop eco.Population
		if err := json.NewDecoder(r.Body).Decode(&pop); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		grid, err := fs.env.Start(pop)
		writeGrid(w, grid, err)
	})
	mux.HandleFunc("GET /next-iteration", func(w http.ResponseWriter, r *http.Request) {
		grid, err := fs.env.Step()
		writeGrid(w, grid, err)
	})
	mux.HandleFunc("GET /grid", func(w http.ResponseWriter, r *http.Request) {
		grid, err := fs.env.Snapshot()
		writeGrid(w, grid, err)
	})
	mux.HandleFunc("GET /census", func(w http.ResponseWriter, r *http.Request) {
		tick, census, act, err := fs.env.Stats()
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		json.NewEncoder(w).Encode(CensusReport{Tick: tick, Census: census, Activity: act})
	})
	mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.lastRun = r.URL.Query().Get("interval")
	})
	mux.HandleFunc("POST /stop", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.stopped = true
	})
	mux.HandleFunc("POST /notifiers", func(w http.ResponseWriter, r *http.Request) {
		var req registerNotifierRequest
		json.NewDecoder(r.Body).Decode(&req)
		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.webhooks = append(fs.webhooks, req)
	})
	mux.HandleFunc("DELETE /notifiers/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "notifier with ID "+r.PathValue("id")+" not found", http.StatusNotFound)
	})
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		fs.stream.HandleConnection(w, r)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		fs.mgr.Close()
		ts.Close()
	})
	return fs, ts
}

type recorded struct {
	lastRun  string
	stopped  bool
	webhooks []registerNotifierRequest
}

func (fs *fakeServer) snapshot() recorded {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return recorded{lastRun: fs.lastRun, stopped: fs.stopped, webhooks: fs.webhooks}
}

func TestClient_StartStepGrid(t *testing.T) {
	_, ts := newFakeServer(t)
	c := New(ts.URL + "/")
	ctx := context.Background()

	grid, err := c.Start(ctx, eco.Population{Plants: 10, Herbivores: 5, Carnivores: 3})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if census := grid.Census(); census.Plants != 10 || census.Herbivores != 5 || census.Carnivores != 3 {
		t.Errorf("Expected 10/5/3, got %+v", census)
	}

	stepped, err := c.Step(ctx)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	current, err := c.Grid(ctx)
	if err != nil {
		t.Fatalf("Grid failed: %v", err)
	}
	if stepped.Census() != current.Census() {
		t.Error("Expected Grid to return the grid of the last step")
	}

	report, err := c.Census(ctx)
	if err != nil {
		t.Fatalf("Census failed: %v", err)
	}
	if report.Tick != 1 {
		t.Errorf("Expected tick 1, got %d", report.Tick)
	}
}

func TestClient_Errors(t *testing.T) {
	_, ts := newFakeServer(t)
	c := New(ts.URL)
	ctx := context.Background()

	if _, err := c.Step(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted, got %v", err)
	}

	_, err := c.Start(ctx, eco.Population{Plants: 226})
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("Expected *StatusError, got %v", err)
	}
	if serr.StatusCode != http.StatusBadRequest || serr.Body != "Too many entities" {
		t.Errorf("Unexpected error: %d %q", serr.StatusCode, serr.Body)
	}
	if errors.Is(err, ErrNotStarted) {
		t.Error("Expected 400 not to map to ErrNotStarted")
	}

	if err := c.UnregisterNotifier(ctx, "missing"); err == nil {
		t.Error("Expected error for unknown notifier")
	}
}

func TestClient_RunStopWebhook(t *testing.T) {
	fs, ts := newFakeServer(t)
	c := New(ts.URL)
	ctx := context.Background()

	if err := c.Run(ctx, 250); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := fs.snapshot().lastRun; got != strconv.Itoa(250) {
		t.Errorf("Expected interval 250, got %q", got)
	}
	if err := c.Run(ctx, 0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := fs.snapshot().lastRun; got != "" {
		t.Errorf("Expected no interval, got %q", got)
	}
	if err := c.Stop(ctx); err != nil || !fs.snapshot().stopped {
		t.Errorf("Expected stop to reach the server, got %v", err)
	}

	if err := c.RegisterWebhook(ctx, "hook", "http://example.com/hook", map[string]string{"X-Key": "k"}); err != nil {
		t.Fatalf("RegisterWebhook failed: %v", err)
	}
	hooks := fs.snapshot().webhooks
	if len(hooks) != 1 {
		t.Fatalf("Expected one registration, got %d", len(hooks))
	}
	got := hooks[0]
	if got.Type != "webhook" || got.ID != "hook" || got.Config["url"] != "http://example.com/hook" {
		t.Errorf("Unexpected registration: %+v", got)
	}
	if got.Config["payload"] != "full" {
		t.Errorf("Expected full payload, got %v", got.Config["payload"])
	}

	if err := c.RegisterCensusWebhook(ctx, "counts", "http://example.com/counts", nil); err != nil {
		t.Fatalf("RegisterCensusWebhook failed: %v", err)
	}
	hooks = fs.snapshot().webhooks
	if len(hooks) != 2 || hooks[1].Config["payload"] != "census" {
		t.Errorf("Expected a census registration, got %+v", hooks)
	}
	if _, ok := hooks[1].Config["headers"]; ok {
		t.Error("Expected no headers without custom headers")
	}
}

func TestClient_RejectsMalformedGrid(t *testing.T) {
	bodies := map[string]string{
		"not json":       `{"grid":`,
		"empty with age": `[[{"type":" ","energy":0,"age":4}]]`,
		"ragged":         `[[{"type":"P","energy":0,"age":1}],[]]`,
		"energy too big": `[[{"type":"H","energy":900,"age":1}]]`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer ts.Close()

			if _, err := New(ts.URL).Grid(context.Background()); err == nil {
				t.Errorf("Expected error for %s", body)
			}
		})
	}
}

func TestClient_Watch(t *testing.T) {
	fs, ts := newFakeServer(t)
	c := New(ts.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.Start(ctx, eco.Population{Plants: 10, Herbivores: 5, Carnivores: 3}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	errDone := errors.New("done")
	var ticks []int64
	result := make(chan error, 1)
	go func() {
		result <- c.Watch(ctx, func(event eco.TickEvent) error {
			ticks = append(ticks, event.Tick)
			if len(ticks) == 2 {
				return errDone
			}
			return nil
		})
	}()

	for fs.stream.ClientCount() != 1 {
		if ctx.Err() != nil {
			t.Fatal("Expected watcher to connect")
		}
		time.Sleep(5 * time.Millisecond)
	}

	for range 2 {
		if _, err := c.Step(ctx); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}

	if err := <-result; !errors.Is(err, errDone) {
		t.Fatalf("Expected Watch to return the callback error, got %v", err)
	}
	if len(ticks) != 2 || ticks[0] != 1 || ticks[1] != 2 {
		t.Errorf("Expected ticks [1 2], got %v", ticks)
	}
}

func TestClient_WatchCancel(t *testing.T) {
	fs, ts := newFakeServer(t)
	c := New(ts.URL)
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan error, 1)
	go func() {
		result <- c.Watch(ctx, func(eco.TickEvent) error { return nil })
	}()

	deadline := time.Now().Add(2 * time.Second)
	for fs.stream.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Expected watcher to connect")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-result:
		if err != nil {
			t.Errorf("Expected nil after cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Watch to return after cancel")
	}
}

func TestClient_StreamURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:8080":    "ws://localhost:8080/ws",
		"https://eco.example.com/": "wss://eco.example.com/ws",
		"http://host/prefix":       "ws://host/prefix/ws",
	}
	for base, want := range tests {
		got, err := New(base).streamURL()
		if err != nil {
			t.Fatalf("streamURL(%s) failed: %v", base, err)
		}
		if got != want {
			t.Errorf("streamURL(%s) = %s, want %s", base, got, want)
		}
	}
}
