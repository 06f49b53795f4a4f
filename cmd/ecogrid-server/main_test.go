package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/daniacca/ecogrid/internal/eco"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = t.TempDir()
	}
	srv, err := NewServer(cfg, NewLoggerWithWriter("error", io.Discard))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeGrid(t *testing.T, w *httptest.ResponseRecorder) eco.Snapshot {
	t.Helper()
	grid, err := eco.DecodeSnapshotJSON(w.Body.Bytes())
	if err != nil {
		t.Fatalf("Failed to decode grid: %v", err)
	}
	return grid
}

func TestServer_HandleHealth(t *testing.T) {
	h := newTestServer(t, ServerConfig{}).routes()

	w := do(t, h, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("Expected 200 ok, got %d %q", w.Code, w.Body.String())
	}
}

func TestServer_NextIterationBeforeStart(t *testing.T) {
	h := newTestServer(t, ServerConfig{}).routes()

	for _, path := range []string{"/next-iteration", "/grid", "/census"} {
		w := do(t, h, http.MethodGet, path, "")
		if w.Code != http.StatusConflict {
			t.Errorf("%s: expected status 409, got %d", path, w.Code)
		}
	}
	if w := do(t, h, http.MethodPost, "/run", ""); w.Code != http.StatusConflict {
		t.Errorf("Expected /run before start to return 409, got %d", w.Code)
	}
}

func TestServer_StartSimulation(t *testing.T) {
	h := newTestServer(t, ServerConfig{}).routes()

	w := do(t, h, http.MethodPost, "/start-simulation", `{"plants":10,"herbivores":5,"carnivores":3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %s", ct)
	}

	grid := decodeGrid(t, w)
	if err := eco.ValidateSnapshot(grid, eco.GridSize); err != nil {
		t.Fatalf("Invalid grid: %v", err)
	}
	census := grid.Census()
	if census.Plants != 10 || census.Herbivores != 5 || census.Carnivores != 3 {
		t.Errorf("Expected 10/5/3, got %+v", census)
	}
}

func TestServer_StartSimulationRejects(t *testing.T) {
	h := newTestServer(t, ServerConfig{}).routes()

	w := do(t, h, http.MethodPost, "/start-simulation", `{"plants":226,"herbivores":0,"carnivores":0}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Too many entities") {
		t.Errorf("Expected 'Too many entities', got %q", w.Body.String())
	}

	w = do(t, h, http.MethodPost, "/start-simulation", `{"plants":-1}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for negative count, got %d", w.Code)
	}

	w = do(t, h, http.MethodPost, "/start-simulation", `{"plants":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid json, got %d", w.Code)
	}

	// Still not started.
	if w := do(t, h, http.MethodGet, "/next-iteration", ""); w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 after rejected starts, got %d", w.Code)
	}
}

func TestServer_NextIterationAndCensus(t *testing.T) {
	h := newTestServer(t, ServerConfig{Workers: 2}).routes()
	do(t, h, http.MethodPost, "/start-simulation", `{"plants":10,"herbivores":5,"carnivores":3}`)

	for i := 0; i < 3; i++ {
		w := do(t, h, http.MethodGet, "/next-iteration", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		if err := eco.ValidateSnapshot(decodeGrid(t, w), eco.GridSize); err != nil {
			t.Fatalf("Invalid grid after tick %d: %v", i+1, err)
		}
	}

	w := do(t, h, http.MethodGet, "/census", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp censusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse census: %v", err)
	}
	if resp.Tick != 3 {
		t.Errorf("Expected tick 3, got %d", resp.Tick)
	}
	if resp.Running {
		t.Error("Expected simulation not to be auto-running")
	}

	grid := decodeGrid(t, do(t, h, http.MethodGet, "/grid", ""))
	if grid.Census() != resp.Census {
		t.Errorf("Expected /grid census %+v to match /census %+v", grid.Census(), resp.Census)
	}
}

func TestServer_RunStop(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})
	h := srv.routes()
	do(t, h, http.MethodPost, "/start-simulation", `{"plants":10,"herbivores":5,"carnivores":3}`)

	if w := do(t, h, http.MethodPost, "/run?interval=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid interval, got %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/run?interval=1", ""); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if !srv.env.IsRunning() {
		t.Error("Expected simulation to be running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.env.Tick() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("Expected the simulation to advance on its own")
		}
		time.Sleep(2 * time.Millisecond)
	}

	if w := do(t, h, http.MethodPost, "/stop", ""); w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if srv.env.IsRunning() {
		t.Error("Expected simulation to be stopped")
	}
}

func TestServer_AutoRunOnStart(t *testing.T) {
	srv := newTestServer(t, ServerConfig{TickInterval: time.Millisecond})
	h := srv.routes()

	if w := do(t, h, http.MethodPost, "/start-simulation", `{"plants":3}`); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !srv.env.IsRunning() {
		t.Error("Expected start to begin auto-running")
	}
}

func TestServer_Notifiers(t *testing.T) {
	h := newTestServer(t, ServerConfig{}).routes()

	list := func() []map[string]string {
		w := do(t, h, http.MethodGet, "/notifiers", "")
		var resp struct {
			Notifiers []map[string]string `json:"notifiers"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse notifiers: %v", err)
		}
		return resp.Notifiers
	}
	listIDs := func() []string {
		var ids []string
		for _, n := range list() {
			ids = append(ids, n["id"])
		}
		return ids
	}

	if ids := listIDs(); len(ids) != 1 || ids[0] != streamNotifierID {
		t.Fatalf("Expected only the websocket notifier, got %v", ids)
	}

	w := do(t, h, http.MethodPost, "/notifiers", `{"type":"webhook","id":"hook","config":{"url":"http://localhost:9/hook","headers":{"X-Key":"k"}}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodPost, "/notifiers", `{"type":"webhook","id":"counts","config":{"url":"http://localhost:9/counts","payload":"census"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	entries := list()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 notifiers, got %v", entries)
	}
	// sorted by ID: counts, hook, websocket
	if entries[0]["payload"] != "census" || entries[0]["url"] != "http://localhost:9/counts" {
		t.Errorf("Expected census webhook entry, got %v", entries[0])
	}
	if entries[1]["payload"] != "full" {
		t.Errorf("Expected full payload by default, got %v", entries[1])
	}

	bad := []string{
		`{"type":"webhook","id":"hook","config":{"url":"http://localhost:9/hook"}}`,
		`{"type":"webhook","id":"nourl","config":{}}`,
		`{"type":"webhook","id":"rel","config":{"url":"/hook"}}`,
		`{"type":"webhook","id":"pay","config":{"url":"http://localhost:9/hook","payload":"everything"}}`,
		`{"type":"webhook","id":"hdr","config":{"url":"http://localhost:9/hook","headers":{"X-Key":1}}}`,
		`{"type":"carrier-pigeon","id":"p"}`,
		`{"type":"webhook","config":{"url":"http://localhost:9/hook"}}`,
		`not json`,
	}
	for _, body := range bad {
		if w := do(t, h, http.MethodPost, "/notifiers", body); w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400 for %s, got %d", body, w.Code)
		}
	}

	if w := do(t, h, http.MethodDelete, "/notifiers/"+streamNotifierID, ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected websocket notifier to be protected, got %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/notifiers/hook", ""); w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/notifiers/hook", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestNewServer_WebhookURL(t *testing.T) {
	logger := NewLoggerWithWriter("error", io.Discard)

	if _, err := NewServer(ServerConfig{Seed: 1, WebhookURL: "not a url"}, logger); err == nil {
		t.Error("Expected error for an invalid startup webhook URL")
	}

	srv := newTestServer(t, ServerConfig{WebhookURL: "http://localhost:9/ticks"})
	if _, ok := srv.notifierMgr.GetNotifier(startupWebhookID); !ok {
		t.Error("Expected the startup webhook to be registered")
	}
}

func TestServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>ecogrid</h1>"), 0o644); err != nil {
		t.Fatalf("Failed to write index: %v", err)
	}
	h := newTestServer(t, ServerConfig{StaticDir: dir}).routes()

	w := do(t, h, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ecogrid") {
		t.Errorf("Expected index.html content, got %q", w.Body.String())
	}
}

func TestServer_WebSocketStream(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/start-simulation", "application/json",
		strings.NewReader(`{"plants":10,"herbivores":5,"carnivores":3}`))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	resp.Body.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.stream.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Expected websocket client to be registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err = http.Get(ts.URL + "/next-iteration")
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	var event eco.TickEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("Invalid event: %v", err)
	}
	if event.Tick != 1 {
		t.Errorf("Expected tick 1, got %d", event.Tick)
	}
	if len(event.Grid) != eco.GridSize {
		t.Errorf("Expected %d rows, got %d", eco.GridSize, len(event.Grid))
	}
}
