package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/talgya/luna-sim/internal/domain"
	"github.com/talgya/luna-sim/internal/engine"
	"github.com/talgya/luna-sim/internal/environment"
	"github.com/talgya/luna-sim/internal/persistence"
	"github.com/talgya/luna-sim/internal/stream"
)

const testAdminKey = "test-admin-key"

// newTestServer wires a real orchestrator with a fast tick loop behind an
// httptest server.
func newTestServer(t *testing.T) (*httptest.Server, *engine.Orchestrator) {
	t.Helper()

	db, err := persistence.Open(filepath.Join(t.TempDir(), "luna.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	backend := stream.NewMemoryBackend(0)
	bus := stream.NewBus(backend)

	cfg := engine.DefaultConfig()
	cfg.TickInterval = time.Millisecond
	cfg.SimStart = time.Date(2026, 6, 3, 12, 0, 0, 0, time.UTC)
	cfg.InitialActors = 20

	orch := engine.New(cfg, bus, domain.NewStore(), environment.NewProvider(cfg.Seed), db)
	go orch.Run()
	t.Cleanup(orch.Shutdown)

	s := &Server{
		Orch:     orch,
		Bus:      bus,
		Source:   backend,
		AdminKey: testAdminKey,
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, orch
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func postJSON(t *testing.T, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestStatusEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	var status map[string]any
	resp := getJSON(t, ts.URL+"/api/v1/status", &status)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if status["run_state"] != "stopped" {
		t.Fatalf("run_state = %v", status["run_state"])
	}
	if status["venues"] != float64(12) {
		t.Fatalf("venues = %v", status["venues"])
	}
}

func TestScenarioListEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		Scenarios []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"scenarios"`
		Active string `json:"active"`
	}
	getJSON(t, ts.URL+"/api/v1/scenarios", &body)
	if len(body.Scenarios) != 6 {
		t.Fatalf("scenarios = %d, want 6", len(body.Scenarios))
	}
	if body.Active != "normal" {
		t.Fatalf("active = %q", body.Active)
	}
}

func TestCommandEndpointRequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/command", "", `{"command":"start"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: %d, want 401", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/v1/command", "wrong-key", `{"command":"start"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: %d, want 401", resp.StatusCode)
	}
}

func TestCommandLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/command", testAdminKey, `{"command":"start","speed":2}`)
	var res engine.CommandResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !res.OK {
		t.Fatalf("start: %d %+v", resp.StatusCode, res)
	}
	if res.State.RunState != engine.StateRunning || res.State.Speed != 2 {
		t.Fatalf("state after start: %+v", res.State)
	}

	// Invalid command comes back as a validation error, not a 500.
	resp = postJSON(t, ts.URL+"/api/v1/command", testAdminKey, `{"command":"set_speed","speed":-1}`)
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity || res.OK {
		t.Fatalf("set_speed(-1): %d %+v", resp.StatusCode, res)
	}

	resp = postJSON(t, ts.URL+"/api/v1/command", testAdminKey, `{"command":"stop"}`)
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if !res.OK || res.State.RunState != engine.StateStopped {
		t.Fatalf("stop: %+v", res)
	}
}

func TestMalformedCommandRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/command", testAdminKey, `{not json`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed: %d, want 400", resp.StatusCode)
	}
}

func TestEventsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/command", testAdminKey, `{"command":"start"}`)
	resp.Body.Close()
	// A few fast ticks generate control and action events.
	time.Sleep(50 * time.Millisecond)

	var body struct {
		Channel string         `json:"channel"`
		Events  []stream.Event `json:"events"`
	}
	getJSON(t, ts.URL+"/api/v1/events?channel=simulation_control", &body)
	if len(body.Events) == 0 {
		t.Fatal("no control events")
	}
	if body.Events[0].Type != "simulation_started" {
		t.Fatalf("first control event = %s", body.Events[0].Type)
	}

	resp = getJSON(t, ts.URL+"/api/v1/events", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing channel: %d, want 400", resp.StatusCode)
	}
}

func TestActorsAndVenuesEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	var actorsBody struct {
		Actors []struct {
			ID      uint64 `json:"id"`
			Persona string `json:"persona"`
		} `json:"actors"`
	}
	getJSON(t, ts.URL+"/api/v1/actors", &actorsBody)
	if len(actorsBody.Actors) != 20 {
		t.Fatalf("actors = %d, want 20", len(actorsBody.Actors))
	}

	var venuesBody struct {
		Venues []struct {
			Name    string `json:"name"`
			Cuisine string `json:"cuisine"`
		} `json:"venues"`
	}
	getJSON(t, ts.URL+"/api/v1/venues", &venuesBody)
	if len(venuesBody.Venues) != 12 {
		t.Fatalf("venues = %d, want 12", len(venuesBody.Venues))
	}
}

func TestSnapshotEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/snapshots", testAdminKey, `{"name":"checkpoint","description":"test"}`)
	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || created.ID == 0 {
		t.Fatalf("create: %d id=%d", resp.StatusCode, created.ID)
	}

	var list struct {
		Snapshots []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"snapshots"`
	}
	getJSON(t, ts.URL+"/api/v1/snapshots", &list)
	if len(list.Snapshots) != 1 || list.Snapshots[0].Name != "checkpoint" {
		t.Fatalf("list: %+v", list)
	}

	resp = postJSON(t, ts.URL+"/api/v1/snapshots/restore", testAdminKey, fmt.Sprintf(`{"id":%d}`, created.ID))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restore: %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/v1/snapshots/restore", testAdminKey, `{"id":999}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("restore missing: %d, want 422", resp.StatusCode)
	}
}

func TestStreamRequiresRelayKey(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := getJSON(t, ts.URL+"/api/v1/stream", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("no relay key: %d, want 403", resp.StatusCode)
	}
}

func TestStreamChannelSelection(t *testing.T) {
	cases := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"", 1, true},
		{"bookings", 1, true},
		{"bookings,social", 2, true},
		{"bookings, social", 2, true},
		{"all", len(stream.Channels), true},
		{"bogus", 0, false},
		{"bookings,bogus", 0, false},
	}
	for _, tc := range cases {
		channels, err := streamChannels(tc.raw)
		if tc.ok != (err == nil) {
			t.Fatalf("streamChannels(%q) err = %v", tc.raw, err)
		}
		if len(channels) != tc.want {
			t.Fatalf("streamChannels(%q) = %d channels, want %d", tc.raw, len(channels), tc.want)
		}
	}
}

// newStreamServer serves just the stream surface with a relay key set, so
// SSE tests can publish straight to the bus.
func newStreamServer(t *testing.T) (*httptest.Server, *stream.Bus) {
	t.Helper()

	backend := stream.NewMemoryBackend(0)
	bus := stream.NewBus(backend)
	s := &Server{
		Bus:      bus,
		Source:   backend,
		AdminKey: testAdminKey,
		RelayKey: "test-relay-key",
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, bus
}

func TestStreamFansInMultipleChannels(t *testing.T) {
	ts, bus := newStreamServer(t)

	if _, err := bus.Publish(stream.Event{Channel: stream.ChannelBookings, Type: "booking_created"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := bus.Publish(stream.Event{Channel: stream.ChannelSocial, Type: "invite_sent"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/stream?channel=bookings,social", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test-relay-key")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream status = %d", resp.StatusCode)
	}

	// Both channels replay from history at connect time.
	seen := map[string]bool{}
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "booking_created") {
			seen["booking_created"] = true
		}
		if strings.Contains(line, "invite_sent") {
			seen["invite_sent"] = true
		}
		if len(seen) == 2 {
			break
		}
	}
	if !seen["booking_created"] || !seen["invite_sent"] {
		t.Fatalf("missing events from fan-in: %v (scan err %v)", seen, scanner.Err())
	}
}

func TestStreamRejectsUnknownChannelInList(t *testing.T) {
	ts, _ := newStreamServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/stream?channel=bookings,bogus", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test-relay-key")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown channel in list: %d, want 400", resp.StatusCode)
	}
}
