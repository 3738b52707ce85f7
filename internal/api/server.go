// Package api is the control plane: REST commands and queries over the
// running simulation, an SSE event stream, and a WebSocket carrying the
// command set as typed messages.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/luna-sim/internal/actors"
	"github.com/talgya/luna-sim/internal/analytics"
	"github.com/talgya/luna-sim/internal/engine"
	"github.com/talgya/luna-sim/internal/stream"
)

const maxSSEConns = 8

// Server exposes the orchestrator over HTTP.
type Server struct {
	Orch   *engine.Orchestrator
	Bus    *stream.Bus
	Source analytics.EventSource // nil disables the analytics endpoints
	Port   int

	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
	RelayKey string // Bearer token for the SSE stream. Empty = streaming disabled.

	RatePerSecond float64 // command endpoint refill rate per client IP; 0 = default
	RateBurst     int     // burst allowance per client IP; 0 derives from the rate

	sseConns int32
	hub      *wsHub
}

// Handler builds the full route table. Split out from Start so tests can
// drive it with httptest.
func (s *Server) Handler() http.Handler {
	if s.hub == nil {
		s.hub = newWSHub(s.Orch, s.Bus)
	}

	cmdLimiter := NewRateLimiter(s.RatePerSecond, s.RateBurst)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/scenarios", s.handleScenarios)
	mux.HandleFunc("/api/v1/channels", s.handleChannels)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/actors", s.handleActors)
	mux.HandleFunc("/api/v1/venues", s.handleVenues)
	mux.HandleFunc("/api/v1/decisions", s.handleDecisions)
	mux.HandleFunc("/api/v1/stream/metrics", s.handleStreamMetrics)

	// Analytics over persisted history.
	mux.HandleFunc("/api/v1/analytics/journey", s.handleJourney)
	mux.HandleFunc("/api/v1/analytics/funnel", s.handleFunnel)
	mux.HandleFunc("/api/v1/analytics/buckets", s.handleBuckets)
	mux.HandleFunc("/api/v1/analytics/replay", s.adminOnly(s.handleReplay))

	// Command surface (POST, bearer token).
	mux.HandleFunc("/api/v1/command", RateLimitMiddleware(cmdLimiter, s.adminOnly(s.handleCommand)))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshots", s.adminOnly(s.handleSnapshots))
	mux.HandleFunc("/api/v1/snapshots/restore", s.adminOnly(s.handleSnapshotRestore))

	// Live streams.
	mux.HandleFunc("/api/v1/stream", s.handleStream)
	mux.HandleFunc("/api/v1/ws", s.hub.handleUpgrade)

	return corsMiddleware(mux)
}

// Start begins serving in a goroutine and starts the WebSocket broadcast
// pump.
func (s *Server) Start() {
	handler := s.Handler()
	go s.hub.run()

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "relay_auth", s.RelayKey != "")

	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins. Set
// CORS_ORIGINS to a comma-separated list; localhost dev servers are always
// allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request carries the admin token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires bearer token auth on POST requests. GET passes
// through for endpoints serving both.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no LUNASIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sum := s.Orch.Summary()
	writeJSON(w, map[string]any{
		"name":           "Luna",
		"tick":           sum.Tick,
		"sim_time":       sum.SimTime,
		"run_state":      sum.RunState,
		"speed":          sum.Speed,
		"scenario":       sum.Scenario,
		"active_actors":  sum.ActiveActors,
		"total_actors":   sum.TotalActors,
		"pending_actors": sum.PendingActors,
		"venues":         sum.Venues,
		"weather":        sum.Weather,
		"metrics":        sum.Metrics,
	})
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"scenarios": actors.Scenarios(),
		"active":    s.Orch.Scenario(),
	})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"channels": stream.Channels})
}

func (s *Server) handleStreamMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Bus.Metrics())
}

// handleEvents returns retained history for one channel:
// GET /api/v1/events?channel=bookings&limit=50&after=120
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		http.Error(w, "channel parameter required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var (
		events []stream.Event
		err    error
	)
	if afterStr := r.URL.Query().Get("after"); afterStr != "" {
		after, parseErr := strconv.ParseUint(afterStr, 10, 64)
		if parseErr != nil {
			http.Error(w, "after must be a sequence number", http.StatusBadRequest)
			return
		}
		events, err = s.Bus.After(stream.Channel(channel), after, limit)
	} else {
		events, err = s.Bus.History(stream.Channel(channel), limit)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"channel": channel, "events": events, "count": len(events)})
}

func (s *Server) handleActors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"actors": s.Orch.Actors()})
}

func (s *Server) handleVenues(w http.ResponseWriter, r *http.Request) {
	state := s.Orch.DomainState()
	writeJSON(w, map[string]any{
		"venues":   state.Venues,
		"bookings": len(state.Bookings),
		"invites":  len(state.Invites),
	})
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	writeJSON(w, map[string]any{"decisions": s.Orch.DecisionLog(limit)})
}

// handleCommand accepts any control command as JSON and applies it at the
// next tick boundary.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var cmd engine.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "malformed command: "+err.Error(), http.StatusBadRequest)
		return
	}

	res := s.Orch.Do(cmd)
	if !res.OK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(res)
		return
	}
	writeJSON(w, res)
}

// handleSpeed is the convenience form of set_speed.
func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, map[string]any{"speed": s.Orch.Summary().Speed})
		return
	}

	var body struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	res := s.Orch.Do(engine.Command{Type: engine.CmdSetSpeed, Speed: body.Speed})
	if !res.OK {
		http.Error(w, res.Error, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, res)
}

// handleSnapshots lists on GET, creates on POST.
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.Orch.ListSnapshots()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"snapshots": list})

	case http.MethodPost:
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		id, err := s.Orch.CreateSnapshotAtBoundary(body.Name, body.Description)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"id": id, "name": body.Name})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSnapshotRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	if err := s.Orch.RestoreSnapshotAtBoundary(body.ID); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, map[string]any{"restored": body.ID, "state": s.Orch.Summary()})
}

func (s *Server) handleJourney(w http.ResponseWriter, r *http.Request) {
	if s.Source == nil {
		http.Error(w, "analytics disabled", http.StatusNotFound)
		return
	}
	actorID, err := strconv.ParseUint(r.URL.Query().Get("actor"), 10, 64)
	if err != nil {
		http.Error(w, "actor parameter required", http.StatusBadRequest)
		return
	}
	from, to, err := timeWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	journey, err := analytics.BuildJourney(s.Source, actors.ActorID(actorID), from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, journey)
}

func (s *Server) handleFunnel(w http.ResponseWriter, r *http.Request) {
	if s.Source == nil {
		http.Error(w, "analytics disabled", http.StatusNotFound)
		return
	}
	from, to, err := timeWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	funnel, err := analytics.BuildFunnel(s.Source, from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, funnel)
}

func (s *Server) handleBuckets(w http.ResponseWriter, r *http.Request) {
	if s.Source == nil {
		http.Error(w, "analytics disabled", http.StatusNotFound)
		return
	}
	from, to, err := timeWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	bucket := time.Hour
	if b := r.URL.Query().Get("bucket"); b != "" {
		if bucket, err = time.ParseDuration(b); err != nil {
			http.Error(w, "invalid bucket duration", http.StatusBadRequest)
			return
		}
	}

	buckets, err := analytics.Aggregate(s.Source, nil, from, to, bucket)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"buckets": buckets})
}

// handleReplay replays a history window back onto the bus. Paced replays
// run in the background; speed 0 runs inline.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	if s.Source == nil {
		http.Error(w, "analytics disabled", http.StatusNotFound)
		return
	}

	var body struct {
		Channels []string  `json:"channels"`
		From     time.Time `json:"from"`
		To       time.Time `json:"to"`
		Speed    float64   `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	channels := make([]stream.Channel, 0, len(body.Channels))
	for _, ch := range body.Channels {
		channels = append(channels, stream.Channel(ch))
	}

	replayer := analytics.NewReplayer(s.Source, s.Bus)
	if body.Speed > 0 {
		go func() {
			if _, err := replayer.Run(context.Background(), channels, body.From, body.To, body.Speed); err != nil {
				slog.Error("replay failed", "error", err)
			}
		}()
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]any{"started": true, "speed": body.Speed})
		return
	}

	sum, err := replayer.Run(r.Context(), channels, body.From, body.To, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, sum)
}

// streamChannels parses the channel query parameter: one channel, a comma
// list, or "all". Empty defaults to user actions.
func streamChannels(raw string) ([]stream.Channel, error) {
	if raw == "" {
		return []stream.Channel{stream.ChannelUserActions}, nil
	}
	if raw == "all" {
		channels := make([]stream.Channel, 0, len(stream.Channels))
		for _, c := range stream.Channels {
			channels = append(channels, c.Name)
		}
		return channels, nil
	}

	var channels []stream.Channel
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if !stream.KnownChannel(name) {
			return nil, fmt.Errorf("unknown channel %q", name)
		}
		channels = append(channels, stream.Channel(name))
	}
	return channels, nil
}

// handleStream serves a live SSE feed of one channel, a comma list, or all
// of them.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.RelayKey == "" {
		http.Error(w, "streaming disabled (no relay key)", http.StatusForbidden)
		return
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.RelayKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	channels, err := streamChannels(r.URL.Query().Get("channel"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxSSEConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Fan the subscriptions into one feed for the write loop.
	feed := make(chan stream.Event, 64)
	done := make(chan struct{})
	defer close(done)
	for _, ch := range channels {
		sub, err := s.Bus.Subscribe(ch)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer s.Bus.Unsubscribe(sub)
		go func(c <-chan stream.Event) {
			for {
				select {
				case ev, ok := <-c:
					if !ok {
						return
					}
					select {
					case feed <- ev:
					case <-done:
						return
					}
				case <-done:
					return
				}
			}
		}(sub.C)
	}

	// Catch-up with recent history first.
	for _, ch := range channels {
		if recent, err := s.Bus.History(ch, 50); err == nil {
			for _, ev := range recent {
				writeSSEEvent(w, ev)
			}
		}
	}
	flusher.Flush()

	slog.Info("SSE client connected", "channels", len(channels))

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case ev := <-feed:
			writeSSEEvent(w, ev)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "channels", len(channels))
			return
		}
	}
}

// timeWindow parses from/to query parameters, defaulting to the last
// simulated day.
func timeWindow(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from, to := now.Add(-24*time.Hour), now

	if f := r.URL.Query().Get("from"); f != "" {
		parsed, err := time.Parse(time.RFC3339, f)
		if err != nil {
			return from, to, fmt.Errorf("from: %w", err)
		}
		from = parsed
	}
	if t := r.URL.Query().Get("to"); t != "" {
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return from, to, fmt.Errorf("to: %w", err)
		}
		to = parsed
	}
	return from, to, nil
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, ev stream.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
