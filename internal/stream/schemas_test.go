package stream_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/luna-sim/internal/domain"
	"github.com/talgya/luna-sim/internal/engine"
	"github.com/talgya/luna-sim/internal/environment"
	"github.com/talgya/luna-sim/internal/stream"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func validateDoc(t *testing.T, s *jsonschema.Schema, doc []byte) {
	t.Helper()
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

// TestEventSchemaMatchesPublishedEvents checks the schema against events
// the bus actually produces, not hand-written samples.
func TestEventSchemaMatchesPublishedEvents(t *testing.T) {
	schema := compileSchema(t, "event.schema.json")
	bus := stream.NewBus(stream.NewMemoryBackend(0))

	published := []stream.Event{
		{
			Channel: stream.ChannelUserActions,
			Type:    "venue_browsed",
			ActorID: 3,
			VenueID: 7,
			Payload: map[string]any{"venue_name": "Luna Rossa", "affinity": 0.82},
			SimTime: time.Date(2026, 6, 3, 12, 30, 0, 0, time.UTC),
		},
		{
			Channel:   stream.ChannelBookings,
			Type:      "booking_created",
			ActorID:   3,
			VenueID:   7,
			BookingID: 1,
			Payload:   map[string]any{"party_size": 2, "confirmation_code": "LUNA-000001"},
			SimTime:   time.Date(2026, 6, 3, 19, 0, 0, 0, time.UTC),
		},
		{
			Channel: stream.ChannelControl,
			Type:    "simulation_started",
			SimTime: time.Date(2026, 6, 3, 12, 0, 0, 0, time.UTC),
		},
	}
	for _, ev := range published {
		if _, err := bus.Publish(ev); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	for _, ch := range []stream.Channel{stream.ChannelUserActions, stream.ChannelBookings, stream.ChannelControl} {
		events, err := bus.History(ch, 10)
		if err != nil {
			t.Fatalf("history %s: %v", ch, err)
		}
		for _, ev := range events {
			doc, err := json.Marshal(ev)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			validateDoc(t, schema, doc)
		}
	}
}

func TestCommandSchemaValidatesSamples(t *testing.T) {
	schema := compileSchema(t, "command.schema.json")

	valid := []string{
		`{"command":"start","speed":10,"scenario":"friday_night"}`,
		`{"command":"pause"}`,
		`{"command":"set_speed","speed":0.5}`,
		`{"command":"spawn_users","count":25}`,
		`{"command":"adjust_behavior","scope":"social_butterfly","action_probabilities":{"send_invite":2.0,"browse":0.5}}`,
		`{"command":"trigger_event","channel":"environmental","payload":{"condition":"rainy"}}`,
		`{"command":"get_state","request_id":"req-17"}`,
	}
	for _, doc := range valid {
		validateDoc(t, schema, []byte(doc))
	}

	invalid := []string{
		`{}`,
		`{"command":"warp"}`,
		`{"command":"set_speed","speed":0}`,
		`{"command":"set_scenario","scenario":"mystery"}`,
		`{"command":"spawn_users","count":0}`,
		`{"command":"adjust_behavior","action_probabilities":{"teleport":1.0}}`,
	}
	for _, doc := range invalid {
		var v any
		if err := json.Unmarshal([]byte(doc), &v); err != nil {
			t.Fatalf("unmarshal sample: %v", err)
		}
		if err := schema.Validate(v); err == nil {
			t.Errorf("expected %s to fail validation", doc)
		}
	}
}

// TestSnapshotSchemaMatchesEngineOutput validates a snapshot produced by a
// real orchestrator.
func TestSnapshotSchemaMatchesEngineOutput(t *testing.T) {
	schema := compileSchema(t, "snapshot.schema.json")

	cfg := engine.DefaultConfig()
	cfg.InitialActors = 10
	cfg.SimStart = time.Date(2026, 6, 3, 12, 0, 0, 0, time.UTC)
	bus := stream.NewBus(stream.NewMemoryBackend(0))
	orch := engine.New(cfg, bus, domain.NewStore(), environment.NewProvider(cfg.Seed), nil)

	doc, err := orch.SnapshotState()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	validateDoc(t, schema, doc)
}
