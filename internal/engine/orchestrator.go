package engine

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/talgya/luna-sim/internal/actors"
	"github.com/talgya/luna-sim/internal/domain"
	"github.com/talgya/luna-sim/internal/environment"
	"github.com/talgya/luna-sim/internal/stream"
	"github.com/talgya/luna-sim/internal/temporal"
)

// Config holds orchestrator tuning.
type Config struct {
	Seed           int64
	TickInterval   time.Duration
	SimStart       time.Time
	InitialActors  int
	ActiveFraction float64

	// ActChance scales per-actor participation: an actor acts on a tick
	// with probability ActChance x ActivityScore.
	ActChance float64

	// CancelChance is the hourly probability that a confirmed upcoming
	// booking gets called off by its actor.
	CancelChance float64

	AvgFriends      int
	SpawnMin        int
	SpawnMax        int
	DecisionLogSize int
}

// DefaultConfig returns sensible defaults for a small simulation.
func DefaultConfig() Config {
	return Config{
		Seed:            42,
		TickInterval:    time.Second,
		SimStart:        time.Now().UTC(),
		InitialActors:   50,
		ActiveFraction:  0.6,
		ActChance:       0.4,
		CancelChance:    0.05,
		AvgFriends:      3,
		SpawnMin:        1,
		SpawnMax:        100,
		DecisionLogSize: 512,
	}
}

// StateSummary is the read-side view of the simulation, refreshed after
// every tick.
type StateSummary struct {
	Tick          uint64    `json:"tick"`
	SimTime       time.Time `json:"sim_time"`
	RunState      RunState  `json:"run_state"`
	Speed         float64   `json:"speed"`
	Scenario      string    `json:"scenario"`
	ActiveActors  int       `json:"active_actors"`
	TotalActors   int       `json:"total_actors"`
	PendingActors int       `json:"pending_actors"`
	Venues        int       `json:"venues"`
	Weather       string    `json:"weather"`
	Metrics       Metrics   `json:"metrics"`
}

// Orchestrator owns the tick loop and all simulation state. It is the
// only writer; everything external goes through the command queue or
// reads the published summary.
type Orchestrator struct {
	cfg       Config
	clock     *Clock
	pool      *Pool
	store     *domain.Store
	bus       *stream.Bus
	env       *environment.Provider
	spawner   *actors.Spawner
	snapshots SnapshotStore
	rng       *rand.Rand
	log       *decisionLog

	tick      uint64
	scenario  actors.Scenario
	metrics   Metrics
	venueMods temporal.VenueMods // supply squeeze for the current tick

	globalAdjust  actors.Modifiers
	personaAdjust map[actors.Persona]actors.Modifiers

	lastHour time.Time
	lastDay  time.Time

	queueMu sync.Mutex
	queue   []Command
	fns     []boundaryFn

	stateMu sync.RWMutex
	summary StateSummary

	quit chan struct{}
	done chan struct{}
}

// New builds an orchestrator with a seeded venue roster and initial actor
// population. snapshots may be nil when snapshot persistence is off.
func New(cfg Config, bus *stream.Bus, store *domain.Store, env *environment.Provider, snapshots SnapshotStore) *Orchestrator {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.SimStart.IsZero() {
		cfg.SimStart = time.Now().UTC()
	}

	o := &Orchestrator{
		cfg:           cfg,
		clock:         NewClock(cfg.SimStart),
		pool:          NewPool(cfg.ActiveFraction),
		store:         store,
		bus:           bus,
		env:           env,
		spawner:       actors.NewSpawner(cfg.Seed),
		snapshots:     snapshots,
		rng:           rand.New(rand.NewSource(cfg.Seed)),
		log:           newDecisionLog(cfg.DecisionLogSize),
		scenario:      actors.ScenarioNormal,
		metrics:       newMetrics(),
		venueMods:     temporal.VenueMods{Availability: 1, WaitTime: 1, Price: 1},
		globalAdjust:  actors.NoModifiers(),
		personaAdjust: make(map[actors.Persona]actors.Modifiers),
		lastHour:      cfg.SimStart.Truncate(time.Hour),
		lastDay:       cfg.SimStart.Truncate(24 * time.Hour),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}

	if len(store.Venues()) == 0 {
		store.SeedDefaults()
	}

	batch := o.spawner.SpawnBatch(cfg.InitialActors, 0)
	o.spawner.Befriend(batch, cfg.AvgFriends)
	o.pool.Seed(batch)

	o.refreshSummary()
	return o
}

// Enqueue stages a command for the next tick boundary and returns the
// channel its result will arrive on.
func (o *Orchestrator) Enqueue(cmd Command) <-chan CommandResult {
	cmd.reply = make(chan CommandResult, 1)
	o.queueMu.Lock()
	o.queue = append(o.queue, cmd)
	o.queueMu.Unlock()
	return cmd.reply
}

// Do stages a command and blocks for its result.
func (o *Orchestrator) Do(cmd Command) CommandResult {
	return <-o.Enqueue(cmd)
}

type boundaryFn struct {
	fn   func() error
	done chan error
}

// AtBoundary runs fn at the next tick boundary, serialized with staged
// commands, and blocks for its result. Used for snapshot operations so
// they can never observe a tick in progress.
func (o *Orchestrator) AtBoundary(fn func() error) error {
	b := boundaryFn{fn: fn, done: make(chan error, 1)}
	o.queueMu.Lock()
	o.fns = append(o.fns, b)
	o.queueMu.Unlock()
	return <-b.done
}

// Run drives the tick loop at the configured wall interval until Shutdown.
func (o *Orchestrator) Run() {
	defer close(o.done)
	slog.Info("orchestrator started",
		"actors", o.pool.Len(), "active", o.pool.ActiveLen(),
		"interval", o.cfg.TickInterval)

	last := time.Now()
	for {
		select {
		case <-o.quit:
			slog.Info("orchestrator stopped", "tick", o.tick)
			return
		default:
		}

		start := time.Now()
		o.Step(start.Sub(last))
		last = start

		if elapsed := time.Since(start); elapsed < o.cfg.TickInterval {
			time.Sleep(o.cfg.TickInterval - elapsed)
		}
	}
}

// Shutdown ends the Run loop and waits for it to exit.
func (o *Orchestrator) Shutdown() {
	close(o.quit)
	<-o.done
}

// Step advances the simulation by one tick given the elapsed wall time.
// Exported so tests can drive the loop deterministically.
func (o *Orchestrator) Step(wall time.Duration) {
	o.drainCommands()

	if o.clock.State != StateRunning {
		o.refreshSummary()
		return
	}

	o.tick++
	o.metrics.TicksProcessed++
	o.clock.Advance(wall)
	now := o.clock.SimTime

	if admitted := o.pool.AdmitPending(); admitted > 0 {
		o.emit(stream.Event{
			Channel: stream.ChannelControl,
			Type:    "actors_spawned",
			Payload: map[string]any{"count": admitted, "pool_size": o.pool.ActiveLen()},
		})
	}
	o.pool.MaintainFraction(o.rng)

	tctx := temporal.ContextAt(now)
	cond := o.env.ConditionsAt(now)
	tmods := temporal.Mods(tctx)
	emods := environment.Mods(cond)
	o.venueMods = temporal.VenueModsFor(tctx)

	for _, a := range o.pool.Active() {
		if o.rng.Float64() >= o.cfg.ActChance*a.ActivityScore {
			continue
		}
		o.metrics.ActorsProcessed++

		mods := []actors.Modifiers{tmods, emods, o.globalAdjust}
		if pa, ok := o.personaAdjust[a.Persona]; ok {
			mods = append(mods, pa)
		}
		action := actors.Decide(a, o.scenario, o.rng, mods...)

		if err := o.execute(a, action); err != nil {
			// One actor's failure never aborts the tick for the rest.
			o.metrics.ActorFailures++
			o.log.add(DecisionEntry{
				Tick:    o.tick,
				SimTime: now,
				ActorID: a.ID,
				Action:  action.String(),
				Reason:  err.Error(),
			})
			slog.Warn("actor action failed",
				"actor", a.ID, "action", action.String(), "err", err)
		}
	}

	if hour := now.Truncate(time.Hour); !hour.Equal(o.lastHour) {
		o.lastHour = hour
		o.hourly(now, cond)
	}
	if day := now.Truncate(24 * time.Hour); !day.Equal(o.lastDay) {
		o.lastDay = day
		o.daily(now, tctx)
	}

	o.refreshSummary()
}

// hourly runs the sim-hour cadence: stale booking completion and
// environmental updates.
func (o *Orchestrator) hourly(now time.Time, cond environment.Conditions) {
	for _, b := range o.store.CompleteStale(now) {
		o.emit(stream.Event{
			Channel:   stream.ChannelBookings,
			Type:      "booking_completed",
			ActorID:   b.ActorID,
			VenueID:   b.VenueID,
			BookingID: b.ID,
			Payload:   map[string]any{"party_size": b.PartySize},
		})
	}

	// Plans fall through: each confirmed upcoming booking has a small
	// chance per hour of being called off, souring the actor on the venue.
	if o.cfg.CancelChance > 0 {
		for _, b := range o.store.UpcomingBookings(now) {
			if o.rng.Float64() >= o.cfg.CancelChance {
				continue
			}
			cancelled, err := o.store.CancelBooking(b.ID)
			if err != nil {
				continue
			}
			o.metrics.BookingsCancelled++
			if actor, ok := o.pool.Get(cancelled.ActorID); ok {
				if venue, err := o.store.Venue(cancelled.VenueID); err == nil {
					actionNudge(actor, venue, RateCancel)
				}
			}
			o.emit(stream.Event{
				Channel:   stream.ChannelBookings,
				Type:      "booking_cancelled",
				ActorID:   cancelled.ActorID,
				VenueID:   cancelled.VenueID,
				BookingID: cancelled.ID,
				Payload: map[string]any{
					"party_size": cancelled.PartySize,
					"reason":     "plans_changed",
				},
			})
		}
	}

	o.emit(stream.Event{
		Channel: stream.ChannelEnvironmental,
		Type:    "conditions_update",
		Payload: map[string]any{
			"condition":   cond.Weather.Condition,
			"temperature": cond.Weather.Temperature,
			"traffic":     cond.Traffic.Level,
		},
	})
	for _, ev := range cond.Events {
		o.emit(stream.Event{
			Channel: stream.ChannelEnvironmental,
			Type:    "special_event_active",
			Payload: map[string]any{
				"event_type": ev.EventType,
				"name":       ev.Name,
				"attendance": ev.Attendance,
			},
		})
	}

	o.emit(stream.Event{
		Channel: stream.ChannelSystemMetrics,
		Type:    "metrics_snapshot",
		Payload: map[string]any{
			"ticks":            o.metrics.TicksProcessed,
			"events_generated": o.metrics.EventsGenerated,
			"actions_executed": o.metrics.ActionsExecuted,
			"bookings_created": o.metrics.BookingsCreated,
			"active_actors":    o.pool.ActiveLen(),
		},
	})
}

// daily runs the sim-day cadence: trending recalculation, venue activity
// decay, and the periodic preference passes.
func (o *Orchestrator) daily(now time.Time, tctx temporal.Context) {
	if changed := o.store.RecalcTrending(); len(changed) > 0 {
		names := make([]string, 0, len(changed))
		for _, v := range changed {
			names = append(names, v.Name)
		}
		o.emit(stream.Event{
			Channel: stream.ChannelRecommend,
			Type:    "trending_changed",
			Payload: map[string]any{"venues": names},
		})
	}
	o.store.DecayActivity()

	for _, a := range o.pool.Active() {
		socialInfluence(a, o.pool.Get)
		seasonalDrift(a, tctx.Season)
	}

	// Spawns join the active set directly, so the pool can sit above the
	// fraction target; the least engaged actors rest at the day boundary.
	target := int(float64(o.pool.Len()) * o.cfg.ActiveFraction)
	if excess := o.pool.ActiveLen() - target; excess > 0 {
		if rested := o.pool.RetireLaziest(excess); rested > 0 {
			o.emit(stream.Event{
				Channel: stream.ChannelControl,
				Type:    "actors_rested",
				Payload: map[string]any{"count": rested, "pool_size": o.pool.ActiveLen()},
			})
		}
	}

	o.emit(stream.Event{
		Channel: stream.ChannelSystemMetrics,
		Type:    "daily_summary",
		Payload: map[string]any{
			"sim_date":           now.Format("2006-01-02"),
			"bookings_confirmed": o.metrics.BookingsConfirmed,
			"bookings_cancelled": o.metrics.BookingsCancelled,
			"invites_sent":       o.metrics.InvitesSent,
			"invites_accepted":   o.metrics.InvitesAccepted,
		},
	})
}

// drainCommands applies every staged command in arrival order.
func (o *Orchestrator) drainCommands() {
	o.queueMu.Lock()
	staged := o.queue
	fns := o.fns
	o.queue = nil
	o.fns = nil
	o.queueMu.Unlock()

	for _, b := range fns {
		b.done <- b.fn()
	}

	for _, cmd := range staged {
		err := o.apply(cmd)
		o.refreshSummary()
		if cmd.reply != nil {
			res := CommandResult{OK: err == nil, State: o.Summary(), err: err}
			if err != nil {
				res.Error = err.Error()
			}
			cmd.reply <- res
		}
		if err != nil {
			slog.Warn("command rejected", "command", cmd.Type, "err", err)
		}
	}
}

// reset clears all orchestrator-owned state back to a fresh stopped world
// with the same seed and configuration.
func (o *Orchestrator) reset() {
	o.clock = NewClock(o.cfg.SimStart)
	o.tick = 0
	o.scenario = actors.ScenarioNormal
	o.metrics = newMetrics()
	o.log = newDecisionLog(o.cfg.DecisionLogSize)
	o.rng = rand.New(rand.NewSource(o.cfg.Seed))
	o.globalAdjust = actors.NoModifiers()
	o.personaAdjust = make(map[actors.Persona]actors.Modifiers)
	o.venueMods = temporal.VenueMods{Availability: 1, WaitTime: 1, Price: 1}
	o.lastHour = o.cfg.SimStart.Truncate(time.Hour)
	o.lastDay = o.cfg.SimStart.Truncate(24 * time.Hour)

	o.store.Import(domain.State{})
	o.store.SeedDefaults()

	o.pool = NewPool(o.cfg.ActiveFraction)
	o.spawner = actors.NewSpawner(o.cfg.Seed)
	batch := o.spawner.SpawnBatch(o.cfg.InitialActors, 0)
	o.spawner.Befriend(batch, o.cfg.AvgFriends)
	o.pool.Seed(batch)

	if err := o.bus.Clear(); err != nil {
		slog.Error("clear stream history", "err", err)
	}
}

// emit publishes one event stamped with the current simulated time.
func (o *Orchestrator) emit(ev stream.Event) {
	ev.SimTime = o.clock.SimTime
	if _, err := o.bus.Publish(ev); err != nil {
		slog.Error("publish event", "channel", ev.Channel, "type", ev.Type, "err", err)
		return
	}
	o.metrics.EventsGenerated++
}

func (o *Orchestrator) publishControl(eventType string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["tick"] = o.tick
	o.emit(stream.Event{
		Channel: stream.ChannelControl,
		Type:    eventType,
		Payload: payload,
	})
}

// refreshSummary publishes the read-side state view.
func (o *Orchestrator) refreshSummary() {
	weather := ""
	if o.env != nil {
		weather = o.env.WeatherAt(o.clock.SimTime).Condition
	}
	s := StateSummary{
		Tick:          o.tick,
		SimTime:       o.clock.SimTime,
		RunState:      o.clock.State,
		Speed:         o.clock.Speed,
		Scenario:      string(o.scenario),
		ActiveActors:  o.pool.ActiveLen(),
		TotalActors:   o.pool.Len(),
		PendingActors: o.pool.PendingLen(),
		Venues:        len(o.store.Venues()),
		Weather:       weather,
		Metrics:       o.metrics.clone(),
	}

	o.stateMu.Lock()
	o.summary = s
	o.stateMu.Unlock()
}

// Summary returns the latest post-tick state view.
func (o *Orchestrator) Summary() StateSummary {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.summary
}

// DecisionLog returns up to n recent decision-log entries, oldest first.
func (o *Orchestrator) DecisionLog(n int) []DecisionEntry {
	return o.log.recent(n)
}

// Actors returns copies of every actor in the universe, captured at a
// tick boundary. Requires the Run loop (or a test driving Step).
func (o *Orchestrator) Actors() []actors.Actor {
	var out []actors.Actor
	_ = o.AtBoundary(func() error {
		for _, a := range o.pool.All() {
			out = append(out, *a)
		}
		return nil
	})
	return out
}

// DomainState exports the venue/booking/invite state, captured at a tick
// boundary.
func (o *Orchestrator) DomainState() domain.State {
	var st domain.State
	_ = o.AtBoundary(func() error {
		st = o.store.Export()
		return nil
	})
	return st
}

// Scenario returns the active scenario name.
func (o *Orchestrator) Scenario() string {
	return o.Summary().Scenario
}
