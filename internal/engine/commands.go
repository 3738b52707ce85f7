package engine

import (
	"fmt"

	"github.com/talgya/luna-sim/internal/actors"
	"github.com/talgya/luna-sim/internal/stream"
)

// CommandType names a control-plane operation.
type CommandType string

const (
	CmdStart          CommandType = "start"
	CmdPause          CommandType = "pause"
	CmdResume         CommandType = "resume"
	CmdStop           CommandType = "stop"
	CmdReset          CommandType = "reset"
	CmdSetSpeed       CommandType = "set_speed"
	CmdSetScenario    CommandType = "set_scenario"
	CmdSpawnUsers     CommandType = "spawn_users"
	CmdAdjustBehavior CommandType = "adjust_behavior"
	CmdTriggerEvent   CommandType = "trigger_event"
	CmdGetState       CommandType = "get_state"
)

// AdjustScopeGlobal applies a behavior adjustment to every actor;
// otherwise the scope names a persona.
const AdjustScopeGlobal = "global"

// Command is one control operation, staged on the orchestrator's queue and
// applied at a tick boundary so it can never race a tick in progress.
type Command struct {
	Type CommandType `json:"command"`

	Speed         float64            `json:"speed,omitempty"`
	Scenario      string             `json:"scenario,omitempty"`
	Count         int                `json:"count,omitempty"`
	Scope         string             `json:"scope,omitempty"`
	Probabilities map[string]float64 `json:"action_probabilities,omitempty"`
	Channel       string             `json:"channel,omitempty"`
	Payload       map[string]any     `json:"payload,omitempty"`

	reply chan CommandResult
}

// CommandResult is the synchronous answer to a command: validation outcome
// plus the post-application state summary.
type CommandResult struct {
	OK    bool         `json:"ok"`
	Error string       `json:"error,omitempty"`
	State StateSummary `json:"state"`

	err error
}

// Err returns the underlying validation error, nil on success.
func (r CommandResult) Err() error { return r.err }

// apply validates and executes one staged command. Validation failures
// leave orchestrator state untouched.
func (o *Orchestrator) apply(cmd Command) error {
	switch cmd.Type {
	case CmdStart:
		if cmd.Speed != 0 {
			if err := o.clock.SetSpeed(cmd.Speed); err != nil {
				return err
			}
		}
		if cmd.Scenario != "" {
			if !actors.KnownScenario(cmd.Scenario) {
				return fmt.Errorf("%w: %q", ErrUnknownScenario, cmd.Scenario)
			}
			o.scenario = actors.Scenario(cmd.Scenario)
		}
		if err := o.clock.Start(); err != nil {
			return err
		}
		o.publishControl("simulation_started", map[string]any{
			"speed":    o.clock.Speed,
			"scenario": string(o.scenario),
		})
		return nil

	case CmdPause:
		if err := o.clock.Pause(); err != nil {
			return err
		}
		o.publishControl("simulation_paused", nil)
		return nil

	case CmdResume:
		if err := o.clock.Resume(); err != nil {
			return err
		}
		o.publishControl("simulation_resumed", nil)
		return nil

	case CmdStop:
		o.clock.Stop()
		o.publishControl("simulation_stopped", map[string]any{"tick": o.tick})
		return nil

	case CmdReset:
		o.reset()
		o.publishControl("simulation_reset", nil)
		return nil

	case CmdSetSpeed:
		if err := o.clock.SetSpeed(cmd.Speed); err != nil {
			return err
		}
		o.publishControl("speed_changed", map[string]any{"speed": cmd.Speed})
		return nil

	case CmdSetScenario:
		if !actors.KnownScenario(cmd.Scenario) {
			return fmt.Errorf("%w: %q", ErrUnknownScenario, cmd.Scenario)
		}
		o.scenario = actors.Scenario(cmd.Scenario)
		o.publishControl("scenario_changed", map[string]any{"scenario": cmd.Scenario})
		return nil

	case CmdSpawnUsers:
		if cmd.Count < o.cfg.SpawnMin || cmd.Count > o.cfg.SpawnMax {
			return fmt.Errorf("%w: %d not in [%d, %d]",
				ErrSpawnOutOfRange, cmd.Count, o.cfg.SpawnMin, o.cfg.SpawnMax)
		}
		batch := o.spawner.SpawnBatch(cmd.Count, o.tick)
		o.spawner.Befriend(batch, o.cfg.AvgFriends)
		o.pool.QueueSpawn(batch)
		return nil

	case CmdAdjustBehavior:
		return o.applyAdjustment(cmd.Scope, cmd.Probabilities)

	case CmdTriggerEvent:
		if !stream.KnownChannel(cmd.Channel) {
			return fmt.Errorf("%w: %q", ErrUnknownChannel, cmd.Channel)
		}
		_, err := o.bus.Publish(stream.Event{
			Channel: stream.Channel(cmd.Channel),
			Type:    "external_trigger",
			Payload: cmd.Payload,
			SimTime: o.clock.SimTime,
		})
		return err

	case CmdGetState:
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}

// applyAdjustment installs per-action weight multipliers globally or for
// one persona. Unknown actions or scopes are rejected whole.
func (o *Orchestrator) applyAdjustment(scope string, probs map[string]float64) error {
	if scope == "" {
		scope = AdjustScopeGlobal
	}
	if scope != AdjustScopeGlobal && !actors.KnownPersona(scope) {
		return fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}

	mods := actors.NoModifiers()
	for name, factor := range probs {
		action, ok := actors.ParseAction(name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownAction, name)
		}
		if factor < 0 {
			return fmt.Errorf("adjustment for %q must be >= 0, got %v", name, factor)
		}
		mods[action] = factor
	}

	if scope == AdjustScopeGlobal {
		o.globalAdjust = mods
	} else {
		o.personaAdjust[actors.Persona(scope)] = mods
	}
	o.publishControl("behavior_adjusted", map[string]any{"scope": scope})
	return nil
}
