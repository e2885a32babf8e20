package sim

import "github.com/san-kum/boxsim/internal/engine"

type Action uint8

const (
	ActionQuit Action = iota + 1
	ActionSpawn
	ActionToggleGravity
)

func (a Action) String() string {
	switch a {
	case ActionQuit:
		return "quit"
	case ActionSpawn:
		return "spawn"
	case ActionToggleGravity:
		return "toggle gravity"
	default:
		return "unknown"
	}
}

// ActionFor maps a surface event to an action. Events without one are
// dropped.
func ActionFor(ev engine.Event) (Action, bool) {
	switch ev.Kind {
	case engine.EventQuit:
		return ActionQuit, true
	case engine.EventKeyDown:
		switch ev.Key {
		case engine.KeySpace:
			return ActionSpawn, true
		case engine.KeyG:
			return ActionToggleGravity, true
		}
	}
	return 0, false
}
