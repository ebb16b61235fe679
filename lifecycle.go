package swcache

import "fmt"

// State of the agent lifecycle.
type State int32

const (
	StateIdle State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActive
	// StateRedundant: install failed; the agent only passes requests through.
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type EventKind int

const (
	EventInstall EventKind = iota
	EventActivate
	// EventSync is the connectivity-restored signal for one queued tag.
	EventSync
	EventPush
	EventNotificationClick
)

func (k EventKind) String() string {
	switch k {
	case EventInstall:
		return "install"
	case EventActivate:
		return "activate"
	case EventSync:
		return "sync"
	case EventPush:
		return "push"
	case EventNotificationClick:
		return "notification_click"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a host-to-agent lifecycle event.
type Event struct {
	Kind    EventKind
	Tag     string // EventSync
	Payload []byte // EventPush
}

type EffectKind int

const (
	EffectOpenStore EffectKind = iota
	EffectPrecache
	EffectSkipWaiting
	EffectPruneVersions
	EffectPromoteStore
	EffectClaimClients
	EffectRunSync
	EffectShowNotification
	EffectCloseNotification
	EffectOpenWindow
)

// Effect is work the controller performs after a transition, in order.
type Effect struct {
	Kind    EffectKind
	Tag     string
	Payload []byte
}

type transitionFunc func(State, Event) (State, []Effect, error)

// transitions is the dispatch table. Every entry is a pure function.
var transitions = map[EventKind]transitionFunc{
	EventInstall: func(s State, ev Event) (State, []Effect, error) {
		if s != StateIdle {
			return s, nil, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev.Kind, s)
		}
		return StateInstalled, []Effect{
			{Kind: EffectOpenStore},
			{Kind: EffectPrecache},
			{Kind: EffectSkipWaiting},
		}, nil
	},
	EventActivate: func(s State, ev Event) (State, []Effect, error) {
		if s != StateInstalled {
			return s, nil, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev.Kind, s)
		}
		return StateActive, []Effect{
			{Kind: EffectPruneVersions},
			{Kind: EffectPromoteStore},
			{Kind: EffectClaimClients},
		}, nil
	},
	EventSync: activeOnly(func(ev Event) []Effect {
		return []Effect{{Kind: EffectRunSync, Tag: ev.Tag}}
	}),
	EventPush: activeOnly(func(ev Event) []Effect {
		return []Effect{{Kind: EffectShowNotification, Payload: ev.Payload}}
	}),
	EventNotificationClick: activeOnly(func(Event) []Effect {
		return []Effect{{Kind: EffectCloseNotification}, {Kind: EffectOpenWindow}}
	}),
}

// activeOnly accepts deferred-work events while Active and ignores them otherwise.
func activeOnly(effects func(Event) []Effect) transitionFunc {
	return func(s State, ev Event) (State, []Effect, error) {
		if s != StateActive {
			return s, nil, nil
		}
		return s, effects(ev), nil
	}
}

// Transition computes the next state and the effects to run for ev.
func Transition(s State, ev Event) (State, []Effect, error) {
	fn, ok := transitions[ev.Kind]
	if !ok {
		return s, nil, fmt.Errorf("%w: unknown event %s", ErrInvalidTransition, ev.Kind)
	}
	return fn(s, ev)
}

// interim is the state exposed while the effects of ev run.
func interim(ev EventKind) (State, bool) {
	switch ev {
	case EventInstall:
		return StateInstalling, true
	case EventActivate:
		return StateActivating, true
	default:
		return 0, false
	}
}
