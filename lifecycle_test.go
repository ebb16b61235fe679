package swcache

import (
	"errors"
	"reflect"
	"testing"
)

func kinds(effects []Effect) []EffectKind {
	out := make([]EffectKind, 0, len(effects))
	for _, e := range effects {
		out = append(out, e.Kind)
	}
	return out
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		ev      Event
		to      State
		effects []EffectKind
		invalid bool
	}{
		{"install", StateIdle, Event{Kind: EventInstall}, StateInstalled,
			[]EffectKind{EffectOpenStore, EffectPrecache, EffectSkipWaiting}, false},
		{"install twice", StateInstalled, Event{Kind: EventInstall}, StateInstalled, nil, true},
		{"install when redundant", StateRedundant, Event{Kind: EventInstall}, StateRedundant, nil, true},
		{"activate", StateInstalled, Event{Kind: EventActivate}, StateActive,
			[]EffectKind{EffectPruneVersions, EffectPromoteStore, EffectClaimClients}, false},
		{"activate before install", StateIdle, Event{Kind: EventActivate}, StateIdle, nil, true},
		{"activate twice", StateActive, Event{Kind: EventActivate}, StateActive, nil, true},
		{"sync active", StateActive, Event{Kind: EventSync, Tag: "outbox"}, StateActive,
			[]EffectKind{EffectRunSync}, false},
		{"sync installed", StateInstalled, Event{Kind: EventSync, Tag: "outbox"}, StateInstalled, nil, false},
		{"push active", StateActive, Event{Kind: EventPush}, StateActive,
			[]EffectKind{EffectShowNotification}, false},
		{"push idle", StateIdle, Event{Kind: EventPush}, StateIdle, nil, false},
		{"click active", StateActive, Event{Kind: EventNotificationClick}, StateActive,
			[]EffectKind{EffectCloseNotification, EffectOpenWindow}, false},
		{"click redundant", StateRedundant, Event{Kind: EventNotificationClick}, StateRedundant, nil, false},
		{"unknown event", StateActive, Event{Kind: EventKind(99)}, StateActive, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to, effects, err := Transition(tt.from, tt.ev)
			if tt.invalid != errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("err = %v, invalid=%v", err, tt.invalid)
			}
			if to != tt.to {
				t.Fatalf("state = %s, want %s", to, tt.to)
			}
			if got := kinds(effects); len(got) != len(tt.effects) || (len(got) > 0 && !reflect.DeepEqual(got, tt.effects)) {
				t.Fatalf("effects = %v, want %v", got, tt.effects)
			}
		})
	}
}

func TestTransitionCarriesEventData(t *testing.T) {
	_, effects, _ := Transition(StateActive, Event{Kind: EventSync, Tag: "outbox"})
	if effects[0].Tag != "outbox" {
		t.Fatalf("sync effect lost its tag: %+v", effects[0])
	}
	_, effects, _ = Transition(StateActive, Event{Kind: EventPush, Payload: []byte("hi")})
	if string(effects[0].Payload) != "hi" {
		t.Fatalf("push effect lost its payload: %+v", effects[0])
	}
}

func TestStateStrings(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle:       "idle",
		StateInstalling: "installing",
		StateActivating: "activating",
		StateActive:     "active",
		State(42):       "state(42)",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int32(s), s.String(), want)
		}
	}
}
