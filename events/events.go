// Package events defines the typed events pushed over the streaming
// channel that keeps client caches consistent with server-authoritative
// flag state. Every event is self-describing (it carries its own type
// tag) and idempotent to re-apply, so clients can safely process
// duplicates after reconnects.
package events

import (
	"encoding/json"
	"fmt"
)

// Type tags an event on the wire.
type Type string

const (
	TypeInit                  Type = "init"
	TypeFlagUpdated           Type = "flag_updated"
	TypeFlagArchived          Type = "flag_archived"
	TypeFlagRestored          Type = "flag_restored"
	TypeKillSwitchActivated   Type = "kill_switch_activated"
	TypeKillSwitchDeactivated Type = "kill_switch_deactivated"
	TypeHeartbeat             Type = "heartbeat"
)

// Event is implemented by every streamed event type.
type Event interface {
	EventType() Type
}

// FlagSnapshot is the cache-seeding view of one flag: just enough state
// for a client to answer from its cache while offline.
type FlagSnapshot struct {
	Key            string `json:"key"`
	ID             string `json:"id"`
	Environment    string `json:"environment"`
	Enabled        bool   `json:"enabled"`
	DefaultVariant string `json:"default_variant"`
	DefaultValue   any    `json:"default_value"`
	Archived       bool   `json:"archived"`
}

// KillSwitchSnapshot is the client view of an active kill switch.
type KillSwitchSnapshot struct {
	Key            string   `json:"key"`
	LinkedFlagKeys []string `json:"linked_flag_keys"`
	Reason         string   `json:"reason,omitempty"`
}

// Init fully replaces a client's cache contents. Sent once per
// streaming connection, before any incremental event.
type Init struct {
	ETag         string               `json:"etag,omitempty"`
	Flags        []FlagSnapshot       `json:"flags"`
	KillSwitches []KillSwitchSnapshot `json:"kill_switches"`
}

func (Init) EventType() Type { return TypeInit }

// FlagUpdated signals that a flag's environment state changed.
type FlagUpdated struct {
	FlagKey        string `json:"flag_key"`
	Environment    string `json:"environment"`
	Enabled        bool   `json:"enabled"`
	DefaultVariant string `json:"default_variant"`
	Value          any    `json:"value"`
}

func (FlagUpdated) EventType() Type { return TypeFlagUpdated }

// FlagArchived signals that a flag was archived.
type FlagArchived struct {
	FlagKey string `json:"flag_key"`
}

func (FlagArchived) EventType() Type { return TypeFlagArchived }

// FlagRestored signals that an archived flag was restored.
type FlagRestored struct {
	FlagKey     string `json:"flag_key"`
	Environment string `json:"environment"`
	Enabled     bool   `json:"enabled"`
}

func (FlagRestored) EventType() Type { return TypeFlagRestored }

// KillSwitchActivated signals an operator activated a kill switch.
type KillSwitchActivated struct {
	Key            string   `json:"key"`
	LinkedFlagKeys []string `json:"linked_flag_keys"`
	Reason         string   `json:"reason,omitempty"`
}

func (KillSwitchActivated) EventType() Type { return TypeKillSwitchActivated }

// KillSwitchDeactivated signals an operator deactivated a kill switch.
type KillSwitchDeactivated struct {
	Key            string   `json:"key"`
	LinkedFlagKeys []string `json:"linked_flag_keys"`
}

func (KillSwitchDeactivated) EventType() Type { return TypeKillSwitchDeactivated }

// Heartbeat is a keepalive; it carries no payload and resets the
// client's inactivity timer.
type Heartbeat struct{}

func (Heartbeat) EventType() Type { return TypeHeartbeat }

type envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Marshal encodes an event into its wire envelope.
func Marshal(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", e.EventType(), err)
	}
	return json.Marshal(envelope{Type: e.EventType(), Data: data})
}

// Unmarshal decodes a wire envelope into its concrete event type.
// Unknown type tags are an error; clients should log and skip them.
func Unmarshal(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	switch env.Type {
	case TypeInit:
		return decode[Init](env)
	case TypeFlagUpdated:
		return decode[FlagUpdated](env)
	case TypeFlagArchived:
		return decode[FlagArchived](env)
	case TypeFlagRestored:
		return decode[FlagRestored](env)
	case TypeKillSwitchActivated:
		return decode[KillSwitchActivated](env)
	case TypeKillSwitchDeactivated:
		return decode[KillSwitchDeactivated](env)
	case TypeHeartbeat:
		return Heartbeat{}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

func decode[E Event](env envelope) (Event, error) {
	var e E
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", env.Type, err)
		}
	}
	return e, nil
}
