// Package sdk holds the public anti-cheat event types consumed by subscribers
// of the gateway's event bridge.
package sdk

import "fmt"

// EnvelopeVersion is bumped whenever the wire shape of Envelope changes.
const EnvelopeVersion = 1

// Event is either a ServiceStateEvent or a ForegroundChangeEvent.
type Event interface {
	// EventTime is the event timestamp in milliseconds since the epoch.
	EventTime() int64
	isEvent()
}

// ServiceState is the lifecycle phase of the foreground observer.
type ServiceState string

const (
	StateConnected    ServiceState = "connected"
	StateInterrupted  ServiceState = "interrupted"
	StateDisconnected ServiceState = "disconnected"
)

// EventKind names the OS notification a foreground change came from. Kinds
// the gateway does not know travel as the decimal form of the raw constant.
type EventKind string

const (
	KindWindowStateChanged   EventKind = "window_state_changed"
	KindWindowsChanged       EventKind = "windows_changed"
	KindWindowContentChanged EventKind = "window_content_changed"
)

// Known reports whether k is one of the closed set of kinds.
func (k EventKind) Known() bool {
	switch k {
	case KindWindowStateChanged, KindWindowsChanged, KindWindowContentChanged:
		return true
	}
	return false
}

type ServiceStateEvent struct {
	State     ServiceState
	Timestamp int64
}

func (e ServiceStateEvent) EventTime() int64 { return e.Timestamp }
func (ServiceStateEvent) isEvent()           {}

type ForegroundChangeEvent struct {
	EventKind   EventKind
	PackageName string
	ClassName   string
	Timestamp   int64
}

func (e ForegroundChangeEvent) EventTime() int64 { return e.Timestamp }
func (ForegroundChangeEvent) isEvent()           {}

// Envelope types.
const (
	TypeServiceState     = "service_state"
	TypeForegroundChange = "foreground_change"
)

// Envelope is the JSON shape subscribers see on the wire.
type Envelope struct {
	Version     int          `json:"version"`
	Type        string       `json:"type"`
	State       ServiceState `json:"state,omitempty"`
	EventKind   EventKind    `json:"eventKind,omitempty"`
	PackageName string       `json:"packageName,omitempty"`
	ClassName   string       `json:"className,omitempty"`
	Timestamp   int64        `json:"timestamp"`
}

// Wrap builds the wire envelope for ev.
func Wrap(ev Event) Envelope {
	switch e := ev.(type) {
	case ServiceStateEvent:
		return Envelope{
			Version:   EnvelopeVersion,
			Type:      TypeServiceState,
			State:     e.State,
			Timestamp: e.Timestamp,
		}
	case ForegroundChangeEvent:
		return Envelope{
			Version:     EnvelopeVersion,
			Type:        TypeForegroundChange,
			EventKind:   e.EventKind,
			PackageName: e.PackageName,
			ClassName:   e.ClassName,
			Timestamp:   e.Timestamp,
		}
	}
	panic(fmt.Sprintf("sdk: unknown event %T", ev))
}

// Unwrap is the inverse of Wrap.
func Unwrap(env Envelope) (Event, error) {
	switch env.Type {
	case TypeServiceState:
		return ServiceStateEvent{State: env.State, Timestamp: env.Timestamp}, nil
	case TypeForegroundChange:
		if env.PackageName == "" {
			return nil, fmt.Errorf("sdk: foreground change without package name")
		}
		return ForegroundChangeEvent{
			EventKind:   env.EventKind,
			PackageName: env.PackageName,
			ClassName:   env.ClassName,
			Timestamp:   env.Timestamp,
		}, nil
	}
	return nil, fmt.Errorf("sdk: unknown envelope type %q", env.Type)
}
