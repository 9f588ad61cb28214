// Package observer turns platform accessibility notifications into bridge
// events.
package observer

import (
	"time"

	"github.com/quizapp/quiz-platform/internal/events"
	"github.com/quizapp/quiz-platform/pkg/sdk"
	"go.uber.org/zap"
)

// Observer must be called from the platform's notification goroutine and
// never blocks it: all forwarding goes through the bridge's non-blocking
// Publish.
type Observer struct {
	log *zap.Logger
	pub sdk.Publisher
	now func() time.Time
}

func New(log *zap.Logger, pub sdk.Publisher) *Observer {
	return &Observer{log: log, pub: pub, now: time.Now}
}

// Connected is called once the user enabled the service.
func (o *Observer) Connected() { o.state(sdk.StateConnected) }

// Interrupted is called when the platform interrupts the service.
func (o *Observer) Interrupted() { o.state(sdk.StateInterrupted) }

// Disconnected is called on teardown.
func (o *Observer) Disconnected() { o.state(sdk.StateDisconnected) }

// Notify forwards raw if it is a window change carrying a package name.
// Everything else is dropped silently.
func (o *Observer) Notify(raw events.RawEvent) {
	if !events.KindOf(raw.Type).Known() {
		return
	}
	ev, ok := events.Normalize(raw)
	if !ok {
		return
	}
	o.pub.Publish(ev)
}

func (o *Observer) state(s sdk.ServiceState) {
	o.log.Info("observer service state", zap.String("state", string(s)))
	o.pub.Publish(sdk.ServiceStateEvent{State: s, Timestamp: o.now().UnixMilli()})
}
