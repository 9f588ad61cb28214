package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quizapp/quiz-platform/internal/settings"
	"github.com/quizapp/quiz-platform/pkg/sdk"
	"go.uber.org/zap"
)

const (
	defaultQueueSize = 64
	settingsTimeout  = 3 * time.Second
)

type Options struct {
	// QueueSize bounds the hand-off between publishers and the delivery
	// goroutine. Events beyond it are dropped.
	QueueSize int
	// ServiceID is the observer's own entry in the enabled-services list.
	ServiceID string
	Settings  settings.Source
	Navigator settings.Navigator
}

// Subscription is the registration handed out by Subscribe.
type Subscription struct {
	b   *Bridge
	sub sdk.Subscriber
}

// Cancel clears the bridge slot if s is still the current subscription.
func (s *Subscription) Cancel() bool {
	return s.b.slot.CompareAndSwap(s, nil)
}

type delivery struct {
	sub sdk.Subscriber
	ev  sdk.Event
}

// Bridge relays events to a single subscriber. The subscriber is called from
// one delivery goroutine, in publish order.
type Bridge struct {
	log   *zap.Logger
	ctl   atomic.Pointer[Options]
	slot  atomic.Pointer[Subscription]
	queue chan delivery
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func NewBridge(log *zap.Logger, opts Options) *Bridge {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	b := &Bridge{
		log:   log,
		queue: make(chan delivery, opts.QueueSize),
		done:  make(chan struct{}),
	}
	b.ctl.Store(&opts)
	b.wg.Add(1)
	go b.deliver()
	return b
}

// Subscribe makes sub the current subscriber, replacing any previous one.
func (b *Bridge) Subscribe(sub sdk.Subscriber) *Subscription {
	s := &Subscription{b: b, sub: sub}
	if prev := b.slot.Swap(s); prev != nil {
		b.log.Debug("subscriber replaced")
	}
	return s
}

// Unsubscribe clears the current subscriber, whoever registered it.
func (b *Bridge) Unsubscribe() {
	b.slot.Store(nil)
}

func (b *Bridge) HasSubscriber() bool {
	return b.slot.Load() != nil
}

// Publish hands ev to the delivery goroutine and returns immediately. With
// no subscriber, a full queue or a closed bridge the event is dropped.
func (b *Bridge) Publish(ev sdk.Event) {
	s := b.slot.Load()
	if s == nil {
		return
	}
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.queue <- delivery{sub: s.sub, ev: ev}:
	default:
		b.log.Debug("event dropped, queue full", zap.Int64("timestamp", ev.EventTime()))
	}
}

func (b *Bridge) deliver() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			b.drain()
			return
		case d := <-b.queue:
			b.dispatch(d)
		}
	}
}

// drain delivers whatever is still queued without waiting for more.
func (b *Bridge) drain() {
	for {
		select {
		case d := <-b.queue:
			b.dispatch(d)
		default:
			return
		}
	}
}

func (b *Bridge) dispatch(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber panicked", zap.Any("panic", r))
		}
	}()
	d.sub.OnEvent(d.ev)
}

// IsServiceEnabled reports whether the observer is authorized in the OS
// settings. Any failure to read them counts as not enabled.
func (b *Bridge) IsServiceEnabled(ctx context.Context) bool {
	opts := b.ctl.Load()
	if opts.Settings == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, settingsTimeout)
	defer cancel()
	enabled, err := opts.Settings.EnabledServices(ctx)
	if err != nil {
		b.log.Debug("enabled services unreadable", zap.Error(err))
		return false
	}
	return settings.IsEnabled(enabled, opts.ServiceID)
}

// RequestEnable opens the OS settings surface. It does not wait for the user;
// poll IsServiceEnabled for the outcome.
func (b *Bridge) RequestEnable(ctx context.Context) error {
	nav := b.ctl.Load().Navigator
	if nav == nil {
		return settings.ErrNoCommand
	}
	return nav.OpenAccessibilitySettings(ctx)
}

// Reload swaps the settings collaborators. The queue size and the
// subscriber slot are kept.
func (b *Bridge) Reload(opts Options) {
	opts.QueueSize = cap(b.queue)
	b.ctl.Store(&opts)
}

// Close stops intake, delivers the events already queued and waits for the
// delivery goroutine to exit.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
	b.wg.Wait()
}
