package sdk

// Subscriber receives events from the bridge. OnEvent is always called from
// the bridge's delivery goroutine, one event at a time.
type Subscriber interface {
	OnEvent(ev Event)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ev Event)

func (f SubscriberFunc) OnEvent(ev Event) { f(ev) }

// Publisher is what event producers need from the bridge.
type Publisher interface {
	Publish(ev Event)
}
