package observer

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quizapp/quiz-platform/internal/config"
	"github.com/quizapp/quiz-platform/internal/events"
	"go.uber.org/zap"
)

// Frame kinds sent by the device agent.
const (
	FrameConnected = "connected"
	FrameInterrupt = "interrupt"
	FrameDestroy   = "destroy"
	FrameEvent     = "event"
)

// Frame is one message on the device agent feed.
type Frame struct {
	Kind string `json:"kind"`
	events.RawEvent
}

// Feed reads accessibility notifications from a device agent over a
// websocket and drives an Observer with them.
type Feed struct {
	cfg     *config.Config
	log     *zap.Logger
	obs     *Observer
	backoff time.Duration
	tick    time.Duration
	// down records that disconnected was the last state reported.
	down bool
}

func NewFeed(cfg *config.Config, log *zap.Logger, obs *Observer) *Feed {
	return &Feed{cfg: cfg, log: log, obs: obs, backoff: 2 * time.Second, tick: 2 * time.Second}
}

// Run blocks until ctx is done, reconnecting on failure.
func (f *Feed) Run(ctx context.Context) {
	defer func() {
		if !f.down {
			f.obs.Disconnected()
		}
	}()
	if f.cfg.AntiCheat.Feed.Fake {
		f.runFake(ctx)
		return
	}
	if f.cfg.AntiCheat.Feed.URL == "" {
		f.log.Info("no accessibility feed configured")
		<-ctx.Done()
		return
	}
	d := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: f.cfg.AntiCheat.Feed.Insecure},
	}
	for {
		conn, _, err := d.DialContext(ctx, f.cfg.AntiCheat.Feed.URL, http.Header{"User-Agent": {"quiz-platform"}})
		if err != nil {
			f.log.Warn("feed dial failed", zap.Error(err))
			if !sleep(ctx, f.backoff) {
				return
			}
			continue
		}
		f.log.Info("feed connected")
		f.read(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		f.down = false
		f.obs.Interrupted()
		if !sleep(ctx, f.backoff) {
			return
		}
	}
}

func (f *Feed) read(ctx context.Context, conn *websocket.Conn) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()
	for {
		var fr Frame
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.log.Warn("feed read", zap.Error(err))
			}
			return
		}
		if err := json.Unmarshal(b, &fr); err != nil {
			f.log.Debug("feed frame ignored", zap.Error(err))
			continue
		}
		f.handle(fr)
	}
}

func (f *Feed) handle(fr Frame) {
	switch fr.Kind {
	case FrameConnected:
		f.down = false
		f.obs.Connected()
	case FrameInterrupt:
		f.down = false
		f.obs.Interrupted()
	case FrameDestroy:
		f.down = true
		f.obs.Disconnected()
	case FrameEvent:
		f.obs.Notify(fr.RawEvent)
	default:
		f.log.Debug("unknown feed frame", zap.String("kind", fr.Kind))
	}
}

// runFake emits a connected state then a synthetic app switch every tick.
func (f *Feed) runFake(ctx context.Context) {
	f.obs.Connected()
	pkgs := []string{"com.example.quiz_application", "com.android.chrome"}
	t := time.NewTicker(f.tick)
	defer t.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			pkg := pkgs[i%len(pkgs)]
			f.obs.Notify(events.RawEvent{
				Type:        events.TypeWindowStateChanged,
				PackageName: &pkg,
				EventTime:   now.UnixMilli(),
			})
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
