package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quizapp/quiz-platform/internal/config"
	"github.com/quizapp/quiz-platform/internal/events"
	"github.com/quizapp/quiz-platform/internal/functions"
	"github.com/quizapp/quiz-platform/internal/httpserver"
	"github.com/quizapp/quiz-platform/internal/logging"
	"github.com/quizapp/quiz-platform/internal/mail"
	"github.com/quizapp/quiz-platform/internal/observer"
	"github.com/quizapp/quiz-platform/internal/push"
	"github.com/quizapp/quiz-platform/internal/reloader"
	"github.com/quizapp/quiz-platform/internal/settings"
	"github.com/quizapp/quiz-platform/internal/store"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

func main() {
	cfgPath := os.Getenv("QUIZ_PLATFORM_CONFIG")
	if cfgPath == "" {
		cfgPath = "/etc/quiz-platform/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	logger := logging.New(logging.Cfg{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.JSON,
	})
	defer logger.Sync()

	logger.Info("starting quiz-platform", zap.String("config", cfgPath))

	docs, err := store.Load(cfg.Store.Path)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	bridge := events.NewBridge(logger.Named("bridge"), bridgeOptions(cfg))
	obs := observer.New(logger.Named("observer"), bridge)
	feed := observer.NewFeed(cfg, logger.Named("feed"), obs)

	mailer := mail.NewSMTPMailer(mail.Config{
		Host:     cfg.BugReport.SMTPHost,
		Port:     cfg.BugReport.SMTPPort,
		User:     cfg.BugReport.User,
		Password: cfg.BugReport.Password,
	})
	if !mailer.Ready() {
		logger.Warn("bug report mail credentials missing, sendBugReport will fail")
	}

	srv := httpserver.New(cfg, logger, httpserver.Deps{
		Bridge:    bridge,
		Bugs:      functions.NewBugReporter(logger.Named("bugreport"), mailer, cfg.BugReport.Destination, cfg.BugReport.FromName),
		Directory: docs,
		Notifier:  functions.NewNotifier(logger.Named("notify"), docs, pushSender(cfg, logger)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		feed.Run(ctx)
	}()

	reloader.OnSIGHUP(ctx, func() {
		newCfg, err := config.Load(cfgPath)
		if err != nil {
			logger.Warn("config reload failed", zap.Error(err))
			return
		}
		bridge.Reload(bridgeOptions(newCfg))
		srv.Reload(newCfg)
		logger.Info("reloaded config")
	})

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Bind, cfg.HTTP.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http listening", zap.String("addr", addr))
		if cfg.HTTP.TLS.Enabled {
			if err := httpSrv.ListenAndServeTLS(cfg.HTTP.TLS.Cert, cfg.HTTP.TLS.Key); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("http tls", zap.Error(err))
			}
		} else {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("http", zap.Error(err))
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down...")
	cancel()
	<-feedDone

	ctxTimeout, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = httpSrv.Shutdown(ctxTimeout)
	bridge.Close()
	logger.Info("bye")
}

func bridgeOptions(cfg *config.Config) events.Options {
	opts := events.Options{
		QueueSize: cfg.AntiCheat.QueueSize,
		ServiceID: cfg.AntiCheat.ServiceID,
		Navigator: settings.CommandNavigator{Argv: cfg.AntiCheat.OpenSettingsCommand},
	}
	switch {
	case cfg.AntiCheat.SettingsFile != "":
		opts.Settings = settings.FileSource{Path: cfg.AntiCheat.SettingsFile}
	case len(cfg.AntiCheat.SettingsCommand) > 0:
		opts.Settings = settings.CommandSource{Argv: cfg.AntiCheat.SettingsCommand}
	}
	return opts
}

func pushSender(cfg *config.Config, log *zap.Logger) functions.Pusher {
	dry := push.LogSender{Log: log.Named("push")}
	if cfg.Push.DryRun {
		log.Warn("push in dry-run mode")
		return dry
	}
	project := cfg.Push.ProjectID
	var ts oauth2.TokenSource
	switch {
	case cfg.Push.CredentialsFile != "":
		src, p, err := push.ServiceAccountTokenSource(context.Background(), cfg.Push.CredentialsFile)
		if err != nil {
			log.Error("push credentials, falling back to dry-run", zap.Error(err))
			return dry
		}
		ts = src
		if project == "" {
			project = p
		}
	case cfg.Push.AccessToken != "":
		ts = push.StaticTokenSource(cfg.Push.AccessToken)
	default:
		log.Warn("no push credentials configured, push in dry-run mode")
		return dry
	}
	if project == "" {
		log.Warn("no push project id, push in dry-run mode")
		return dry
	}
	return push.NewFCMSender(cfg.Push.Endpoint, project, ts)
}
