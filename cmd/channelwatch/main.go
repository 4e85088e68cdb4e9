// channelwatch connects to the desk event server and streams live events
// to the console. It is the diagnostic counterpart of the notification
// badge: if channelwatch sees events, the channel is healthy.
//
// Usage: go run ./cmd/channelwatch --config configs/channel.example.yaml
//
// Required environment variables:
//
//	DESK_TOKEN - session token for the desk API
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nkoval/deskchannel/internal/auth"
	"github.com/nkoval/deskchannel/internal/authbind"
	"github.com/nkoval/deskchannel/internal/channel"
	"github.com/nkoval/deskchannel/internal/config"
	"github.com/nkoval/deskchannel/internal/notify"
	"github.com/nkoval/deskchannel/internal/registry"
	"github.com/nkoval/deskchannel/internal/status"
	"github.com/nkoval/deskchannel/internal/transport"
	"github.com/nkoval/deskchannel/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/channel.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full event payloads")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Setup logger
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	// Load config
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	token, err := auth.TokenFromEnv("DESK_TOKEN")
	if err != nil {
		logger.Error("missing credential", "error", err)
		logger.Info("set the DESK_TOKEN environment variable to a desk session token")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Composition root: everything is built here and injected, nothing is
	// a package-level singleton.
	store := status.NewStore(logger)
	reg := registry.New(logger)

	dial := transport.Dialer(transport.Config{
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		PingInterval:     cfg.Heartbeat.PingInterval,
		StaleAfter:       cfg.Heartbeat.StaleAfter,
	}, logger)

	mgr := channel.New(channel.Config{
		URL:           cfg.Server.URL,
		MaxAttempts:   cfg.Retry.MaxAttempts,
		RetryInterval: cfg.Retry.Interval,
		AckTimeout:    cfg.Ack.Timeout,
	}, store, reg, dial, logger)

	store.Watch(func(st status.Status, err error) {
		if err != nil {
			logger.Warn("channel status", "status", st, "error", err)
			return
		}
		logger.Info("channel status", "status", st)
	})

	// Live incident and equipment updates
	printEvent := func(name string) transport.Handler {
		return func(payload json.RawMessage) {
			if *verbose {
				logger.Info("event", "name", name, "payload", string(payload))
				return
			}
			logger.Info("event", "name", name)
		}
	}
	mgr.Subscribe("incident:update", printEvent("incident:update"))
	mgr.Subscribe("equipment:update", printEvent("equipment:update"))

	// Notification badge
	inbox := notify.NewInbox(mgr, logger)
	inbox.Start()
	defer inbox.Stop()
	mgr.Subscribe(notify.EventNew, func(json.RawMessage) {
		logger.Info("unread notifications", "count", inbox.Unread())
	})

	// Bind the credential to the channel lifecycle.
	src := auth.NewTokenSource()
	binding := authbind.New(mgr, src, logger)
	go binding.Run(ctx)
	src.SignIn(token)

	logger.Info("channelwatch started", "server", cfg.Server.URL, "version", version.String())

	<-ctx.Done()

	src.SignOut()
	mgr.Disconnect()
	logger.Info("channelwatch stopped")
}
