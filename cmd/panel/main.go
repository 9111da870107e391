package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homepanel/internal/cache"
	"homepanel/internal/config"
	"homepanel/internal/gateway"
	"homepanel/internal/log"
	"homepanel/internal/panel"
	"homepanel/internal/realtime"
	"homepanel/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config: %v", err)
		os.Exit(1)
	}

	log.SetDefaultLevel(log.ParseLevel(cfg.LogLevel))
	log.SetDefaultJSONMode(cfg.LogJSON)

	log.Info("starting home panel")

	if err := cfg.EnsureDataDir(); err != nil {
		log.Error("failed to create data directory: %v", err)
		os.Exit(1)
	}

	db, err := cache.Open(cfg.DatabasePath())
	if err != nil {
		log.Error("failed to open local cache: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	log.Info("local cache initialized at %s", cfg.DatabasePath())

	gw, err := gateway.NewClient(cfg.BackendURL)
	if err != nil {
		log.Error("failed to create backend client: %v", err)
		os.Exit(1)
	}

	// A remembered username lets the realtime channel come up before the
	// next login, so pushes resume immediately after a restart.
	if username := db.Username(); username != "" {
		gw.Session().SetUsername(username)
		log.Info("restored session for %s", username)
	}

	channel := realtime.New(cfg.PushURL, db)
	svc := panel.New(gw, db)
	server := web.NewServer(cfg.ListenPort, svc, channel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("shutting down...")
		cancel()
	}()

	go superviseChannel(ctx, svc, channel)

	if err := server.Run(ctx); err != nil {
		log.Error("panel server error: %v", err)
	}

	channel.Disconnect()
	log.Info("shutdown complete")
}

// superviseChannel keeps the push channel up while a session exists. The
// channel itself is a singleton, so a redundant Connect is a no-op.
func superviseChannel(ctx context.Context, svc *panel.Service, channel *realtime.Channel) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if svc.Username() == "" || channel.Connected() {
				continue
			}
			if err := channel.Connect(ctx); err != nil {
				log.Debug("realtime reconnect failed: %v", err)
			}
		}
	}
}
