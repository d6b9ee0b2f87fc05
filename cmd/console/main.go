package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/counseldesk/operator-console/internal/api"
	"github.com/counseldesk/operator-console/internal/archive"
	"github.com/counseldesk/operator-console/internal/chatapi"
	"github.com/counseldesk/operator-console/internal/config"
	"github.com/counseldesk/operator-console/internal/metrics"
	"github.com/counseldesk/operator-console/internal/notify"
	"github.com/counseldesk/operator-console/internal/opsocket"
	"github.com/counseldesk/operator-console/internal/protocol"
	"github.com/counseldesk/operator-console/internal/session"
	"github.com/counseldesk/operator-console/internal/snapshot"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	log.Printf("CounselDesk operator console starting")
	log.Printf("  socket_url:   %s", cfg.Socket.URL)
	log.Printf("  chat_api:     %s", cfg.API.BaseURL)
	log.Printf("  operator:     %s (%s)", cfg.Operator.ID, cfg.Operator.Role)
	log.Printf("  listen_addr:  %s", cfg.HTTP.ListenAddr)
	log.Printf("  typing_idle:  %s", cfg.TypingIdle)
	log.Printf("  redis_addr:   %s", orDisabled(cfg.Redis.Addr))
	log.Printf("  nats_url:     %s", orDisabled(cfg.NATS.URL))
	log.Printf("  postgres:     %s", enabledFlag(cfg.Postgres.DSN))

	transport := opsocket.New(opsocket.Config{
		URL:           cfg.Socket.URL,
		OperatorID:    cfg.Operator.ID,
		Role:          cfg.Operator.Role,
		DialTimeout:   cfg.Socket.DialTimeout,
		ReconnectWait: cfg.Socket.ReconnectWait,
	})
	crm := chatapi.NewClient(cfg.API.BaseURL)

	opts := []session.Option{
		session.WithTypingIdle(cfg.TypingIdle),
		session.WithHistoryTimeout(cfg.API.HistoryTimeout),
	}

	// --- Notifications ---
	notifiers := notify.Multi{notify.LogNotifier{}}
	if cfg.NATS.URL != "" {
		natsCfg := notify.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		natsNotifier, err := notify.NewNATSNotifier(natsCfg)
		if err != nil {
			log.Fatalf("connect to NATS: %v", err)
		}
		defer natsNotifier.Close()
		notifiers = append(notifiers, natsNotifier)
	}
	opts = append(opts, session.WithNotifier(notifiers))

	// --- Roster snapshot (warm start across restarts) ---
	var snap *snapshot.Store
	if cfg.Redis.Addr != "" {
		snap, err = snapshot.NewStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("connect to Redis: %v", err)
		}
		defer snap.Close()
		operatorID := cfg.Operator.ID
		opts = append(opts, session.WithRosterListener(func(chats []protocol.Chat) {
			if err := snap.Save(context.Background(), operatorID, chats); err != nil {
				log.Printf("[snapshot] save failed: %v", err)
			}
		}))
	}

	// --- Transcript archive ---
	if cfg.Postgres.DSN != "" {
		store, err := archive.Open(cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("open archive: %v", err)
		}
		defer store.Close()
		opts = append(opts, session.WithCloseListener(func(chat protocol.Chat, msgs []protocol.ChatMessage) {
			if err := store.ArchiveTranscript(context.Background(), chat, msgs); err != nil {
				log.Printf("[archive] transcript for chat %s failed: %v", chat.ID, err)
			}
		}))
	}

	manager := session.New(session.Identity{
		OperatorID: cfg.Operator.ID,
		Name:       cfg.Operator.Name,
		Role:       cfg.Operator.Role,
	}, transport, crm, opts...)

	if snap != nil {
		if chats, err := snap.Load(context.Background(), cfg.Operator.ID); err != nil {
			log.Printf("[snapshot] load failed: %v", err)
		} else if len(chats) > 0 {
			manager.SeedRoster(chats)
			log.Printf("[snapshot] seeded roster with %d chats", len(chats))
		}
	}

	if err := manager.Start(context.Background()); err != nil {
		log.Fatalf("start session: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", api.NewServer(manager, cfg.HTTP.AllowedOrigins))
	httpServer := &http.Server{Addr: cfg.HTTP.ListenAddr, Handler: mux}

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		if err := manager.Stop(); err != nil {
			log.Printf("session stop error: %v", err)
		}
		if err := httpServer.Shutdown(context.Background()); err != nil {
			log.Printf("http shutdown error: %v", err)
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("http server error: %v", err)
	}
}

func orDisabled(v string) string {
	if v == "" {
		return "(disabled)"
	}
	return v
}

func enabledFlag(v string) string {
	if v == "" {
		return "(disabled)"
	}
	return "enabled"
}
