package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pet-care-sync/internal/adapters/auth/tokenauth"
	"pet-care-sync/internal/adapters/remote/httpdoc"
	"pet-care-sync/internal/adapters/storage/memory"
	"pet-care-sync/internal/adapters/storage/sqlite"
	"pet-care-sync/internal/backend"
	enginesync "pet-care-sync/internal/domain/sync"
	"pet-care-sync/internal/notify"
	"pet-care-sync/internal/platform/env"
	"pet-care-sync/internal/platform/logger"
	"pet-care-sync/internal/ports/cache"
	"pet-care-sync/internal/ports/remote"
)

// petsyncd: daemon de sincronización de una cuenta.
//
// Corre el engine (pull-merge-push) contra el backend de documentos,
// escucha notificaciones por NATS y expone opcionalmente el backend de
// referencia embebido (BACKEND_EMBEDDED=1) para dev.
func main() {
	log := logger.NewFromEnv()

	accountID := env.String("ACCOUNT_ID", "")
	if accountID == "" {
		log.Error("ACCOUNT_ID is required", nil)
		os.Exit(1)
	}

	backendURL := env.String("BACKEND_URL", env.DefaultBackendURL)
	natsURL := env.String("NATS_URL", env.DefaultNATSURL)
	syncEvery := env.Duration("SYNC_INTERVAL", 5*time.Minute)
	httpTimeout := env.Duration("HTTP_TIMEOUT", 10*time.Second)

	// NATS es opcional: sin broker no hay push, pero el sync periódico
	// igual converge.
	natsConn, natsErr := notify.Connect(natsURL, 5*time.Second)
	if natsErr != nil {
		log.Warn("running without push notifications", map[string]any{"error": natsErr.Error()})
	} else {
		defer natsConn.Close()
	}

	// Backend embebido para dev/handoff: mismo proceso, mismo wire.
	if env.String("BACKEND_EMBEDDED", "") == "1" {
		var notifier backend.Notifier
		if natsConn != nil {
			notifier = notify.NewPublisher(natsConn, log)
		}

		var store backend.DocStore
		if dsn := env.String("DB_DSN", ""); dsn != "" {
			db, err := backend.OpenPostgres(dsn)
			if err != nil {
				log.Error("postgres open failed", map[string]any{"error": err.Error()})
				os.Exit(1)
			}
			defer db.Close()
			store = backend.NewPostgresStore(db)
		}

		addr := env.String("BACKEND_ADDR", env.DefaultBackendAddr)
		srv := &http.Server{
			Addr:         addr,
			Handler:      backend.NewRouter(backend.Options{Store: store, Notifier: notifier, Log: log}),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("embedded backend listening", map[string]any{"addr": addr})
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("embedded backend failed", map[string]any{"error": err.Error()})
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	// Cache local: SQLite embebido por defecto, memoria como fallback
	// explícito (CACHE=memory, útil en CI sin disco).
	var store cache.Store
	if env.String("CACHE", "sqlite") == "memory" {
		store = memory.NewStore()
	} else {
		db, err := sqlite.Open(env.String("CACHE_PATH", env.DefaultCachePath))
		if err != nil {
			log.Error("cache open failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		defer db.Close()
		store = sqlite.NewStore(db)
	}

	// Re-auth opcional: sin AUTH_URL el engine no reintenta credenciales.
	var (
		auth   remote.Authenticator
		tokens httpdoc.TokenSource
	)
	if authURL := env.String("AUTH_URL", ""); authURL != "" {
		ac, err := tokenauth.NewClient(tokenauth.Config{
			BaseURL:      authURL,
			AccountID:    accountID,
			RefreshToken: env.String("REFRESH_TOKEN", ""),
			Timeout:      httpTimeout,
		})
		if err != nil {
			log.Error("auth client failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		auth = ac
		tokens = ac
	}

	client, err := httpdoc.NewClient(httpdoc.Config{
		BaseURL:   backendURL,
		AccountID: accountID,
		Tokens:    tokens,
		Timeout:   httpTimeout,
	})
	if err != nil {
		log.Error("sync client failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	engine := enginesync.NewEngine(store, client, client, client, auth, log)
	scheduler := enginesync.NewScheduler(engine, log)
	defer scheduler.Stop()

	// Listener de notificaciones: señal de "algo cambió", nunca fuente
	// de verdad.
	if natsConn != nil {
		listener := notify.NewListener(accountID, scheduler, log)
		if err := listener.Start(natsConn); err != nil {
			log.Warn("notify subscribe failed", map[string]any{"error": err.Error()})
		} else {
			defer listener.Stop()
		}
	}

	log.Info("petsyncd started", map[string]any{
		"account_id": accountID, "backend_url": backendURL, "sync_interval": syncEvery.String(),
	})

	// Primer ciclo inmediato, después periódico.
	scheduler.Trigger(accountID, enginesync.PriorityHigh)
	ticker := time.NewTicker(syncEvery)
	defer ticker.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			scheduler.Trigger(accountID, enginesync.PriorityNormal)
		case <-stop:
			log.Info("shutting down", nil)
			return
		}
	}
}
