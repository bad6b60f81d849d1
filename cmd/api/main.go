package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"projgate.org/internal/auth"
	"projgate.org/internal/config"
	"projgate.org/internal/httpapi"
	"projgate.org/internal/keys"
	"projgate.org/internal/obs"
	"projgate.org/internal/projects"
	"projgate.org/internal/ratelimit"
	"projgate.org/internal/store/memory"
	"projgate.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

type backend interface {
	auth.UserStore
	projects.Store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Инициализация observability (регистрация метрик, JSON-логгер и т.п.)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Хранилище: PostgreSQL при заданном DSN, иначе in-memory.
	var (
		store     backend
		readiness httpapi.ReadinessChecker = httpapi.ReadyProbe{}
		pgStore   *pg.Store
	)
	if cfg.PGDSN != "" {
		pgStore, err = pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		if cfg.AutoMigrate {
			migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err = pg.Migrate(migrateCtx, pgStore.DB())
			cancel()
			if err != nil {
				log.Fatalf("migrate: %v", err)
			}
		}
		store, readiness = pgStore, pgStore
	} else {
		obs.Log("warn", "memory_store_in_use", map[string]any{"reason": "PROJGATE_PG_DSN not set"})
		store = memory.New()
	}

	var src auth.KeySource
	if cfg.KeysDir != "" {
		w, err := keys.NewWatcher(cfg.KeysDir)
		if err != nil {
			log.Fatalf("load keys: %v", err)
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				obs.Log("error", "key_watcher_stopped", map[string]any{"error": err.Error()})
			}
		}()
		src = w
	} else {
		src = auth.StaticKeys{Access: []byte(cfg.AccessSecret), Refresh: []byte(cfg.RefreshSecret)}
	}

	tokens, err := auth.NewTokenManager(src, auth.WithAccessTTL(cfg.AccessTTL), auth.WithRefreshTTL(cfg.RefreshTTL))
	if err != nil {
		log.Fatalf("token manager: %v", err)
	}
	creds, err := auth.NewCredentialVerifier(cfg.BcryptCost)
	if err != nil {
		log.Fatalf("credential verifier: %v", err)
	}
	authSvc, err := auth.NewService(store, tokens, creds)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	if cfg.BootstrapAdminEmail != "" {
		u, created, err := authSvc.EnsureUser(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword, auth.RoleAdmin)
		if err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
		obs.Log("info", "bootstrap_admin", map[string]any{"user_id": u.ID, "created": created})
	}
	projectSvc, err := projects.NewService(store)
	if err != nil {
		log.Fatalf("project service: %v", err)
	}

	general, err := ratelimit.New(cfg.GeneralLimit, cfg.GeneralWindow)
	if err != nil {
		log.Fatalf("general governor: %v", err)
	}
	strict, err := ratelimit.New(cfg.AuthLimit, cfg.AuthWindow)
	if err != nil {
		log.Fatalf("auth governor: %v", err)
	}
	go sweep(ctx, time.Minute, general, strict)
	proxies, err := cfg.ProxyPrefixes()
	if err != nil {
		log.Fatalf("trusted proxies: %v", err)
	}

	// HTTP API
	api, err := httpapi.New(httpapi.Options{
		Auth:           authSvc,
		Tokens:         tokens,
		Projects:       projectSvc,
		General:        general,
		Strict:         strict,
		TrustedProxies: proxies,
		Readiness:      readiness,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Version:        version,
	})
	if err != nil {
		log.Fatalf("api: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(), // уже обёрнут метриками в httpapi
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcServer := grpc.NewServer()
	httpapi.NewHealthServer(readiness).Register(grpcServer)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("grpc listen: %v", err)
	}

	log.Printf("Starting projgate-api %s on %s (grpc %s)", version, srv.Addr, cfg.GRPCAddr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}

// sweep drops expired governor windows so idle clients do not accumulate.
func sweep(ctx context.Context, every time.Duration, limiters ...*ratelimit.FixedWindow) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, l := range limiters {
				l.Sweep()
			}
		}
	}
}
