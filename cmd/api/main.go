package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"tenauth.org/internal/auth"
	"tenauth.org/internal/httpapi"
	"tenauth.org/internal/obs"
	"tenauth.org/internal/rate"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	// Инициализация observability (регистрация метрик, JSON-логгер и т.п.)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	store := auth.NewPGStore(db)

	var svcOpts []auth.ServiceOption
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		svcOpts = append(svcOpts, auth.WithLoginLimiter(rate.New(rdb, rate.Config{ThrottleIP: true})))
	}
	svc, err := auth.NewService(store, issuer, svcOpts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	ctx, cancelSweep := context.WithCancel(context.Background())
	sweeper := auth.NewSweeper(store.RefreshTokens(), time.Hour)
	go sweeper.Run(ctx)

	api := httpapi.New(httpapi.Config{
		Service:      svc,
		Issuer:       issuer,
		ReadyProbe:   httpapi.ReadyProbe{DB: db},
		Version:      version,
		CookieSecure: cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(), // уже обёрнут метриками в httpapi
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting tenauth-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	cancelSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = db.Close()
	log.Println("Stopped")
}
