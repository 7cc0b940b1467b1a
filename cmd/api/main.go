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

	"lazyauth.org/internal/auth"
	"lazyauth.org/internal/config"
	"lazyauth.org/internal/httpapi"
	"lazyauth.org/internal/oauth"
	"lazyauth.org/internal/obs"
	"lazyauth.org/internal/state"
	"lazyauth.org/internal/token"
)

var version = "0.1.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Login-state store: Postgres when a DSN is configured so multiple
	// instances share one nonce table, in-memory otherwise.
	var (
		db     *sql.DB
		states state.Store
	)
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)

		pg := state.NewPGStore(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pg.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatalf("state schema: %v", err)
		}
		cancel()
		states = pg
	} else {
		states = state.NewMemoryStore()
	}

	tokens, err := token.New(cfg.SigningSecret, cfg.SigningAlgorithm, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	provider := oauth.NewClient(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI, oauth.Endpoints{
		AuthURL:     cfg.AuthorizationURL,
		TokenURL:    cfg.TokenURL,
		UserInfoURL: cfg.UserInfoURL,
	})

	api := httpapi.New(auth.NewService(states, provider, tokens), version)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting lazyauth-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
