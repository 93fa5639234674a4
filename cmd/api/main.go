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

	"github.com/resend/resend-go/v2"

	"github.com/petermazzocco/photostockage/internal/auth"
	"github.com/petermazzocco/photostockage/internal/config"
	"github.com/petermazzocco/photostockage/internal/events"
	"github.com/petermazzocco/photostockage/internal/handlers"
	"github.com/petermazzocco/photostockage/internal/logger"
	"github.com/petermazzocco/photostockage/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: !cfg.IsProd()})

	// Upload storage
	var (
		blobs     storage.Blobs
		staticDir string
	)
	switch cfg.Upload.Backend {
	case "r2":
		client, err := storage.NewR2Client(ctx, storage.R2Config{
			AccountID:       cfg.Upload.AccountID,
			AccessKeyID:     cfg.Upload.AccessKeyID,
			AccessKeySecret: cfg.Upload.AccessKeySecret,
			Bucket:          cfg.Upload.Bucket,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure R2")
		}
		blobs = storage.NewR2Store(client, cfg.Upload.Bucket, cfg.Upload.R2PublicURL)
	default:
		disk, err := storage.NewDiskStore(cfg.Upload.Dir)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to prepare upload directory")
		}
		blobs, staticDir = disk, disk.Dir()
	}

	health := map[string]handlers.Pinger{}

	// Upload ledger
	var ledger handlers.Ledger
	if cfg.Upload.DSN != "" {
		l, err := storage.OpenLedger(cfg.Upload.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open upload ledger")
		}
		ledger = l
		health["ledger"] = l
	}

	// Session change signals, shared across instances when Redis is set
	var broker auth.Broker = auth.NewLocalBroker()
	if cfg.Redis.Addr != "" {
		rdb, err := auth.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		rb := auth.NewRedisBroker(rdb, cfg.Session.Profile, log)
		go func() {
			if err := rb.Run(ctx, nil); err != nil {
				log.Error().Err(err).Msg("redis broker stopped")
			}
		}()
		broker = rb
		health["redis"] = handlers.PingerFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	hub := events.NewHub(log)
	go hub.Run(ctx)
	defer hub.Attach(broker)()

	var mailer handlers.Mailer
	if cfg.Mail.ResendAPIKey != "" {
		mailer = resend.NewClient(cfg.Mail.ResendAPIKey).Emails
	} else {
		log.Warn().Msg("RESEND_API_KEY not set, contact form disabled")
	}

	router := handlers.NewRouter(handlers.Server{
		Log:       log,
		Blobs:     blobs,
		Ledger:    ledger,
		Mailer:    mailer,
		Mail:      handlers.MailSettings{From: cfg.Mail.From, To: cfg.Mail.To},
		Sessions:  auth.NewCookieSessions([]byte(cfg.Session.Secret), cfg.IsProd()),
		Broker:    broker,
		Hub:       hub,
		StaticDir: staticDir,
		Health:    health,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().Str("addr", srv.Addr).Str("uploads", cfg.Upload.Backend).Msg("starting same-origin server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
