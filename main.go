package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tubebeam/tubebeam/internal/admission"
	"github.com/tubebeam/tubebeam/internal/config"
	"github.com/tubebeam/tubebeam/internal/fetch"
	"github.com/tubebeam/tubebeam/internal/hosting"
	"github.com/tubebeam/tubebeam/internal/job"
	"github.com/tubebeam/tubebeam/internal/mirror"
	"github.com/tubebeam/tubebeam/internal/probe"
	"github.com/tubebeam/tubebeam/internal/store"
	"github.com/tubebeam/tubebeam/internal/telegram"
	"github.com/tubebeam/tubebeam/internal/transcode"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		log.Fatalf("create download dir: %v", err)
	}

	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open cache database: %v", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("prepare cache database: %v", err)
	}

	mirrorBackend := mirror.NewBackend()
	sessions := telegram.NewSessionStore(cfg.RedisAddr, cfg.RedisPassword)
	defer sessions.Close()

	runner := job.NewRunner(cfg.DownloadDir, transcode.NewService(cfg.FFmpegPath))

	bot, err := telegram.New(cfg, telegram.Deps{
		Prober:  probe.NewProber(mirrorBackend, probe.DefaultCacheSize, probe.DefaultCacheTTL),
		Gate:    admission.NewController(cfg.MaxPerUser),
		Runner:  runner,
		Store:   db,
		Hoster:  hosting.NewClient(cfg.FilebinURL, cfg.FilebinClientID),
		Session: sessions,
		Primary: fetch.NewBackend(cfg.YtdlpPath, cfg.RateLimit, cfg.VIPRateLimit),
		Mirror:  mirrorBackend,
	})
	if err != nil {
		log.Fatalf("start bot: %v", err)
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Println("shutting down")
		runner.KillAll(0)
		bot.Stop()
	}()

	bot.Start()
}
