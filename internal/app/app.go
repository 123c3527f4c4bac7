package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/daniarmadeit/idi-motors-bot/internal/archive"
	"github.com/daniarmadeit/idi-motors-bot/internal/bridge"
	"github.com/daniarmadeit/idi-motors-bot/internal/config"
	"github.com/daniarmadeit/idi-motors-bot/internal/delivery"
	"github.com/daniarmadeit/idi-motors-bot/internal/describe"
	"github.com/daniarmadeit/idi-motors-bot/internal/listing"
	"github.com/daniarmadeit/idi-motors-bot/internal/pipeline"
	"github.com/daniarmadeit/idi-motors-bot/internal/processor"
	"github.com/daniarmadeit/idi-motors-bot/internal/redisx"
	"github.com/daniarmadeit/idi-motors-bot/internal/scheduler"
	"github.com/daniarmadeit/idi-motors-bot/internal/session"
	"github.com/daniarmadeit/idi-motors-bot/internal/transform"
	"github.com/daniarmadeit/idi-motors-bot/internal/transport/handler"
	"github.com/daniarmadeit/idi-motors-bot/internal/transport/router"
	"github.com/daniarmadeit/idi-motors-bot/internal/transport/sink"
)

type App struct {
	HttpServer *http.Server
	uploads    *delivery.Uploader
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	holder, err := redisx.Build(ctx, &cfg.Redis)
	if err != nil {
		return nil, err
	}
	rc := holder.Get()

	store := session.NewStore(rc, "idimotors", cfg.Session.TTL*time.Second)

	var uploads *delivery.Uploader
	if cfg.S3.Enabled {
		uploads, err = delivery.NewUploader(&cfg.S3)
		if err != nil {
			return nil, err
		}
	}

	registry := sink.NewRegistry(ctx, store, uploads,
		cfg.Session.TTL*time.Second, cfg.Session.Sweep*time.Second)

	parser := listing.NewParser(&http.Client{Timeout: cfg.Scraper.RequestTimeout * time.Second}, cfg.Scraper)
	transfer := archive.NewTransfer(&http.Client{}, cfg.Pipeline.DownloadTimeout*time.Second, cfg.Scraper.UserAgent)

	var backend pipeline.Backend
	if cfg.RunPod.Enabled {
		log.Printf("[app] using remote worker backend")
		backend = &pipeline.BridgeBackend{
			Bridge: bridge.NewClient(&http.Client{}, cfg.RunPod),
		}
	} else {
		tc := transform.NewClient(&http.Client{}, cfg.IOPaint)
		backend = &pipeline.LocalBackend{
			Transform:    tc,
			Batch:        processor.NewBatch(tc),
			Cap:          cfg.Pipeline.PhotoLimit,
			PreviewCount: cfg.Pipeline.PreviewCount,
		}
	}

	pl := pipeline.New(backend)
	sched := scheduler.New(cfg.Queue.Capacity, pl.Run)

	describer, err := describe.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return nil, err
	}

	h := handler.New(sched, parser, transfer, registry, store, describer, cfg)
	r := router.NewRouter(h)

	s := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout * time.Second,
	}

	return &App{
		HttpServer: s,
		uploads:    uploads,
	}, nil
}

func (a *App) Run() error {
	log.Printf("starting server")
	err := a.HttpServer.ListenAndServe()
	if a.uploads != nil {
		a.uploads.Close()
	}
	return err
}
