// Package app assembles the gateway from its parts.
package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"worklens/internal/archive"
	"worklens/internal/config"
	"worklens/internal/conversation"
	"worklens/internal/generate"
	"worklens/internal/server"
)

type App struct {
	server  *server.Server
	store   *conversation.Store
	gateway *generate.Gateway
	log     *zap.Logger
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := newLogger(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	// Dependencies
	store := conversation.NewFromEnv(cfg.Store.FilePath)

	var client generate.Client
	if cfg.LLM.APIKey != "" {
		gc, err := generate.NewGeminiClient(ctx, cfg.LLM.Model)
		if err != nil {
			log.Warn("llm client init failed, running with fallback only", zap.Error(err))
		} else {
			client = gc
		}
	} else {
		log.Info("no llm api key configured, running with fallback only")
	}
	gateway := generate.NewGateway(client, cfg.Caps, log)

	svc := server.NewService(gateway, store, cfg.Caps, log)
	if cfg.UpstreamURL != "" {
		svc.UseUpstream(cfg.UpstreamURL)
		log.Info("panel turns routed to upstream gateway", zap.String("url", cfg.UpstreamURL))
	}
	if cfg.Archive.Enabled {
		archiveStore, err := archive.NewS3Store(archive.S3Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			log.Warn("archive store disabled", zap.Error(err))
		} else {
			svc.EnableArchive(archiveStore)
		}
	}

	// Routing & Server
	mux := server.BuildMux(svc)
	srv := server.New(cfg.Port, mux, log)

	return &App{
		server:  srv,
		store:   store,
		gateway: gateway,
		log:     log,
	}, nil
}

func newLogger(env string) (*zap.Logger, error) {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (a *App) Logger() *zap.Logger {
	return a.log
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.gateway.Close(); err == nil {
		err = cerr
	}
	if cerr := a.store.Close(); err == nil {
		err = cerr
	}
	_ = a.log.Sync()
	return err
}
