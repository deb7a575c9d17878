package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jacobB1290/JwebAPP-sub000/internal/config"
	"github.com/jacobB1290/JwebAPP-sub000/internal/importer"
	"github.com/jacobB1290/JwebAPP-sub000/internal/llm"
	"github.com/jacobB1290/JwebAPP-sub000/internal/logging"
	"github.com/jacobB1290/JwebAPP-sub000/internal/store"
)

// jobSlack is added to the provider timeout so persistence still has time
// after a slow reply.
const jobSlack = 30 * time.Second

// app holds what a subcommand needs. Everything is opened up front and
// released by Close.
type app struct {
	cfg     config.Config
	log     *logrus.Logger
	store   *store.Store
	gateway *llm.Gateway
	closers []io.Closer
}

func openApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: logger, closers: []io.Closer{logCloser}}
	log := logger.WithField("component", "cli")
	if cfg.Path() != "" {
		log = log.WithField("config", cfg.Path())
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(ctx, cfg.Database, store.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = st
	a.closers = append([]io.Closer{st}, a.closers...)

	gw, err := llm.NewFromEnv(llm.Config{
		Model:        cfg.LLM.Model,
		DefaultModel: cfg.LLM.DefaultModel,
		AnthropicKey: cfg.LLM.AnthropicKey,
		OpenAIKey:    cfg.LLM.OpenAIKey,
		OllamaHost:   cfg.LLM.OllamaHost,
		Timeout:      cfg.LLM.Timeout,
		MaxTokens:    cfg.LLM.MaxTokens,
	}, llm.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("configure providers: %w", err)
	}
	a.gateway = gw
	log.WithField("command", cmd.Name()).Debug("app ready")
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) newImporter() (*importer.Importer, error) {
	transcripts, err := importer.NewTranscriptFetcher(a.cfg.Import.CacheDir, nil, a.log)
	if err != nil {
		return nil, fmt.Errorf("prepare download cache: %w", err)
	}
	browser := importer.NewBrowserFetcher(importer.BrowserOptions{
		Timeout:   a.cfg.Import.FetchTimeout,
		PerMinute: a.cfg.Import.FetchPerMinute,
		Headless:  true,
		Logger:    a.log,
	})
	return importer.New(importer.Router{Browser: browser, Transcript: transcripts}, a.store, a.log), nil
}

func (a *app) newBackfiller() *importer.Backfiller {
	return importer.NewBackfiller(a.gateway, a.store,
		importer.WithBatchSize(a.cfg.Import.BatchSize),
		importer.WithBackfillModel(a.cfg.LLM.Model),
		importer.WithBackfillLogger(a.log),
	)
}

func (a *app) jobTimeout() time.Duration {
	return a.cfg.LLM.Timeout + jobSlack
}
