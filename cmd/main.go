package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nambo/internal/bot"
	"nambo/internal/completion"
	"nambo/internal/config"
	"nambo/internal/memory"
	"nambo/internal/prompt"
	"nambo/internal/scheduler"
	"nambo/internal/session"
	"nambo/internal/summarizer"
	"nambo/internal/web"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WarnContext(ctx, "Failed to load .env file",
			"error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	client, err := completion.New(cfg.Provider, cfg.APIKey(), cfg.Model)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create completion client",
			"error", err,
			"provider", cfg.Provider)

		return
	}
	log.InfoContext(ctx, "Completion client is initialized",
		"provider", cfg.Provider,
		"model", cfg.Model)

	summ := summarizer.NewCompletionSummarizer(client, cfg.SummaryRetries, log)

	var counter memory.TokenCounter = memory.HeuristicCounter{}
	if cfg.Provider == completion.ProviderOpenAI {
		tiktokenCounter, counterErr := memory.NewTiktokenCounter(cfg.Model)
		if counterErr != nil {
			log.WarnContext(ctx, "Failed to load tiktoken encoding so heuristic counting is used",
				"error", counterErr,
				"model", cfg.Model)
		} else {
			counter = tiktokenCounter
		}
	}

	sessionCfg := session.Config{
		Persona:     prompt.Persona,
		TokenBudget: cfg.TokenBudget,
		Counter:     counter,
		Options:     cfg.CompletionOptions(),
		Timeout:     cfg.CompletionTimeout,
	}
	registry := session.NewRegistry(func() *session.Controller {
		return session.NewController(client, summ, sessionCfg, log)
	})

	sched := scheduler.New(ctx, registry, cfg.SessionSweepSpec, cfg.SessionIdleTTL, log)
	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", sched.Spec())

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", sched.Spec(),
		"idleTTL", cfg.SessionIdleTTL.String())

	done := make(chan struct{}, 2)
	running := 0

	if cfg.Token != "" {
		botInst, botErr := bot.New(cfg.Token, registry, cfg.AllowedUsers, log)
		if botErr != nil {
			log.ErrorContext(ctx, "Failed to initialize bot",
				"error", botErr,
				"allowedUsersCount", len(cfg.AllowedUsers))

			return
		}

		running++
		go func() {
			defer func() { done <- struct{}{} }()
			botInst.Start(ctx)
		}()
		log.InfoContext(ctx, "Bot is started",
			"allowedUsersCount", len(cfg.AllowedUsers))
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(registry, log)

		running++
		go func() {
			defer func() { done <- struct{}{} }()
			if serveErr := srv.ListenAndServe(ctx, cfg.HTTPAddr); serveErr != nil {
				log.ErrorContext(ctx, "Web server stopped",
					"error", serveErr,
					"addr", cfg.HTTPAddr)
				cancel()
			}
		}()
		log.InfoContext(ctx, "Web server is started",
			"addr", cfg.HTTPAddr)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case <-ctx.Done():
	}
	cancel()

	for range running {
		<-done
	}

	log.InfoContext(ctx, "Exiting...",
		"sessions", registry.Len(),
		"uptimeSeconds", time.Since(start).Seconds())
}
