package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rack-io/rack/internal/agent"
	apiPkg "github.com/rack-io/rack/internal/api"
	"github.com/rack-io/rack/internal/audit"
	"github.com/rack-io/rack/internal/config"
	"github.com/rack-io/rack/internal/connector"
	slack "github.com/rack-io/rack/internal/connector/slack"
	"github.com/rack-io/rack/internal/connector/telegram"
	"github.com/rack-io/rack/internal/connector/webhook"
	"github.com/rack-io/rack/internal/gate"
	"github.com/rack-io/rack/internal/policy"
	"github.com/rack-io/rack/internal/provider"
	"github.com/rack-io/rack/internal/scheduler"
	"github.com/rack-io/rack/internal/ticket"
	"github.com/rack-io/rack/internal/tool"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before reading RACK_* variables")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load env file", "path", *envFile, "error", err)
	}

	// Load config (2 modes: file, env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
		if err == nil {
			err = cfg.Validate()
		}
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("rackd starting", "provider", cfg.Provider.Type, "model", cfg.Provider.Model)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("rackd failed", "error", err)
		os.Exit(1)
	}
	logger.Info("rackd stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// 1. Seed data + ticket store
	seed, err := config.LoadSeed(ctx, cfg.Session.SeedFile, cfg.Session.SeedToken)
	if err != nil {
		return err
	}
	store, err := ticket.NewSQLiteStore(ticket.MemoryDSN)
	if err != nil {
		return err
	}
	defer store.Close()
	for i := range seed.Tickets {
		t := seed.Tickets[i]
		if err := store.Save(ctx, &t); err != nil {
			return fmt.Errorf("seed ticket %s: %w", t.ID, err)
		}
	}
	logger.Info("session seeded", "tickets", len(seed.Tickets), "guardrails", len(seed.Guardrails))

	// 2. Dispatch gate
	gateLogger := logger.With("component", "gate")
	var gk *gate.Gate
	if cfg.Gate.PolicyFile != "" {
		gk, err = gate.NewFromFile(cfg.Gate.PolicyFile, gateLogger)
	} else {
		gk, err = gate.New(gateLogger)
	}
	if err != nil {
		return err
	}
	logger.Info("dispatch policy loaded", "version", gk.Version())

	// 3. Supervisor pagers
	pagers, err := newPagers(cfg.Pagers, logger)
	if err != nil {
		return err
	}

	// 4. Audit trail
	trail := audit.New(cfg.Audit.Size)
	if cfg.Audit.File != "" {
		f, err := os.OpenFile(cfg.Audit.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open audit file: %w", err)
		}
		defer f.Close()
		trail.WithSink(f, logger.With("component", "audit"))
	}

	// 5. Tools, dispatcher, provider, agent
	tools := tool.NewRegistry()
	tool.RegisterSupportTools(tools, store, pagers, logger.With("component", "tools"))

	dispatcher := &tool.Dispatcher{
		Tools:  tools,
		Gate:   gk,
		Audit:  trail,
		Logger: logger.With("component", "dispatcher"),
	}

	prov := newProvider(cfg.Provider)
	logger.Info("provider initialized", "type", cfg.Provider.Type, "model", cfg.Provider.Model)

	ag, err := agent.New(agent.Options{
		SystemPrompt: seed.SystemPrompt,
		Guardrails:   seed.Guardrails,
		Engine:       policy.NewKeyword(),
		Dispatcher:   dispatcher,
		Provider:     prov,
		Store:        store,
		Audit:        trail,
		Logger:       logger.With("component", "agent"),
		ModelTimeout: cfg.Session.ModelTimeout.Duration,
	})
	if err != nil {
		return err
	}

	// 6. HITL re-page job
	sched := scheduler.New(logger.With("component", "scheduler"))
	if len(pagers) > 0 {
		repager := &scheduler.Repager{
			Source: ag,
			Pager:  pagers,
			After:  cfg.HITL.RepageAfter.Duration,
			Logger: logger.With("component", "repager"),
		}
		if err := sched.AddJob(scheduler.RepageJobName, cfg.HITL.RepageSchedule, repager.Run); err != nil {
			return err
		}
	}

	// 7. API server
	apiSrv := apiPkg.NewServer(ag, store, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), trail)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(safeGo(logger, "api-server", func() error { return apiSrv.Start(gctx) }))
	g.Go(safeGo(logger, "scheduler", func() error {
		sched.Start(gctx)
		return nil
	}))
	if cfg.Gate.HotReload {
		g.Go(safeGo(logger, "policy-watcher", func() error { return gk.Watch(gctx) }))
	}
	return g.Wait()
}

func newPagers(cfg config.PagerConfig, logger *slog.Logger) (connector.Multi, error) {
	var pagers connector.Multi
	if cfg.Slack != nil {
		p, err := slack.New(slack.Config{
			BotToken: cfg.Slack.BotToken,
			Channel:  cfg.Slack.Channel,
		}, logger.With("pager", "slack"))
		if err != nil {
			return nil, err
		}
		pagers = append(pagers, p)
	}
	if cfg.Telegram != nil {
		p, err := telegram.New(telegram.Config{
			Token:   cfg.Telegram.Token,
			ChatIDs: cfg.Telegram.ChatIDs,
		}, logger.With("pager", "telegram"))
		if err != nil {
			return nil, err
		}
		pagers = append(pagers, p)
	}
	if cfg.Webhook != nil {
		p, err := webhook.New(webhook.Config{
			URL:         cfg.Webhook.URL,
			Secret:      cfg.Webhook.Secret,
			BearerToken: cfg.Webhook.BearerToken,
		}, logger.With("pager", "webhook"))
		if err != nil {
			return nil, err
		}
		pagers = append(pagers, p)
	}
	for _, p := range pagers {
		logger.Info("pager enabled", "pager", p.Name())
	}
	return pagers, nil
}

func newProvider(cfg config.ProviderConfig) provider.Provider {
	switch cfg.Type {
	case config.ProviderAnthropic:
		opts := []provider.AnthropicOption{provider.WithAnthropicModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, provider.WithAnthropicBaseURL(cfg.BaseURL))
		}
		return provider.NewAnthropic(cfg.APIKey, opts...)
	case config.ProviderOpenAI:
		opts := []provider.OpenAIOption{provider.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, provider.WithBaseURL(cfg.BaseURL))
		}
		return provider.NewOpenAI(cfg.APIKey, opts...)
	default:
		opts := []provider.GeminiOption{provider.WithGeminiModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, provider.WithGeminiBaseURL(cfg.BaseURL))
		}
		return provider.NewGemini(cfg.APIKey, opts...)
	}
}

// safeGo wraps fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
				err = fmt.Errorf("%s panicked: %v", name, r)
			}
		}()
		return fn()
	}
}
