package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"local_mythmaker/agents"
	"local_mythmaker/backend"
	"local_mythmaker/config"
	"local_mythmaker/imaging"
	"local_mythmaker/orchestrator"
	"local_mythmaker/research"
	"local_mythmaker/server"
	"local_mythmaker/trace"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to config.json")
	provider := flag.String("provider", "", "backend provider override: gemini|openai|mock")
	location := flag.String("location", "", "location name for a one-shot run")
	imagePath := flag.String("image", "", "path to the image for a one-shot run")
	serve := flag.Bool("serve", false, "start web server")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	logger := buildLogger(*verbose)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *provider != "" {
		cfg.Backend.Provider = *provider
	}

	ctx := context.Background()
	client, search, err := buildBackend(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	opts := cfg.Options()

	// Web server mode
	if *serve {
		srv, err := server.New(client, search, opts, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		listen := cfg.ServerAddr
		if *addr != "" {
			listen = *addr
		}
		if listen == "" {
			listen = ":8080"
		}
		logger.Info("starting web server", zap.String("addr", listen))
		if err := http.ListenAndServe(listen, srv.Routes()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if *location == "" || *imagePath == "" {
		fmt.Fprintln(os.Stderr, "--location and --image are required (or use --serve)")
		os.Exit(1)
	}

	raw, err := os.ReadFile(*imagePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	art, err := imaging.Ingest(raw, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rec := trace.NewRecorder()
	inv, err := agents.NewInvoker(client, search, rec, logger, opts.PerCallTimeout, opts.ToolRoundTrips)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	sched, err := orchestrator.NewScheduler(inv, rec, opts, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	calls := 2 + 2*(opts.MaxIterations+1)
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(calls)*opts.PerCallTimeout)
	defer cancel()

	result, err := sched.Run(runCtx, orchestrator.RunInput{Location: *location, Artifact: art})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		for _, r := range sched.Trace() {
			if r.Err != "" {
				fmt.Fprintf(os.Stderr, "  [%s] %s\n", r.Role, r.Err)
			}
		}
		os.Exit(1)
	}

	fmt.Printf("The Myth of %s\n\n%s\n\n", result.Location, result.Myth.Text)
	fmt.Printf("score %d/10, %s after %d draft(s)\n", result.Critique.Score, result.Loop.Reason, len(result.Loop.Drafts))
	if *verbose {
		for _, r := range result.Trace {
			fmt.Printf("--- %s (%s)\n%s\n", r.Role, r.Duration.Round(time.Millisecond), r.Output)
		}
	}
}

func buildLogger(verbose bool) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return logger
}

// buildBackend resolves the provider and the search tool together: only
// the gemini provider carries a live fact-lookup path.
func buildBackend(ctx context.Context, cfg config.Config) (backend.Client, research.SearchTool, error) {
	settings := cfg.Settings()
	switch settings.Provider {
	case "gemini":
		client, err := backend.NewGemini(ctx, settings)
		if err != nil {
			return nil, nil, err
		}
		search, err := research.NewGeminiSearch(ctx, settings.APIKey, "")
		if err != nil {
			return nil, nil, err
		}
		return client, search, nil
	case "openai":
		// OpenAI-compatible endpoints (including DeepSeek via base_url)
		// run without the search round-trip.
		client, err := backend.NewOpenAI(settings)
		if err != nil {
			return nil, nil, err
		}
		return client, &research.Static{}, nil
	case "mock":
		return &backend.Mock{}, &research.Static{}, nil
	default:
		return nil, nil, fmt.Errorf("backend provider %s not supported", settings.Provider)
	}
}
