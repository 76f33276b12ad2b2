package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sagehive/sagehive/pkg/config"
	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/llm"
	"github.com/sagehive/sagehive/pkg/observability"
	"github.com/sagehive/sagehive/pkg/orchestrator"
	"github.com/sagehive/sagehive/pkg/retrieval"
	"github.com/sagehive/sagehive/pkg/subagent"
	"github.com/sagehive/sagehive/pkg/synthesis"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"

	// Global telemetry instance
	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	tracer    trace.Tracer
)

func main() {
	var (
		configPath = flag.String("config", "configs/default.yaml", "Path to configuration file")
		version    = flag.Bool("version", false, "Show version information")
		query      = flag.String("query", "", "Research query")
		focus      = flag.String("focus", "", "Comma-separated focus area override (e.g. technical,comparative)")
	)
	flag.Parse()

	if *version {
		fmt.Printf("SageHive Research Orchestrator\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg := config.LoadOrDefault(*configPath)

	ctx := context.Background()
	if err := initObservability(ctx, cfg); err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}
	defer shutdownObservability(ctx)

	ctx, span := tracer.Start(ctx, "main",
		trace.WithAttributes(
			attribute.String("version", Version),
		),
	)
	defer span.End()

	log.Printf("Starting SageHive v%s (built: %s)", Version, BuildTime)
	log.Printf("Configuration loaded from: %s", *configPath)

	if err := run(ctx, cfg, *query, *focus); err != nil {
		span.RecordError(err)
		log.Fatalf("Application failed: %v", err)
	}
}

func initObservability(ctx context.Context, cfg *config.Config) error {
	telConfig := &observability.TelemetryConfig{
		ServiceName:    "sagehive",
		ServiceVersion: Version,
		Environment:    getEnvironment(),
		OTLPEndpoint:   cfg.Observability.Tracing.Endpoint,
		PrometheusPort: cfg.Observability.Metrics.Port,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
		EnableTracing:  cfg.Observability.Tracing.Enabled,
		EnableMetrics:  cfg.Observability.Metrics.Enabled,
	}

	var err error
	telemetry, err = observability.NewTelemetry(telConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	tracer = telemetry.Tracer()

	metrics, err = observability.NewMetrics(telemetry.Meter())
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	log.Println("Observability initialized successfully")
	return nil
}

func shutdownObservability(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}
}

func run(ctx context.Context, cfg *config.Config, query, focus string) error {
	ctx, span := tracer.Start(ctx, "initialize_components")

	logger := observability.NewStructuredLogger("sagehive")

	ollamaClient := llm.NewOllamaClient(
		cfg.Ollama.BaseURL,
		cfg.Ollama.Model,
		&llm.OllamaOptions{
			Temperature: cfg.Ollama.Temperature,
			MaxTokens:   cfg.Ollama.MaxTokens,
			TopP:        cfg.Ollama.TopP,
			TopK:        cfg.Ollama.TopK,
			Timeout:     cfg.TaskTimeout(),
		},
	)

	healthCtx, healthSpan := tracer.Start(ctx, "ollama_health_check")
	if err := ollamaClient.CheckHealth(healthCtx); err != nil {
		healthSpan.RecordError(err)
		healthSpan.End()
		span.End()
		return fmt.Errorf("ollama health check failed: %w", err)
	}
	healthSpan.End()
	log.Println("Ollama connection established")

	budget := llm.NewTokenBudget(cfg.Ollama.TokenBudget)
	completer, err := llm.NewInstrumentedCompleter(ollamaClient, telemetry, metrics, budget, cfg.Ollama.Model)
	if err != nil {
		span.End()
		return fmt.Errorf("failed to build completer: %w", err)
	}

	retriever := buildRetriever(cfg)

	specialist := subagent.NewSpecialist(completer, retriever, logger, cfg.Retrieval.MaxCandidates)
	executor := subagent.NewExecutor(specialist, cfg.Specialist.MaxConcurrent, logger, subagent.WithMetrics(metrics))

	orch, err := orchestrator.New(orchestrator.Options{
		Completer:      completer,
		Retriever:      retriever,
		Store:          orchestrator.NewJobStore(cfg.Storage.MaxJobs),
		Executor:       executor,
		Synthesis:      synthesis.NewEngine(completer, logger, synthesis.WithMetrics(metrics)),
		Logger:         logger,
		Metrics:        metrics,
		Telemetry:      telemetry,
		TaskTimeout:    cfg.TaskTimeout(),
		JobTimeout:     cfg.JobTimeout(),
		MaxReflections: cfg.Orchestrator.MaxReflections,
		MaxCandidates:  cfg.Retrieval.MaxCandidates,
	})
	if err != nil {
		span.End()
		return fmt.Errorf("failed to build orchestrator: %w", err)
	}

	span.End()

	return runQuery(ctx, cfg, orch, budget, query, focus)
}

func buildRetriever(cfg *config.Config) domain.Retriever {
	opts := []retrieval.ClientOption{
		retrieval.WithMetrics(metrics),
		retrieval.WithTelemetry(telemetry),
		retrieval.WithMaxRetries(cfg.Retrieval.MaxRetries),
	}
	if d, err := time.ParseDuration(cfg.Retrieval.Timeout); err == nil {
		opts = append(opts, retrieval.WithTimeout(d))
	}
	if cfg.Retrieval.BreakerConfig.Enabled {
		openDuration, err := time.ParseDuration(cfg.Retrieval.BreakerConfig.OpenDuration)
		if err != nil {
			openDuration = 30 * time.Second
		}
		breaker := retrieval.NewBreaker(
			cfg.Retrieval.BreakerConfig.FailureThreshold,
			cfg.Retrieval.BreakerConfig.SuccessThreshold,
			openDuration,
		)
		opts = append(opts, retrieval.WithBreaker(breaker))
	}
	return retrieval.NewClient(cfg.Retrieval.BaseURL, opts...)
}

func runQuery(ctx context.Context, cfg *config.Config, orch *orchestrator.Orchestrator, budget *llm.TokenBudget, query, focus string) error {
	// If no query provided, read from stdin
	if query == "" {
		fmt.Print("Enter your research query: ")
		_, err := fmt.Scanln(&query)
		if err != nil {
			return fmt.Errorf("failed to read query from stdin: %w", err)
		}
	}

	if query == "" {
		return fmt.Errorf("no research query provided")
	}

	submitOpts := domain.SubmitOptions{}
	if focus != "" {
		areas, err := parseFocusAreas(focus)
		if err != nil {
			return err
		}
		submitOpts.FocusAreas = areas
	}

	ctx, span := tracer.Start(ctx, "research_execution",
		trace.WithAttributes(
			attribute.String("request.query", query),
		),
	)
	defer span.End()

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	startTime := time.Now()
	log.Printf("Starting research for: %s", query)

	jobID, err := orch.Submit(ctx, query, submitOpts)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to submit research job: %w", err)
	}
	span.SetAttributes(attribute.String("request.id", jobID))

	job, err := orch.Await(ctx, jobID, cfg.JobTimeout()+30*time.Second)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("research failed: %w", err)
	}
	if job.Status == domain.JobFailed {
		return fmt.Errorf("research failed: %s", job.Error)
	}

	fmt.Println("\n=== Research Report ===")
	fmt.Printf("Job ID: %s\n", job.ID)
	fmt.Printf("Complexity: %s (%d specialists)\n", job.Complexity, len(job.Tasks))
	fmt.Printf("Confidence: %.2f\n", job.ConfidenceScore)
	fmt.Printf("\n%s\n", job.FinalReport)

	if sources := job.Sources(); len(sources) > 0 {
		fmt.Println("\nSources:")
		for i, s := range sources {
			fmt.Printf("%d. %s (score: %.2f)\n", i+1, s.SourceID, s.Score)
		}
	}

	consumed, _ := budget.Usage()
	fmt.Printf("\nTokens Used: %d\n", consumed)
	fmt.Printf("Duration: %s\n", time.Since(startTime))

	return nil
}

func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}

func parseFocusAreas(s string) ([]domain.FocusArea, error) {
	var areas []domain.FocusArea
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		area := domain.FocusArea(part)
		if !area.Valid() {
			return nil, fmt.Errorf("unknown focus area: %s", part)
		}
		areas = append(areas, area)
	}
	return areas, nil
}
