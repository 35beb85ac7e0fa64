package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/sqlsherpa/internal/api/handlers"
	"github.com/cloo-solutions/sqlsherpa/internal/api/middleware"
	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/cloo-solutions/sqlsherpa/internal/jobs"
	llm "github.com/cloo-solutions/sqlsherpa/internal/openai"
	"github.com/cloo-solutions/sqlsherpa/internal/server"
	"github.com/cloo-solutions/sqlsherpa/internal/service"
	"github.com/cloo-solutions/sqlsherpa/internal/telemetry"
	"github.com/cloo-solutions/sqlsherpa/internal/websearch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat API server",
		Long:  "Start the SQLSherpa chat API server and the background embedding worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-worker", false, "Do not run the embedding worker in this process")
	addMigrationFlags(cmd)

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg, logger := rt.cfg, rt.logger

	if cfg.SentryDSN != "" {
		// 10% sampling in production, everything in development
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		}, logger)
		if err != nil {
			logger.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}

	branding, err := cfg.LoadBranding()
	if err != nil {
		return err
	}

	chatSvc, err := buildChatService(rt, branding)
	if err != nil {
		return err
	}

	router := server.NewRouter(server.RouterConfig{
		ChatHandler:     handlers.NewChatHandler(chatSvc, cfg.RequestTimeout, logger),
		BrandingHandler: handlers.NewBrandingHandler(branding),
		RateLimiter:     middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Logger:          logger,
		TrustProxy:      cfg.TrustProxy,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if !noWorker {
		processor := jobs.NewEmbeddingWorker(rt.chunks, rt.embedder, cfg.IndexName, cfg.Namespace, logger)
		worker := jobs.NewWorker(processor, cfg.EmbedInterval, logger)
		g.Go(func() error {
			worker.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server exited")
	return nil
}

func buildChatService(rt *runtime, branding domain.Branding) (*service.ChatService, error) {
	cfg, logger := rt.cfg, rt.logger

	policy, err := service.ParseFailurePolicy(cfg.ModerationFailurePolicy)
	if err != nil {
		return nil, err
	}
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	moderation := service.NewModerationService(llm.NewModerator(rt.moderation, cfg.ModerationModel), policy, logger)
	retrieval := rt.retrieval()
	prompts := service.NewPromptAssembler(branding, time.Now, location)

	var webTool service.Tool
	if cfg.HasWebSearch() {
		webTool = service.NewWebSearchTool(websearch.NewClient(websearch.Config{
			APIKey:     cfg.WebSearchAPIKey,
			BaseURL:    cfg.WebSearchURL,
			NumResults: cfg.WebSearchResults,
		}))
	} else {
		logger.Warn("web search not configured, webSearch tool disabled")
	}
	tools := service.NewToolRegistry(service.NewVectorSearchTool(retrieval), webTool)

	agent := service.NewAgent(llm.NewChatAdapter(rt.api), tools, service.AgentConfig{
		Model:    cfg.Model,
		MaxSteps: cfg.MaxSteps,
	}, logger)

	if !service.IsReasoningModel(cfg.Model) {
		logger.Info("model does not accept reasoning options", zap.String("model", cfg.Model))
	}

	return service.NewChatService(moderation, retrieval, prompts, agent, logger), nil
}
