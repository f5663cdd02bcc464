package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/moolen/inquest/internal/apiserver"
	"github.com/moolen/inquest/internal/config"
	"github.com/moolen/inquest/internal/engine"
	"github.com/moolen/inquest/internal/kb"
	"github.com/moolen/inquest/internal/logging"
	"github.com/moolen/inquest/internal/provider/catalog"
	"github.com/moolen/inquest/internal/reasoning"
	"github.com/moolen/inquest/internal/tracing"
)

var (
	configPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the investigation server",
	Long: `Start the HTTP server that receives alert webhooks, runs
investigations against the configured knowledge base, and serves the
resulting reports.`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "/etc/inquest/config.yaml",
		"Path to the YAML configuration file")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	HandleError(err, "Configuration error")

	// The config file sets the default log level; explicit --log-level flags
	// take priority.
	levelFlags := logLevelFlags
	if !cmd.Flags().Changed("log-level") {
		levelFlags = []string{cfg.LogLevel}
	}
	HandleError(setupLog(levelFlags), "Failed to setup logging")
	logger := logging.GetLogger("serve")

	logger.Info("Starting Inquest v%s", Version)
	logger.Debug("Configuration loaded: APIPort=%d KnowledgeBase=%s", cfg.APIPort, cfg.KnowledgeBasePath)

	tracingProvider, err := tracing.NewProvider(tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.TracingEndpoint,
		TLSCAPath:   cfg.TracingTLSCAPath,
		TLSInsecure: cfg.TracingTLSInsecure,
		Version:     Version,
	})
	if err != nil {
		logger.Warn("Failed to initialize tracing (continuing without tracing): %v", err)
		tracingProvider = nil
	}

	knowledgeBase, err := kb.Load(cfg.KnowledgeBasePath)
	HandleError(err, "Failed to load knowledge base")
	holder := kb.NewHolder(knowledgeBase)
	logger.Info("Knowledge base loaded: %d subjects, %d providers",
		len(knowledgeBase.Subjects), len(knowledgeBase.Providers))

	// Knowledge base edits take effect without a restart. A failed reload
	// keeps the previous knowledge base in place.
	watcher, err := kb.NewWatcher(kb.WatcherConfig{FilePath: cfg.KnowledgeBasePath},
		func(reloaded *kb.KnowledgeBase) error {
			holder.Swap(reloaded)
			return nil
		})
	HandleError(err, "Failed to create knowledge base watcher")

	reasoner, err := buildReasoner(cfg.Reasoning)
	HandleError(err, "Failed to create reasoner")

	table, err := catalog.DefaultTable()
	HandleError(err, "Failed to build provider catalog")

	eng := engine.New(table, reasoner, engine.Config{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		MaxIterations:       cfg.MaxIterations,
		ProviderTimeout:     time.Duration(cfg.ProviderTimeoutSeconds) * time.Second,
		CollectParallelism:  cfg.CollectParallelism,
	})

	store, err := apiserver.NewReportStore(cfg.ReportCacheSize)
	HandleError(err, "Failed to create report store")

	server := apiserver.New(cfg.APIPort, eng, holder, store)

	ctx, cancel := context.WithCancel(context.Background())
	HandleError(watcher.Start(ctx), "Failed to start knowledge base watcher")
	HandleError(server.Start(ctx), "Failed to start API server")

	logger.Info("Application started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received, gracefully shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	watcher.Stop()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}
	if tracingProvider != nil {
		if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down tracing: %v", err)
		}
	}

	logger.Info("Shutdown complete")
}

// buildReasoner constructs the reasoning backend selected in the config.
func buildReasoner(cfg config.ReasoningConfig) (reasoning.Reasoner, error) {
	switch cfg.Backend {
	case "stub":
		return reasoning.NewStubReasoner(), nil
	default:
		return reasoning.NewAnthropicReasoner(reasoning.Config{
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})
	}
}
