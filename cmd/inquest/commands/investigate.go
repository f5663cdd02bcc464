package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/moolen/inquest/internal/config"
	"github.com/moolen/inquest/internal/engine"
	"github.com/moolen/inquest/internal/kb"
	"github.com/moolen/inquest/internal/logging"
	"github.com/moolen/inquest/internal/provider/catalog"
)

var (
	investigateConfigPath string
	investigateTimeout    time.Duration
)

var investigateCmd = &cobra.Command{
	Use:   "investigate <payload.json>",
	Short: "Run a single investigation from a webhook payload file",
	Long: `Run one investigation for the alert payload in the given JSON file
and print the resulting report to stdout. Useful for testing knowledge base
changes and provider bindings without a running server.`,
	Args: cobra.ExactArgs(1),
	Run:  runInvestigate,
}

func init() {
	investigateCmd.Flags().StringVar(&investigateConfigPath, "config", "/etc/inquest/config.yaml",
		"Path to the YAML configuration file")
	investigateCmd.Flags().DurationVar(&investigateTimeout, "timeout", 10*time.Minute,
		"Overall timeout for the investigation run")
}

func runInvestigate(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(investigateConfigPath)
	HandleError(err, "Configuration error")

	levelFlags := logLevelFlags
	if !cmd.Flags().Changed("log-level") {
		levelFlags = []string{cfg.LogLevel}
	}
	HandleError(setupLog(levelFlags), "Failed to setup logging")
	logger := logging.GetLogger("investigate")

	raw, err := os.ReadFile(args[0])
	HandleError(err, "Failed to read payload file")

	var payload map[string]any
	HandleError(json.Unmarshal(raw, &payload), "Failed to parse payload file")

	knowledgeBase, err := kb.Load(cfg.KnowledgeBasePath)
	HandleError(err, "Failed to load knowledge base")

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

	ctx, cancel := context.WithTimeout(context.Background(), investigateTimeout)
	defer cancel()

	logger.Info("Running investigation for payload %s", args[0])
	report, err := eng.Investigate(ctx, knowledgeBase, payload)
	HandleError(err, "Investigation failed")

	out, err := json.MarshalIndent(report, "", "  ")
	HandleError(err, "Failed to encode report")
	fmt.Println(string(out))
}
