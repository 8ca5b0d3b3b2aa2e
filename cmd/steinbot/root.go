package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kliewerdaniel/steinbot/internal/app"
	"github.com/kliewerdaniel/steinbot/internal/config"
	"github.com/kliewerdaniel/steinbot/internal/logging"
)

// GlobalFlags holds the persistent flags of every command.
type GlobalFlags struct {
	ConfigFile string
	Domain     string
	Verbose    bool
}

var (
	globalFlags = &GlobalFlags{}
	cfg         *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "steinbot",
	Short: "Graph retrieval and persona-tuned answering over a document collection",
	Long: `steinbot builds a knowledge graph from a document collection, retrieves
context from it with vector search plus graph expansion, and answers
questions in a persona whose thresholds adapt to the grade of each answer.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command, cancelling on SIGINT or SIGTERM.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	path := globalFlags.ConfigFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/config.toml"
	}

	c, err := config.LoadOrDefault(path)
	if err != nil {
		return err
	}
	c.ApplyEnv()
	if globalFlags.Domain != "" {
		c.Retrieval.Domain = globalFlags.Domain
	}
	if globalFlags.Verbose {
		c.Log.Level = "debug"
	}
	logging.Setup(c.Log)

	cfg = c
	return cfg.Validate()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigFile, "config", "", "Path to config file (default: $CONFIG_PATH or config/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Domain, "domain", "", "Collection domain (documents|reddit|papers)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(relateCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(personaCmd)
	rootCmd.AddCommand(evaluateCmd)
}

// withApp builds the full component graph for one command and closes it
// afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			log.Warn("close failed", "err", err)
		}
	}()
	return fn(ctx, a)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
