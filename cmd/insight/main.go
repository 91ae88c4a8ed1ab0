package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"insight/internal/answer"
	"insight/internal/chart"
	"insight/internal/config"
	"insight/internal/explore"
	"insight/internal/llm"
	"insight/internal/noql"
	"insight/internal/schema"
	"insight/internal/server"
	"insight/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dataset    string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "insight",
	Short: "Insight - conversational CRM data analyst",
	Long: `Insight answers free-text questions about CRM data.

It turns questions into NoQL queries against the reporting API, explores
the data before answering, and produces grounded markdown answers with
embedded chart references. Conversations persist across sessions.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Manage stored conversations",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE:  runConfigInit,
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored conversations",
	RunE:  runConversationsList,
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a conversation and its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsDelete,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "insight.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&dataset, "database", "d", "", "Target database name (default from config)")

	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the wired pipeline for a command invocation.
type app struct {
	cfg          *config.Config
	store        *store.Store
	hints        *noql.Hints
	catalog      schema.Catalog
	orchestrator *answer.Orchestrator
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewFromConfig(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	catalog := schema.Default()
	exec := noql.NewExecutor(cfg.Reporting.BaseURL, cfg.Reporting.OrgID, cfg.Reporting.APIKey, cfg.ReportingTimeout(), logger)
	hints := noql.NewHints(exec, catalog, noql.NewTTLCache(cfg.HintCacheTTL()), logger)
	generator := noql.NewGenerator(client, catalog, hints, logger)
	engine := explore.NewEngine(client, exec, hints, st, catalog, cfg.Explore.MaxProbes, cfg.Explore.ProbeRowLimit, logger)
	critic := chart.NewCritic(client, logger)
	pipeline := chart.NewPipeline(generator, exec, critic, logger)
	orch := answer.NewOrchestrator(client, generator, exec, st, engine, pipeline, hints, catalog, logger)

	return &app{
		cfg:          cfg,
		store:        st,
		hints:        hints,
		catalog:      catalog,
		orchestrator: orch,
	}, nil
}

func (a *app) targetDataset() string {
	if dataset != "" {
		return dataset
	}
	return a.cfg.Reporting.DefaultDataset
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.cfg, a.orchestrator, a.store, a.hints, a.catalog, logger)
	return srv.ListenAndServe(ctx)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.Join(args, " ")
	resp, err := a.orchestrator.Answer(cmd.Context(), question, a.targetDataset(), "")
	if err != nil {
		return err
	}

	out := resp.Markdown
	renderer, rerr := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if rerr == nil {
		if rendered, rerr := renderer.Render(resp.Markdown); rerr == nil {
			out = rendered
		}
	}
	fmt.Println(out)

	for _, c := range resp.Charts {
		fmt.Printf("[%s] %s (%s, %d points)\n", c.ID, c.Title, c.ChartType, len(c.Data))
	}
	if resp.ConversationID != "" {
		fmt.Printf("\nconversation: %s\n", resp.ConversationID)
	}
	return nil
}

func runConversationsList(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	conversations, err := a.store.ListConversations(0)
	if err != nil {
		return err
	}
	if len(conversations) == 0 {
		fmt.Println("no conversations")
		return nil
	}
	for _, c := range conversations {
		fmt.Printf("%s  %-40q  %s  updated %s\n", c.ID, c.Title, c.Dataset, c.UpdatedAt)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists at %s", configPath)
	}
	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}
	fmt.Println("wrote", configPath)
	return nil
}

func runConversationsDelete(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.DeleteConversation(args[0]); err != nil {
		return err
	}
	fmt.Println("deleted", args[0])
	return nil
}
