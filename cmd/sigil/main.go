package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sigil/internal/agency"
	"sigil/internal/config"
	"sigil/internal/embedding"
	"sigil/internal/index"
	"sigil/internal/logging"
	"sigil/internal/model"
	"sigil/internal/store"
	"sigil/internal/syncer"
	"sigil/internal/token"
)

var (
	// Global flags
	verbose   bool
	workspace string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sigil",
	Short: "sigil - symbol-grounded context engine",
	Long: `sigil maintains a knowledge graph of typed symbols, assembles
token-budgeted prompts from it, and interprets the command directives the
model embeds in its replies.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(workspace); err != nil {
			return fmt.Errorf("failed to initialize file logging: %w", err)
		}

		cfg, err = config.LoadFromWorkspace(workspace)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logging.Configure(cfg.Logging.DebugMode, cfg.Logging.Level, cfg.Logging.Categories)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// services is the wired object graph shared by the subcommands.
type services struct {
	store *store.SymbolStore
	index *index.Index
}

func openServices() (*services, error) {
	st, err := store.NewSymbolStore(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		st.Close()
		return nil, err
	}

	ix := index.New(engine, st)
	st.SetIndexer(ix)

	if cfg.Store.AgentCatalog != "" {
		if n, err := st.LoadAgents(cfg.Store.AgentCatalog); err != nil {
			logger.Warn("agent catalog not loaded", zap.Error(err))
		} else {
			logger.Info("agent catalog loaded", zap.Int("personas", n))
		}
	}
	if cfg.Store.KitCatalog != "" {
		if n, err := st.LoadKits(cfg.Store.KitCatalog); err != nil {
			logger.Warn("kit catalog not loaded", zap.Error(err))
		} else {
			logger.Info("kit catalog loaded", zap.Int("kits", n))
		}
	}

	return &services{store: st, index: ix}, nil
}

func (s *services) close() {
	if err := s.store.Close(); err != nil {
		logger.Warn("store close failed", zap.Error(err))
	}
}

func newInvoker() (model.Invoker, error) {
	timeout, err := time.ParseDuration(cfg.Model.Timeout)
	if err != nil {
		timeout = 300 * time.Second
	}
	return model.NewInvoker(model.Config{
		Provider:        cfg.Model.Provider,
		Endpoint:        cfg.Model.Endpoint,
		Model:           cfg.Model.Model,
		GenAIAPIKey:     cfg.Model.GenAIAPIKey,
		MaxOutputTokens: cfg.Model.MaxOutputTokens,
		Timeout:         timeout,
	})
}

func newEncoder() token.Encoder {
	if cfg.Context.Encoder == "heuristic" {
		return token.NewHeuristicEncoder()
	}
	return token.NewWordEncoder()
}

func agencyConfig() (agency.Config, error) {
	interval, err := time.ParseDuration(cfg.Agency.LoopInterval)
	if err != nil {
		return agency.Config{}, fmt.Errorf("invalid loop_interval: %w", err)
	}
	return agency.Config{
		SessionID:     cfg.Agency.SessionID,
		SymbolLimit:   cfg.Agency.SymbolLimit,
		PromptDir:     cfg.Agency.PromptDir,
		SeedQuery:     cfg.Agency.SeedQuery,
		Interval:      interval,
		MaxTokens:     cfg.Context.MaxTokens,
		SystemReserve: cfg.Context.SystemReserve,
	}, nil
}

var loadCmd = &cobra.Command{
	Use:   "load [catalog.json]",
	Short: "Bulk-load a symbol catalog into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.close()

		n, err := svc.store.LoadSymbolCatalog(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %d symbols from %s\n", n, args[0])
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the retrieval index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.close()

		k, _ := cmd.Flags().GetInt("k")
		matches, err := svc.index.Search(cmd.Context(), strings.Join(args, " "), k)
		if err != nil {
			return err
		}
		for _, m := range matches {
			sym, err := svc.store.Get(m.ID)
			name := ""
			if err == nil && sym != nil {
				name = sym.Name
			}
			fmt.Printf("%8.4f  %-24s %s\n", m.Distance, m.ID, name)
		}
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Run one phased query against the model",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.close()

		invoker, err := newInvoker()
		if err != nil {
			return err
		}
		acfg, err := agencyConfig()
		if err != nil {
			return err
		}

		runner, err := agency.NewQueryRunner(acfg, svc.store, svc.index, invoker, newEncoder())
		if err != nil {
			return err
		}

		session, _ := cmd.Flags().GetString("session")
		k, _ := cmd.Flags().GetInt("k")
		result, err := runner.Run(cmd.Context(), session, strings.Join(args, " "), k)
		if err != nil {
			return err
		}

		fmt.Println(result.Reply)
		if verbose {
			fmt.Printf("\n[symbols: %s]\n", strings.Join(result.SymbolsUsed, ", "))
			for _, res := range result.Results {
				fmt.Printf("[directive] %s\n", res.Summary())
			}
		}
		return nil
	},
}

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Run the self-directed agency loop until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.close()

		invoker, err := newInvoker()
		if err != nil {
			return err
		}
		acfg, err := agencyConfig()
		if err != nil {
			return err
		}

		loop, err := agency.NewLoop(acfg, svc.store, svc.index, invoker, newEncoder())
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		var watcher *store.CatalogWatcher
		if cfg.Store.WatchCatalogs {
			watcher, err = store.NewCatalogWatcher(svc.store, cfg.Store.AgentCatalog, cfg.Store.KitCatalog)
			if err != nil {
				return err
			}
			if err := watcher.Start(ctx); err != nil {
				return err
			}
			defer watcher.Stop()
		}

		logger.Info("agency loop starting",
			zap.String("session", acfg.SessionID),
			zap.Duration("interval", acfg.Interval))
		err = loop.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull symbols from the external symbol store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Sync.BaseURL == "" {
			return fmt.Errorf("sync.base_url is not configured")
		}

		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.close()

		timeout, err := time.ParseDuration(cfg.Sync.Timeout)
		if err != nil {
			timeout = 10 * time.Second
		}
		client := syncer.NewClient(cfg.Sync.BaseURL, timeout)

		domain, _ := cmd.Flags().GetString("domain")
		tag, _ := cmd.Flags().GetString("tag")
		result, err := syncer.Sync(cmd.Context(), client, svc.store, domain, tag, cfg.Sync.PageLimit)
		if err != nil {
			return err
		}

		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List registered symbol domains",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.close()

		domains, err := svc.store.Domains()
		if err != nil {
			return err
		}
		for _, d := range domains {
			fmt.Println(d)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.close()

		stats, err := svc.store.Stats()
		if err != nil {
			return err
		}
		for _, table := range []string{"symbols", "domains", "session_history"} {
			fmt.Printf("%-16s %d\n", table, stats[table])
		}
		return nil
	},
}

var clearSessionCmd = &cobra.Command{
	Use:   "clear-session [session-id]",
	Short: "Delete a session transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.close()

		n, err := svc.store.ClearSession(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %d turns from session %s\n", n, args[0])
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace directory")

	searchCmd.Flags().Int("k", 10, "number of results")
	askCmd.Flags().Int("k", 5, "number of symbols to retrieve")
	askCmd.Flags().String("session", "chat", "session id for history")
	syncCmd.Flags().String("domain", "", "restrict sync to one domain")
	syncCmd.Flags().String("tag", "", "restrict sync to one tag")

	rootCmd.AddCommand(loadCmd, searchCmd, askCmd, loopCmd, syncCmd, domainsCmd, statsCmd, clearSessionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
