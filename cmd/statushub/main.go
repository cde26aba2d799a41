package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/statushub"
	"github.com/loykin/statushub/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands
type GlobalFlags struct {
	ConfigPath string
}

// QueryFlags holds flags for the read commands (history, current, objects)
type QueryFlags struct {
	Object     string
	Kind       string
	Status     string
	After      int64
	Limit      int
	APIUrl     string
	APITimeout time.Duration
}

// ServeFlags holds flags for the serve command
type ServeFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	queryFlags := &QueryFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createHistoryCommand(queryFlags),
		createCurrentCommand(queryFlags),
		createObjectsCommand(queryFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "statushub",
		Short: "Status history collection and query service",
		Long: `Statushub collects status transitions reported by pipeline sources
and sinks, keeps a durable per-object history, and serves it over HTTP.

Examples:
  statushub serve --config=statushub.toml
  statushub history --kind=source --object=clicks
  statushub current --kind=sink
  statushub objects --api-url=http://remote:8080/status`,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")

	return root
}

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the statushub server",
		Long: `Start the statushub collection and query server.
All configuration is loaded from a TOML config file.

Examples:
  statushub serve --config=statushub.toml
  statushub serve statushub.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := serveFlags.ConfigPath
			if configPath == "" {
				configPath = globalFlags.ConfigPath
			}
			if len(args) > 0 {
				configPath = args[0]
			}
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVar(&serveFlags.ConfigPath, "config", "", "path to TOML config file")

	return cmd
}

func runServe(configPath string) error {
	if configPath == "" {
		return fmt.Errorf("config file required for serve command. Use --config=statushub.toml or provide as argument")
	}

	cfg, err := statushub.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logCfg := logger.Config{}
	if cfg.Log != nil {
		logCfg = logger.Config{
			Path:       cfg.Log.Path,
			Level:      cfg.Log.Level,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}
	}
	log, logCloser := logger.New(logCfg)
	if logCloser != nil {
		defer func() { _ = logCloser.Close() }()
	}

	st, err := statushub.NewStore(cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	var sinks []statushub.HistorySink
	for _, sc := range cfg.Sinks {
		sink, err := statushub.NewHistorySink(sc.DSN)
		if err != nil {
			return fmt.Errorf("open sink %q: %w", sc.DSN, err)
		}
		sinks = append(sinks, sink)
	}

	h, err := statushub.New(statushub.Options{
		Store: st,
		Collector: statushub.CollectorConfig{
			QueueSize:        cfg.Collector.QueueSize,
			Retention:        statushub.Retention(cfg.Collector.Retention),
			MaxRetryInterval: cfg.Collector.MaxRetryInterval,
		},
		Sinks:  sinks,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("start hub: %w", err)
	}

	if err := statushub.RegisterMetricsDefault(); err != nil {
		log.Warn("failed to register metrics", "error", err)
	}

	// Surface collector rejections in the service log.
	go func() {
		for rej := range h.Rejections() {
			log.Warn("event rejected", "object", rej.Event.ObjectID, "status", rej.Event.Status, "error", rej.Err)
		}
	}()

	server, err := statushub.NewHTTPServer(cfg.Server.Listen, cfg.Server.BasePath, h)
	if err != nil {
		_ = h.Close()
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	log.Info("statushub server started", "listen", cfg.Server.Listen, "base_path", cfg.Server.BasePath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	_ = server.Close()
	return h.Close()
}

func createHistoryCommand(flags *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show status history for one object or a whole relation",
		Long: `Query the status history relation of sources or sinks.
Without --object the full relation is returned, ordered by occurrence time.

Examples:
  statushub history --kind=source --object=clicks
  statushub history --kind=sink --status=error --limit=20
  statushub history --kind=source --object=clicks --after=100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(flags.APIUrl, flags.APITimeout)
			rows, err := client.History(flags.Kind, flags.Object, HistoryQuery{
				Status: flags.Status,
				After:  flags.After,
				Limit:  flags.Limit,
			})
			if err != nil {
				return err
			}
			printJSON(rows)
			return nil
		},
	}

	addQueryFlags(cmd, flags)
	cmd.Flags().StringVar(&flags.Status, "status", "", "only rows with this status")
	cmd.Flags().Int64Var(&flags.After, "after", 0, "only rows after this position (cursor)")
	cmd.Flags().IntVar(&flags.Limit, "limit", 0, "maximum number of rows")

	return cmd
}

func createCurrentCommand(flags *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "current",
		Short: "Show the current status of objects",
		Long: `Query the current-status view of sources or sinks.
Without --object the latest row of every object of the kind is returned.

Examples:
  statushub current --kind=source
  statushub current --kind=sink --object=warehouse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(flags.APIUrl, flags.APITimeout)
			rows, err := client.Current(flags.Kind, flags.Object)
			if err != nil {
				return err
			}
			printJSON(rows)
			return nil
		},
	}

	addQueryFlags(cmd, flags)

	return cmd
}

func createObjectsCommand(flags *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "objects",
		Short: "List registered sources and sinks",
		Long: `List the catalog objects known to the server.

Examples:
  statushub objects
  statushub objects --kind=sink`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(flags.APIUrl, flags.APITimeout)
			objs, err := client.Objects(flags.Kind)
			if err != nil {
				return err
			}
			printJSON(objs)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Kind, "kind", "", "object kind: source or sink")
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "", "server URL (e.g. http://host:8080/status)")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout")

	return cmd
}

func addQueryFlags(cmd *cobra.Command, flags *QueryFlags) {
	cmd.Flags().StringVar(&flags.Kind, "kind", "source", "object kind: source or sink")
	cmd.Flags().StringVar(&flags.Object, "object", "", "object name (default: whole relation)")
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "", "server URL (e.g. http://host:8080/status)")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
}
