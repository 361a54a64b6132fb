package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/portfolio-necromancer/internal/collect"
	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/database"
	"github.com/TobiSchelling/portfolio-necromancer/internal/metrics"
	"github.com/TobiSchelling/portfolio-necromancer/internal/pipeline"
	"github.com/TobiSchelling/portfolio-necromancer/internal/publish"
	"github.com/TobiSchelling/portfolio-necromancer/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

var errNoProjects = errors.New("no projects found")

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "necromancer",
	Short:         "Resurrect a portfolio from scattered digital work",
	Long:          "Portfolio Necromancer scrapes mail, documents, chat, design files, screenshots, feeds and repositories, categorizes and summarizes what it finds, and renders a static portfolio site.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		config.LoadDotenv()
		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(configCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("necromancer", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/necromancer/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o600); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set your name, API tokens and which sources to scrape.")
		return nil
	},
}

// --- run command ---

var (
	dryRun     bool
	outputName string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resurrect your portfolio: scrape -> categorize -> summarize -> render",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := []pipeline.Option{}
		if !dryRun {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			opts = append(opts, pipeline.WithDB(db))
		}

		pipe, err := pipeline.New(cfg, opts...)
		if err != nil {
			return err
		}

		if dryRun {
			printSteps(pipe.DryRun(ctx).Steps)
			return nil
		}

		result, err := pipe.Resurrect(ctx, outputName)
		if err != nil {
			printSteps(result.Steps)
			return err
		}
		if result.Status == pipeline.StatusEmpty {
			printSteps(result.Steps)
			fmt.Println()
			fmt.Println("No projects found. Check your configuration and data sources.")
			fmt.Println("Run 'necromancer sources' to see which sources are enabled and configured.")
			return errNoProjects
		}

		fmt.Print(renderSummary(result))
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	runCmd.Flags().StringVarP(&outputName, "output", "o", "", "Output directory name (default portfolio_<timestamp>)")
}

func printSteps(steps []pipeline.StepResult) {
	for i, step := range steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(steps), step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

// --- sources command ---

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List evidence sources and whether they can scrape",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(renderSources(collect.BuildSources(cfg)))
	},
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		runs, err := db.GetRecentRuns(5)
		if err != nil {
			return fmt.Errorf("getting runs: %w", err)
		}

		fmt.Print(renderStatus(stats, runs))
		return nil
	},
}

// --- serve command ---

var (
	servePort     int
	serveSchedule string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if !cmd.Flags().Changed("port") && cfg.Server.Port > 0 {
			port = cfg.Server.Port
		}
		schedule := serveSchedule
		if schedule == "" {
			schedule = cfg.Server.Schedule
		}

		srv, err := server.New(cfg,
			server.WithDB(db),
			server.WithMetrics(metrics.New()),
			server.WithStorageDir(filepath.Join(cfg.GetDataDir(), "api")),
			server.WithVersion(version),
		)
		if err != nil {
			return err
		}

		if schedule != "" {
			if _, err := srv.StartSchedule(ctx, schedule); err != nil {
				return err
			}
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return srv.ListenAndServe(ctx, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "", `Cron schedule for automatic resurrections, e.g. "0 3 * * 1"`)
}

// --- publish command ---

var publishCmd = &cobra.Command{
	Use:   "publish <dir>",
	Short: "Upload a rendered portfolio over SFTP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dir := args[0]
		if info, err := os.Stat(filepath.Join(dir, "index.html")); err != nil || info.IsDir() {
			return fmt.Errorf("%s does not look like a rendered portfolio (no index.html)", dir)
		}

		res, err := publish.New(publish.FromConfig(cfg)).Publish(ctx, dir)
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %d files (%d bytes) to %s\n", res.Files, res.Bytes, res.Target)

		db, err := openDB()
		if err != nil {
			return nil
		}
		defer db.Close()
		if run, _ := db.GetRunByOutput(filepath.Base(filepath.Clean(dir))); run != nil {
			if err := db.MarkPublished(run.ID, res.Target); err != nil {
				log.Printf("Warning: failed to record publish target: %v", err)
			}
		}
		return nil
	},
}

// --- auth command ---

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize access to external services",
}

var authGoogleCmd = &cobra.Command{
	Use:   "google",
	Short: "Authorize read-only Gmail and Drive access",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth := collect.GoogleAuth{
			CredentialsFile: cfg.Google.CredentialsFile,
			TokenFile:       cfg.Google.TokenFile,
		}
		if !auth.Configured() {
			return fmt.Errorf("google credentials file not found: %s", cfg.Google.CredentialsFile)
		}

		url, err := auth.AuthURL()
		if err != nil {
			return err
		}
		fmt.Println("Open this URL in your browser and authorize access:")
		fmt.Println()
		fmt.Println("  " + url)
		fmt.Println()
		fmt.Print("Paste the authorization code: ")

		code, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		code = strings.TrimSpace(code)
		if code == "" {
			return fmt.Errorf("aborted")
		}

		if err := auth.Exchange(cmd.Context(), code); err != nil {
			return err
		}
		fmt.Println("Google authorization saved.")
		return nil
	},
}

func init() {
	authCmd.AddCommand(authGoogleCmd)
}

// --- config command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read or change configuration values",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a value by dotted path, e.g. user.name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v := cfg.Get(args[0])
		if v == nil {
			return fmt.Errorf("no value for %s", args[0])
		}
		fmt.Println(v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value by dotted path and save the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		value := parseValue(args[1])
		if err := config.SetInFile(path, args[0], value); err != nil {
			return err
		}
		if err := cfg.Set(args[0], value); err != nil {
			return err
		}
		fmt.Printf("Set %s in %s\n", args[0], path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "necromancer.db")
	return database.Open(dbPath)
}
