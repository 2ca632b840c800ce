package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rulebook-dev/rulebook/internal/config"
	"github.com/rulebook-dev/rulebook/internal/feedback"
	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/storage/factory"
	"github.com/rulebook-dev/rulebook/internal/telemetry"
)

var (
	actor       string
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	logger *slog.Logger
	store  storage.Storage
	svc    *feedback.Service
)

// noStoreAnnotation marks commands that run without opening storage.
const noStoreAnnotation = "rb/no-store"

func init() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "Actor name for human review logs (default: $RB_ACTOR, git user.name, $USER)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")
	rootCmd.PersistentFlags().String("backend", "", "Storage backend: sqlite, mysql or memory (default from config)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default: .rulebook/rulebook.db)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddGroup(&cobra.Group{ID: "review", Title: "Review Workflow:"})
	rootCmd.AddGroup(&cobra.Group{ID: "views", Title: "Governed Metadata:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Configuration:"})
}

var rootCmd = &cobra.Command{
	Use:   "rb",
	Short: "rb - review and merge changes to engineering governance metadata",
	Long: `Proposals to change coding rules, rule examples, class templates and review
checklists are recorded as feedback, reviewed by a model and (when risky) a
human, and merged into the governed metadata.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			printVersion()
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		applyConfigDefaults(cmd)
		setupLogger()
		setupTelemetry()

		if !needsStore(cmd) {
			return
		}
		openStore(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
		if err := telemetry.Shutdown(context.Background()); err != nil {
			logger.Debug("telemetry flush failed", "error", err)
		}
		if rootCancel != nil {
			rootCancel()
		}
	},
}

// needsStore is false for annotated commands, the bare root command, help
// and shell completion.
func needsStore(cmd *cobra.Command) bool {
	if !cmd.HasParent() || cmd.Annotations[noStoreAnnotation] == "true" {
		return false
	}
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// applyConfigDefaults fills flags the user did not set from config.yaml
// and RB_* environment variables.
func applyConfigDefaults(cmd *cobra.Command) {
	if !cmd.Flags().Changed("json") {
		jsonOutput = config.GetBool(config.KeyJSON)
	}
	if !cmd.Flags().Changed("actor") {
		actor = config.GetString(config.KeyActor)
	}
}

func setupLogger() {
	level := slog.LevelWarn
	switch {
	case verboseFlag:
		level = slog.LevelDebug
	case quietFlag:
		level = slog.LevelError
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func setupTelemetry() {
	if err := telemetry.Init(rootCtx, telemetry.SettingsFromEnv(), Version); err != nil {
		WarnError("telemetry disabled: %v", err)
	}
}

func openStore(cmd *cobra.Command) {
	settings := config.Storage()
	if v, _ := cmd.Flags().GetString("backend"); v != "" {
		settings.Backend = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		settings.Path = v
	}

	s, err := factory.NewWithOptions(rootCtx, settings.Backend, settings.Path, factory.Options{
		MySQL:      settings.MySQL,
		Instrument: true,
	})
	if err != nil {
		FatalErrorWithHint(fmt.Sprintf("failed to open %s storage: %v", settings.Backend, err),
			"check storage.* with 'rb config list'")
	}
	store = s
	logger.Debug("Storage opened", "backend", settings.Backend, "path", settings.Path)

	classifier, err := config.RiskPolicy()
	if err != nil {
		FatalErrorWithHint(fmt.Sprintf("invalid risk policy: %v", err), "fix risk.rules or risk.default in config.yaml")
	}
	svc, err = feedback.New(feedback.Options{
		Store:      store,
		Classifier: classifier,
		Logger:     logger,
	})
	if err != nil {
		FatalError("%v", err)
	}
}

// getActor returns who is making a human decision.
// Priority: --actor flag > actor config / RB_ACTOR > git config user.name > $USER > "unknown"
func getActor() string {
	if actor != "" {
		return actor
	}
	if out, err := exec.Command("git", "config", "user.name").Output(); err == nil {
		if gitUser := strings.TrimSpace(string(out)); gitUser != "" {
			return gitUser
		}
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
