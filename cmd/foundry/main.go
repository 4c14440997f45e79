//go:build linux

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/foundry/pkg/api"
	"github.com/cuemby/foundry/pkg/events"
	"github.com/cuemby/foundry/pkg/handler"
	"github.com/cuemby/foundry/pkg/health"
	"github.com/cuemby/foundry/pkg/isolation"
	"github.com/cuemby/foundry/pkg/log"
	"github.com/cuemby/foundry/pkg/shim"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "foundry",
	Short: "Foundry - Sandboxed remote code execution engine",
	Long: `Foundry executes declarative invocation requests: graphs of file,
pipe, volume, sandbox, and command actions driven to completion under
resource limits inside filesystem-isolated sandboxes.

Built as the execution engine behind a judge for untrusted code.`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Foundry version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	// Initialize logging before command execution
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	if err := log.Setup(log.Options{Level: logLevel, Console: !logJSON}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the invocation HTTP server",
	Long: `Start the Foundry server: preflight the host (root, cgroup2,
controllers), initialize the sandbox backend, and serve POST /exec,
GET /ready, and GET /metrics on the configured listen address.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML config file")
	serveCmd.Flags().String("listen", "tcp://0.0.0.0:8000", "Listen address (tcp://HOST:PORT or unix:/abs/path)")
	serveCmd.Flags().String("work-dir", "/var/lib/foundry/work", "Directory to store intermediate files")
	serveCmd.Flags().String("shim", "", "Shim base address, e.g. http://127.0.0.1:8001")
	serveCmd.Flags().Bool("skip-checks", false, "Skip optional system checks")
	serveCmd.Flags().Bool("leak-sandboxes", false, "Keep sandboxes and work directories for post-mortem inspection")
	serveCmd.Flags().String("debug-dir", "", "Enable the interactive-debug suspender using this token directory")
	serveCmd.Flags().StringSlice("expose-host-item", nil, "Host top-level directory exposed for base image \"/\" (repeatable)")
	serveCmd.Flags().String("uid-range", "", "Sandbox uid range as low:high")
	serveCmd.Flags().String("cgroup-prefix", "", "Cgroup directory that scopes sandbox cgroups")
	serveCmd.Flags().String("default-work-dir-size", "", "Work dir quota applied when requests omit one (e.g. 256MiB)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := defaultServeConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return err
		}
	}
	mergeFlags(cmd, &cfg)

	listen, err := api.ParseListenAddress(cfg.Listen)
	if err != nil {
		return err
	}

	logger := log.Component("serve")
	if cfg.SkipChecks {
		logger.Warn().Msg("skipping system checks")
	} else {
		report := health.Run(cmd.Context(), health.SystemCheckers(cfg.WorkDir))
		if !report.Healthy() {
			return fmt.Errorf("system configuration problem detected: %s",
				strings.Join(report.Failures(), "; "))
		}
		logger.Info().Msg("system checks passed")
	}

	settings := isolation.DefaultSettings()
	if cfg.CgroupPrefix != "" {
		settings.CgroupPrefix = cfg.CgroupPrefix
	}
	if cfg.UIDRange != "" {
		low, high, err := parseUIDRange(cfg.UIDRange)
		if err != nil {
			return err
		}
		settings.UIDLow, settings.UIDHigh = low, high
	}
	backend, err := isolation.NewLinuxBackend(settings)
	if err != nil {
		return fmt.Errorf("failed to initialize sandbox backend: %w", err)
	}

	handlerCfg := handler.Config{
		WorkDir:          cfg.WorkDir,
		LeakSandboxes:    cfg.LeakSandboxes,
		DebugDir:         cfg.DebugDir,
		ExposedHostItems: cfg.ExposeHostItems,
	}
	if cfg.DefaultWorkDirSize != "" {
		size, err := parseSize(cfg.DefaultWorkDirSize)
		if err != nil {
			return err
		}
		handlerCfg.DefaultWorkDirSize = &size
	}

	notifier := events.NewNotifier(events.LogSink())

	shimClient, err := shim.NewClient(cfg.Shim)
	if err != nil {
		return fmt.Errorf("failed to initialize shim client: %w", err)
	}

	h := handler.New(handlerCfg, backend, notifier)
	server := api.NewServer(h, shimClient, cfg.WorkDir)

	lis, err := listen.Listen()
	if err != nil {
		return err
	}

	// Shut down gracefully on SIGINT/SIGTERM.
	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(lis) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Stop(ctx)
	}
}

func mergeFlags(cmd *cobra.Command, cfg *serveConfig) {
	if cmd.Flags().Changed("listen") {
		cfg.Listen, _ = cmd.Flags().GetString("listen")
	}
	if cmd.Flags().Changed("work-dir") {
		cfg.WorkDir, _ = cmd.Flags().GetString("work-dir")
	}
	if cmd.Flags().Changed("shim") {
		cfg.Shim, _ = cmd.Flags().GetString("shim")
	}
	if cmd.Flags().Changed("skip-checks") {
		cfg.SkipChecks, _ = cmd.Flags().GetBool("skip-checks")
	}
	if cmd.Flags().Changed("leak-sandboxes") {
		cfg.LeakSandboxes, _ = cmd.Flags().GetBool("leak-sandboxes")
	}
	if cmd.Flags().Changed("debug-dir") {
		cfg.DebugDir, _ = cmd.Flags().GetString("debug-dir")
	}
	if cmd.Flags().Changed("expose-host-item") {
		cfg.ExposeHostItems, _ = cmd.Flags().GetStringSlice("expose-host-item")
	}
	if cmd.Flags().Changed("uid-range") {
		cfg.UIDRange, _ = cmd.Flags().GetString("uid-range")
	}
	if cmd.Flags().Changed("cgroup-prefix") {
		cfg.CgroupPrefix, _ = cmd.Flags().GetString("cgroup-prefix")
	}
	if cmd.Flags().Changed("default-work-dir-size") {
		cfg.DefaultWorkDirSize, _ = cmd.Flags().GetString("default-work-dir-size")
	}
}
